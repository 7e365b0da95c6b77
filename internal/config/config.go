package config

import (
	"fmt"
	"os"
	"strconv"
)

// Default configuration values (production)
const (
	DefaultDomain     = "silentbyte.app"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultListenAddr = ":8080"
	DefaultMongoDB    = "silentbyte"
	DefaultTURNTTL    = 3600 // seconds
	DefaultPoolSize   = 4
)

// Server holds signaling-server configuration, read from the
// environment with built-in fallbacks.
type Server struct {
	ListenAddr string

	// Exactly one store backend is active: redis when RedisURI is set,
	// mongo when MongoURI is set, in-memory otherwise.
	RedisURI string
	MongoURI string
	MongoDB  string

	// Relay credential configuration served on /ice.
	STUNServer string
	TURNServer string
	// TURNSecret enables coturn-style short-lived credentials; when
	// empty, TURNUser/TURNPass are handed out as-is.
	TURNSecret     string
	TURNUser       string
	TURNPass       string
	TURNTTLSeconds int64
	PoolSize       int
}

// LoadServer reads server configuration: environment variable first,
// hardcoded default last.
func LoadServer() *Server {
	cfg := &Server{
		ListenAddr:     envOr("ADDR", DefaultListenAddr),
		RedisURI:       os.Getenv("REDIS_URI"),
		MongoURI:       os.Getenv("MONGO_URI"),
		MongoDB:        envOr("MONGO_DB", DefaultMongoDB),
		STUNServer:     envOr("STUN_SERVER", DefaultSTUN),
		TURNServer:     os.Getenv("TURN_SERVER"),
		TURNSecret:     os.Getenv("TURN_SECRET"),
		TURNUser:       os.Getenv("TURN_USERNAME"),
		TURNPass:       os.Getenv("TURN_PASSWORD"),
		TURNTTLSeconds: DefaultTURNTTL,
		PoolSize:       DefaultPoolSize,
	}

	if v := os.Getenv("TURN_TTL"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.TURNTTLSeconds = n
		}
	}
	if v := os.Getenv("ICE_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.PoolSize = n
		}
	}

	return cfg
}

// Client holds client-side configuration.
type Client struct {
	Domain string

	// WebSocketURL and ICEURL are constructed from Domain.
	WebSocketURL string
	ICEURL       string

	// Fallback relay hints used when the /ice fetch fails.
	STUNServer string
}

// Options for loading client config with CLI flag overrides.
type Options struct {
	Domain     string
	STUNServer string
	Insecure   bool // ws:// and http:// instead of wss:// and https://
}

// LoadClient reads client configuration with the following priority:
// CLI flags (via Options), then environment variables, then defaults.
func LoadClient(opts Options) *Client {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("STUN_SERVER")
	}
	if stun == "" {
		stun = DefaultSTUN
	}

	wsScheme, httpScheme := "wss", "https"
	if opts.Insecure {
		wsScheme, httpScheme = "ws", "http"
	}

	return &Client{
		Domain:       domain,
		WebSocketURL: fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		ICEURL:       fmt.Sprintf("%s://%s/ice", httpScheme, domain),
		STUNServer:   stun,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
