package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/turncred"
)

// ICEServer is one entry of the relay hint list handed to clients.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// ICEResponse is the /ice payload: relay servers plus a candidate pool
// size hint.
type ICEResponse struct {
	ICEServers        []ICEServer `json:"iceServers"`
	CandidatePoolSize int         `json:"candidatePoolSize"`
}

// iceHandler serves the current relay credential set. STUN is always
// included; TURN is added when configured, with short-lived TURN REST
// credentials when a shared secret is present.
func iceHandler(cfg *config.Server) http.HandlerFunc {
	var gen *turncred.Generator
	if cfg.TURNSecret != "" {
		var err error
		gen, err = turncred.NewGenerator(cfg.TURNSecret, time.Duration(cfg.TURNTTLSeconds)*time.Second)
		if err != nil {
			slog.Warn("TURN REST disabled", "err", err)
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		resp := ICEResponse{
			ICEServers:        []ICEServer{{URLs: []string{cfg.STUNServer}}},
			CandidatePoolSize: cfg.PoolSize,
		}

		if cfg.TURNServer != "" {
			turn := ICEServer{
				URLs:       turnURLs(cfg.TURNServer),
				Username:   cfg.TURNUser,
				Credential: cfg.TURNPass,
			}
			if gen != nil {
				if creds, err := gen.GenerateRandom(); err == nil {
					turn.Username = creds.Username
					turn.Credential = creds.Credential
				} else {
					slog.Warn("TURN credential mint failed", "err", err)
				}
			}
			resp.ICEServers = append(resp.ICEServers, turn)
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Warn("ice response write failed", "err", err)
		}
	}
}

func turnURLs(host string) []string {
	return []string{
		"turn:" + host + ":3478?transport=udp",
		"turn:" + host + ":3478?transport=tcp",
		"turns:" + host + ":5349?transport=tcp",
	}
}
