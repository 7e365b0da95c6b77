package link

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
)

const credentialFetchTimeout = 5 * time.Second

// iceResponse mirrors the server's /ice payload.
type iceResponse struct {
	ICEServers []struct {
		URLs       []string `json:"urls"`
		Username   string   `json:"username,omitempty"`
		Credential string   `json:"credential,omitempty"`
	} `json:"iceServers"`
	CandidatePoolSize int `json:"candidatePoolSize"`
}

// fetchICEConfig asks the credential endpoint for the current relay
// set. Never blocks link creation: any failure falls back to the
// built-in public STUN server.
func fetchICEConfig(ctx context.Context, url, fallbackSTUN string) ([]webrtc.ICEServer, uint8) {
	fallback := []webrtc.ICEServer{{URLs: []string{fallbackSTUN}}}

	ctx, cancel := context.WithTimeout(ctx, credentialFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		slog.Warn("ice fetch setup failed, using fallback", "err", err)
		return fallback, 0
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Warn("ice fetch failed, using fallback", "err", err)
		return fallback, 0
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Warn("ice fetch failed, using fallback", "status", resp.StatusCode)
		return fallback, 0
	}

	var payload iceResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("ice response malformed, using fallback", "err", err)
		return fallback, 0
	}
	if len(payload.ICEServers) == 0 {
		return fallback, 0
	}

	servers := make([]webrtc.ICEServer, 0, len(payload.ICEServers))
	for _, s := range payload.ICEServers {
		servers = append(servers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}

	pool := payload.CandidatePoolSize
	if pool < 0 || pool > 255 {
		pool = 0
	}
	return servers, uint8(pool)
}
