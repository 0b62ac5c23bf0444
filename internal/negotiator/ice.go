package negotiator

import (
	"chatroulette/backend/internal/config"
	"strings"

	"github.com/pion/webrtc/v4"
)

// DefaultSTUNURL is prepended when no STUN server is configured.
const DefaultSTUNURL = "stun:stun.l.google.com:19302"

// ICEServers converts the configured servers, dropping entries without URLs
// and TURN entries without credentials. A public STUN server is added when
// none of the remaining entries offers STUN.
func ICEServers(cfg config.WebRTCConfig) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(cfg.ICEServers)+1)
	hasSTUN := false
	for _, s := range cfg.ICEServers {
		urls := make([]string, 0, len(s.URLs))
		for _, u := range s.URLs {
			if u = strings.TrimSpace(u); u != "" {
				urls = append(urls, u)
			}
		}
		if len(urls) == 0 {
			continue
		}
		server := webrtc.ICEServer{URLs: urls}
		if hasTURNURL(urls) {
			if strings.TrimSpace(s.Username) == "" || strings.TrimSpace(s.Credential) == "" {
				continue
			}
			server.Username = s.Username
			server.Credential = s.Credential
		}
		if hasSTUNURL(urls) {
			hasSTUN = true
		}
		out = append(out, server)
	}
	if !hasSTUN {
		out = append([]webrtc.ICEServer{{URLs: []string{DefaultSTUNURL}}}, out...)
	}
	return out
}

func hasTURNURL(urls []string) bool {
	for _, raw := range urls {
		u := strings.ToLower(raw)
		if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
			return true
		}
	}
	return false
}

func hasSTUNURL(urls []string) bool {
	for _, raw := range urls {
		u := strings.ToLower(raw)
		if strings.HasPrefix(u, "stun:") || strings.HasPrefix(u, "stuns:") {
			return true
		}
	}
	return false
}
