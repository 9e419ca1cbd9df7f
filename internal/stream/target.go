package stream

import (
	"fmt"
	"net/url"
)

// SessionTarget builds the WebSocket URL for a coaching session from the
// configured base URL, mapping http→ws and https→wss.
func SessionTarget(baseURL, sessionID string) (string, error) {
	return buildTarget(baseURL, "/ws/session/", sessionID)
}

// AgentTarget builds the WebSocket URL for an agent connection.
func AgentTarget(baseURL, agentID string) (string, error) {
	return buildTarget(baseURL, "/ws/agent/", agentID)
}

func buildTarget(baseURL, prefix, id string) (string, error) {
	if id == "" {
		return "", ErrMissingTarget
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("stream: parse base url %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("stream: unsupported scheme %q in base url", u.Scheme)
	}

	u.Path = prefix + id
	return u.String(), nil
}
