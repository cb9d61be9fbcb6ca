package netpulse

import (
	"encoding/json"
	"strings"
)

// messagePaths are the dot-notation fields probed, in order, for a
// server-provided error message.
var messagePaths = [][]string{
	{"message"},
	{"error", "message"},
	{"error"},
	{"detail"},
}

// payloadMessage extracts a human-readable message from a JSON error body.
// It returns "" when the body is not JSON or carries no string message.
func payloadMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var data interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return ""
	}

	for _, path := range messagePaths {
		if msg := strings.TrimSpace(extractJSONString(data, path)); msg != "" {
			return msg
		}
	}
	return ""
}

// extractJSONString walks a decoded JSON value along parts and returns the
// string found there, or "" if the path is missing or not a string.
func extractJSONString(data interface{}, parts []string) string {
	current := data

	for _, part := range parts {
		obj, ok := current.(map[string]interface{})
		if !ok {
			return ""
		}
		current, ok = obj[part]
		if !ok {
			return ""
		}
	}

	s, _ := current.(string)
	return s
}
