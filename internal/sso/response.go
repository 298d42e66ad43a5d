package sso

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Envelope is the normalized view of a raw HTTP response.
type Envelope struct {
	Success bool
	Data    map[string]any
	Message string
	Err     error
}

// ResponseClassifier turns a status code and body into an Envelope.
type ResponseClassifier interface {
	Classify(status int, body string) Envelope
}

// ClassifierFunc adapts a function to ResponseClassifier.
type ClassifierFunc func(status int, body string) Envelope

// Classify calls f.
func (f ClassifierFunc) Classify(status int, body string) Envelope {
	return f(status, body)
}

// DefaultClassifier treats 2xx as success with a JSON object body. Failure
// messages are read from "message", "error.message" or a string "error"
// field, falling back to the raw body and then the status text.
var DefaultClassifier ResponseClassifier = ClassifierFunc(classifyResponse)

func classifyResponse(status int, body string) Envelope {
	parsed, parseErr := parseObject(body)

	if status >= 200 && status < 300 {
		if parseErr != nil {
			return Envelope{Message: "invalid JSON response", Err: parseErr}
		}
		return Envelope{Success: true, Data: parsed}
	}

	message := failureMessage(parsed)
	if message == "" {
		message = strings.TrimSpace(body)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return Envelope{Data: parsed, Message: message}
}

func parseObject(body string) (map[string]any, error) {
	if strings.TrimSpace(body) == "" {
		return map[string]any{}, nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return parsed, nil
}

func failureMessage(parsed map[string]any) string {
	if parsed == nil {
		return ""
	}
	if msg, ok := parsed["message"].(string); ok && msg != "" {
		return msg
	}
	switch e := parsed["error"].(type) {
	case string:
		return e
	case map[string]any:
		if msg, ok := e["message"].(string); ok {
			return msg
		}
	}
	return ""
}
