package remote

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Envelope is the response shape shared by every remote service.
type Envelope[T any] struct {
	StatusCode    int    `json:"statusCode"`
	StatusMessage string `json:"statusMessage"`
	Result        T      `json:"result"`
}

type rawEnvelope struct {
	StatusCode    *int            `json:"statusCode"`
	StatusMessage string          `json:"statusMessage"`
	Result        json.RawMessage `json:"result"`
}

var (
	errMissingStatus = errors.New("statusCode is missing")
	errMissingResult = errors.New("result is missing")
)

func parseEnvelope(body []byte) (*rawEnvelope, error) {
	var raw rawEnvelope
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw.StatusCode == nil {
		return nil, errMissingStatus
	}

	return &raw, nil
}

func decodeResult[T any](raw *rawEnvelope, allowEmpty bool) (*Envelope[T], error) {
	env := &Envelope[T]{
		StatusCode:    *raw.StatusCode,
		StatusMessage: raw.StatusMessage,
	}

	if isEmptyJSON(raw.Result) {
		if !allowEmpty {
			return nil, errMissingResult
		}

		return env, nil
	}

	if err := json.Unmarshal(raw.Result, &env.Result); err != nil {
		return nil, err
	}

	return env, nil
}

func isEmptyJSON(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func is2xx(code int) bool {
	return code >= 200 && code < 300
}
