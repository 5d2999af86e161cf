package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/richard-senior/poolleague/pkg/util"
)

// ArgumentError marks a problem with the arguments a tool was called with, as
// opposed to a failure while running it
type ArgumentError struct {
	Message string
}

func (e *ArgumentError) Error() string {
	return e.Message
}

func argErrorf(format string, args ...any) error {
	return &ArgumentError{Message: fmt.Sprintf(format, args...)}
}

// argsMap converts tool call params to a map of arguments
func argsMap(params any) (map[string]any, error) {
	if params == nil {
		return map[string]any{}, nil
	}
	m, ok := params.(map[string]any)
	if !ok {
		return nil, argErrorf("couldn't format the parameters as a map of strings")
	}
	return m, nil
}

func requiredString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return "", argErrorf("no %s parameter was sent", key)
	}
	s, err := util.GetAsString(v)
	if err != nil || s == "" {
		return "", argErrorf("%s must be a non-empty string", key)
	}
	return s, nil
}

// takeSeed removes the seed argument, accepting numbers and numeric strings.
// A missing seed is drawn from the clock; the seed used is always reported.
func takeSeed(args map[string]any) (uint64, error) {
	v, ok := args["seed"]
	delete(args, "seed")
	if !ok || v == nil {
		return uint64(time.Now().UnixNano()), nil
	}
	seed, err := util.GetAsUint64(v)
	if err != nil {
		return 0, argErrorf("invalid seed: %v", err)
	}
	return seed, nil
}

// decodeArgs copies the arguments into a request struct through its JSON tags,
// rejecting arguments the struct does not know
func decodeArgs(args map[string]any, target any) error {
	b, err := json.Marshal(args)
	if err != nil {
		return argErrorf("failed to marshal arguments: %v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return argErrorf("invalid arguments: %v", err)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps or plain dates
func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, argErrorf("date must be YYYY-MM-DD or RFC 3339, got %q", s)
}
