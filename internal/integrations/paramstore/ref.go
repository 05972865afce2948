package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// RefPrefix marks a configuration value as a Parameter Store reference,
// e.g. "ssm:/portfolio-chat/openai-token".
const RefPrefix = "ssm:"

// IsRef reports whether value names a parameter rather than carrying a
// literal or a file path.
func IsRef(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), RefPrefix)
}

// RefName returns the parameter name of an "ssm:" reference.
func RefName(ref string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(ref), RefPrefix))
}

// ReadSource returns the bytes behind ref: the parameter value for an
// "ssm:" reference, the file contents otherwise.
func ReadSource(ctx context.Context, g Getter, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("paramstore: source is empty")
	}
	if !IsRef(ref) {
		data, err := os.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("paramstore: read file: %w", err)
		}
		return data, nil
	}
	if g == nil {
		return nil, fmt.Errorf("paramstore: no getter configured for %q", ref)
	}
	v, err := g.GetParameter(ctx, RefName(ref))
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

// tokenPayload is the JSON shape secrets may be stored in.
type tokenPayload struct {
	Token string `json:"token"`
}

// ResolveSecret turns a configured credential into its value. Literal values
// are returned trimmed. References are fetched; a JSON object value must carry
// a non-empty "token" field, any other value is used as is.
func ResolveSecret(ctx context.Context, g Getter, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("paramstore: secret is not configured")
	}
	if !IsRef(value) {
		return value, nil
	}

	raw, err := ReadSource(ctx, g, value)
	if err != nil {
		return "", fmt.Errorf("paramstore: resolve secret: %w", err)
	}
	s := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(s, "{") {
		if s == "" {
			return "", errors.New("paramstore: secret value is empty")
		}
		return s, nil
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(s), &tp); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal secret value as JSON: %w", err)
	}
	if strings.TrimSpace(tp.Token) == "" {
		return "", errors.New("paramstore: secret token is empty")
	}
	return strings.TrimSpace(tp.Token), nil
}
