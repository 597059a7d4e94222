// Package credentials encodes each provider's multi-field credential bundle
// into one opaque token for storage, and decodes stored tokens back.
//
// Two formats are supported. The current format serializes the fields as
// JSON and base64-encodes them behind a version prefix, so field values may
// contain any character including the legacy separator. The legacy format is
// a pipe-separated list of key=value pairs; it is still decoded for tokens
// stored before the format migration, but never produced.
package credentials

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	v2Prefix        = "v2:"
	legacySeparator = "|"

	// minSecretLength is the shortest plausible secret value. Legacy tokens
	// that decode to anything shorter were almost certainly corrupted by a
	// separator character inside a field value.
	minSecretLength = 8
)

var (
	// ErrEmptyField indicates a decoded credential field had no value.
	ErrEmptyField = errors.New("credential field is empty")

	// ErrEmptyToken indicates the stored token was empty.
	ErrEmptyToken = errors.New("credential token is empty")

	// ErrMalformedToken indicates the token matched no known encoding.
	ErrMalformedToken = errors.New("credential token is malformed")

	// ErrMissingSeparator indicates a legacy token had no field separator.
	ErrMissingSeparator = errors.New("legacy credential token has no field separator")

	// ErrShortSecret indicates a legacy token decoded to an implausibly
	// short secret value.
	ErrShortSecret = errors.New("credential secret is implausibly short")
)

// Fields is a provider credential bundle, keyed by field name
// (e.g. "apiKey", "orgId", "accessToken").
type Fields map[string]string

// Codec encodes and decodes credential bundles. Decode never panics on
// malformed input: it returns nil fields and a classified error, logging the
// reason at warn level.
type Codec struct {
	logger *slog.Logger
}

// NewCodec creates a credential codec. A nil logger falls back to the
// default logger.
func NewCodec(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{logger: logger}
}

// Encode serializes a credential bundle into a single opaque token.
func (c *Codec) Encode(fields Fields) (string, error) {
	if len(fields) == 0 {
		return "", errors.New("at least one credential field is required")
	}
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			return "", fmt.Errorf("field %s: %w", name, ErrEmptyField)
		}
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("serializing credential fields: %w", err)
	}

	return v2Prefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode parses a stored token back into its credential fields. It tries the
// current format first and falls back to the legacy pipe-separated format.
// Malformed tokens return nil and a classified error, never a panic.
func (c *Codec) Decode(token string) (Fields, error) {
	if strings.TrimSpace(token) == "" {
		c.logger.Warn("credential decode failed", "reason", ErrEmptyToken.Error())
		return nil, ErrEmptyToken
	}

	if strings.HasPrefix(token, v2Prefix) {
		fields, err := c.decodeV2(token)
		if err != nil {
			c.logger.Warn("credential decode failed", "format", "v2", "reason", err.Error())
			return nil, err
		}
		return fields, nil
	}

	fields, err := c.decodeLegacy(token)
	if err != nil {
		c.logger.Warn("credential decode failed", "format", "legacy", "reason", err.Error())
		return nil, err
	}
	return fields, nil
}

// decodeV2 parses the versioned base64/JSON encoding.
func (c *Codec) decodeV2(token string) (Fields, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(token, v2Prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: bad base64 payload", ErrMalformedToken)
	}

	var fields Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: bad JSON payload", ErrMalformedToken)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrMalformedToken)
	}
	for name, value := range fields {
		if value == "" {
			return nil, fmt.Errorf("field %s: %w", name, ErrEmptyField)
		}
	}

	return fields, nil
}

// decodeLegacy parses the pre-migration pipe-separated key=value encoding.
// Field values containing the separator cannot survive this format; the
// plausibility checks below catch the resulting fragments.
func (c *Codec) decodeLegacy(token string) (Fields, error) {
	if !strings.Contains(token, legacySeparator) && !strings.Contains(token, "=") {
		return nil, ErrMissingSeparator
	}

	fields := make(Fields)
	for _, part := range strings.Split(token, legacySeparator) {
		name, value, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("segment %q: %w", truncate(part, 16), ErrMissingSeparator)
		}
		if name == "" || value == "" {
			return nil, fmt.Errorf("segment %q: %w", truncate(part, 16), ErrEmptyField)
		}
		if isSecretField(name) && len(value) < minSecretLength {
			return nil, fmt.Errorf("field %s: %w", name, ErrShortSecret)
		}
		fields[name] = value
	}

	return fields, nil
}

// isSecretField reports whether a field name denotes secret material that
// should meet the minimum plausible length.
func isSecretField(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "secret") || strings.Contains(n, "token") || strings.Contains(n, "key")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
