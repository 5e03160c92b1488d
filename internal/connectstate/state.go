// Package connectstate issues the state tokens round-tripped through the
// Google account-linking redirect. A token carries the initiating user ID
// so the callback can tie the provider response back to a login, but it
// is signed and time-bound: a decoded user ID is still treated as
// untrusted input and re-checked against the live session by the caller.
package connectstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/replysuite/session-gateway/internal/serviceerr"
)

// Codec encodes and decodes signed state tokens. The zero value is not
// usable; construct with NewCodec.
type Codec struct {
	secret []byte
	ttl    time.Duration

	// now is swapped in tests.
	now func() time.Time
}

type payload struct {
	UserID   string `json:"userId"`
	IssuedAt int64  `json:"issuedAt"`
}

// NewCodec creates a Codec. The secret must be at least 32 bytes; the
// TTL bounds how long an authorization redirect may stay in flight.
func NewCodec(secret []byte, ttl time.Duration) (*Codec, error) {
	if len(secret) < 32 {
		return nil, errors.New("state secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, errors.New("state TTL must be positive")
	}

	return &Codec{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Encode packs the user ID into a signed token of the form
// base64url(json) + "." + base64url(hmac).
func (c *Codec) Encode(userID string) (string, error) {
	if userID == "" {
		return "", errors.New("user ID must not be empty")
	}

	body, err := json.Marshal(payload{UserID: userID, IssuedAt: c.now().Unix()})
	if err != nil {
		return "", fmt.Errorf("marshaling state payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(body)
	return encoded + "." + c.sign(encoded), nil
}

// Decode verifies and unpacks a token produced by Encode. It fails with
// serviceerr.ErrMalformedState when the token is not valid base64, not
// valid JSON, missing the user ID, or carries a bad signature, and with
// serviceerr.ErrStateExpired when the token is older than the TTL.
func (c *Codec) Decode(token string) (string, error) {
	encoded, sig, ok := cutToken(token)
	if !ok {
		return "", serviceerr.ErrMalformedState
	}

	if !hmac.Equal([]byte(c.sign(encoded)), []byte(sig)) {
		return "", serviceerr.ErrMalformedState
	}

	body, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", serviceerr.ErrMalformedState
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return "", serviceerr.ErrMalformedState
	}
	if p.UserID == "" {
		return "", serviceerr.ErrMalformedState
	}

	issued := time.Unix(p.IssuedAt, 0)
	if c.now().After(issued.Add(c.ttl)) {
		return "", serviceerr.ErrStateExpired
	}

	return p.UserID, nil
}

func (c *Codec) sign(encoded string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func cutToken(token string) (encoded, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}
