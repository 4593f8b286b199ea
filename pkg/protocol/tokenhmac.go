package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrTokenExpired is returned by HMACIssuer.Verify for a well-formed,
// correctly-signed token past its expiry.
var ErrTokenExpired = errors.New("protocol: token expired")

// ErrTokenInvalid is returned by HMACIssuer.Verify for a malformed
// token or one whose signature does not match.
var ErrTokenInvalid = errors.New("protocol: token signature invalid")

// HMACIssuer is the one concrete AuthTokenIssuer adapter this repo
// ships: a base64url-encoded claims payload plus an HMAC-SHA256 tag,
// in the same "derive key, wrap with a stdlib crypto primitive, wrap
// errors" shape as the teacher's pkg/security secrets manager.
type HMACIssuer struct {
	key []byte
	ttl time.Duration
}

// NewHMACIssuer returns an issuer keyed by key, whose issued tokens
// expire after ttl.
func NewHMACIssuer(key []byte, ttl time.Duration) *HMACIssuer {
	return &HMACIssuer{key: key, ttl: ttl}
}

type tokenPayload struct {
	User      string    `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Issue returns a signed token for user, with IssuedAt set to now and
// ExpiresAt set ttl beyond it.
func (h *HMACIssuer) Issue(user string) (string, error) {
	now := time.Now()
	payload := tokenPayload{
		User:      user,
		IssuedAt:  now,
		ExpiresAt: now.Add(h.ttl),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("protocol: encode token payload: %w", err)
	}

	encodedBody := base64.RawURLEncoding.EncodeToString(body)
	sig := h.sign([]byte(encodedBody))
	encodedSig := base64.RawURLEncoding.EncodeToString(sig)

	return encodedBody + "." + encodedSig, nil
}

// Verify checks token's signature and expiry, returning its Claims.
func (h *HMACIssuer) Verify(token string) (Claims, error) {
	encodedBody, encodedSig, ok := splitToken(token)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}

	sig, err := base64.RawURLEncoding.DecodeString(encodedSig)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	expected := h.sign([]byte(encodedBody))
	if subtle.ConstantTimeCompare(sig, expected) != 1 {
		return Claims{}, ErrTokenInvalid
	}

	body, err := base64.RawURLEncoding.DecodeString(encodedBody)
	if err != nil {
		return Claims{}, ErrTokenInvalid
	}

	var payload tokenPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Claims{}, ErrTokenInvalid
	}

	if time.Now().After(payload.ExpiresAt) {
		return Claims{}, ErrTokenExpired
	}

	return Claims{
		User:      payload.User,
		IssuedAt:  payload.IssuedAt,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

func (h *HMACIssuer) sign(data []byte) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write(data)
	return mac.Sum(nil)
}

func splitToken(token string) (body, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}
