package service

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/quizspin-backend/internal/model"
	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest SESSION_SECRET accepted at startup.
const MinSecretLength = 16

var errWeakSecret = fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)

// DecodeStatus classifies the outcome of decoding a session token.
type DecodeStatus int

const (
	DecodeAbsent  DecodeStatus = iota // no token presented
	DecodeInvalid                     // malformed, expired or tampered
	DecodeValid
)

func (s DecodeStatus) String() string {
	switch s {
	case DecodeAbsent:
		return "absent"
	case DecodeInvalid:
		return "invalid"
	case DecodeValid:
		return "valid"
	}
	return "unknown"
}

// sessionClaims carries the session fields next to the registered claims.
type sessionClaims struct {
	jwt.RegisteredClaims
	model.SessionState
}

// SessionCodec signs and verifies session tokens (HS256 JWT).
// It holds no mutable state after construction.
type SessionCodec struct {
	key    []byte
	maxAge time.Duration
}

// NewSessionCodec derives the signing key from secret once and returns a codec
// whose tokens expire maxAge after issuance.
func NewSessionCodec(secret string, maxAge time.Duration) (*SessionCodec, error) {
	if maxAge <= 0 {
		return nil, errors.New("session max age must be positive")
	}
	key, err := DeriveSigningKey(secret)
	if err != nil {
		return nil, err
	}
	return &SessionCodec{key: key, maxAge: maxAge}, nil
}

// DeriveSigningKey stretches the configured secret into a 32-byte HMAC key.
func DeriveSigningKey(secret string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, errWeakSecret
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte("quizspin"), []byte("session-cookie-hs256"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return key, nil
}

// MaxAge returns the token lifetime.
func (c *SessionCodec) MaxAge() time.Duration {
	return c.maxAge
}

// Encode signs state with iat = issuedAt and exp = issuedAt + MaxAge.
func (c *SessionCodec) Encode(state model.SessionState, issuedAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.maxAge)),
		},
		SessionState: state,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// Decode verifies the token against now. Failures never surface as errors:
// the status tells the caller whether a session was absent or unusable.
func (c *SessionCodec) Decode(tokenStr string, now time.Time) (model.SessionState, DecodeStatus) {
	if tokenStr == "" {
		return model.DefaultSession(), DecodeAbsent
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// Reject non-canonical base64 so every altered character fails.
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)

	claims := &sessionClaims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil || !token.Valid {
		return model.DefaultSession(), DecodeInvalid
	}

	state := claims.SessionState
	state.Normalize()
	return state, DecodeValid
}
