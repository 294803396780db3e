package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLen is the minimum signing secret length in bytes (256 bits).
// Anything shorter makes HS256 brute-forceable offline, so we refuse to
// construct a codec with it.
const MinSecretLen = 32

// Token type tags carried in the "typ" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh" // reserved, not issued yet
)

var (
	ErrSecretTooShort = errors.New("jwtx: signing secret shorter than 256 bits")
	ErrInvalidTTL     = errors.New("jwtx: ttl must be positive")
	ErrEmptySubject   = errors.New("jwtx: subject is required")

	ErrMalformed  = errors.New("jwtx: malformed token")
	ErrInvalidSig = errors.New("jwtx: invalid signature")
	ErrExpired    = errors.New("jwtx: token expired")
)

// Claims is the decoded, in-memory form of a token. It is produced only by
// Codec.Decode and is never serialized back without re-signing.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenType string

	// Extra holds any non-registered claims found in the payload.
	Extra map[string]any
}

// ValidateExpiry reports ErrExpired once now >= exp. The boundary is
// inclusive: a token is dead the instant its expiry is reached.
func (c Claims) ValidateExpiry(now time.Time) error {
	if !now.Before(c.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

// Codec issues and verifies HS256-signed tokens with a single shared secret.
// The secret is loaded once at startup and never mutated; the codec itself
// holds no other state and is safe for concurrent use.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewCodec builds a codec from an externally supplied secret. The secret
// must carry at least 256 bits of entropy, enforced by length.
func NewCodec(secret []byte, issuer string) (*Codec, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrSecretTooShort, len(secret), MinSecretLen)
	}
	return &Codec{
		secret: append([]byte(nil), secret...),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// Issue signs an access token for subject expiring after ttl.
func (c *Codec) Issue(subject string, ttl time.Duration) (string, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	now := c.now().UTC().Truncate(time.Second)
	claims := jwt.MapClaims{
		"iss": c.issuer,
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(now.Add(ttl)),
		"jti": uuid.NewString(),
		"typ": TokenTypeAccess,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign token: %w", err)
	}
	return signed, nil
}

// registered claims that Decode lifts into typed fields rather than Extra.
var registeredClaimNames = map[string]struct{}{
	"iss": {}, "sub": {}, "aud": {}, "exp": {}, "nbf": {}, "iat": {}, "jti": {}, "typ": {},
}

// Decode verifies the signature and returns the claims.
//
// The signature is checked before any claim is inspected, so a forged token
// and a well-formed-but-expired token take the same path up to that point.
// Failure modes: ErrInvalidSig (signature or algorithm mismatch),
// ErrMalformed (unparseable structure or inconsistent timestamps),
// ErrExpired (now >= exp).
func (c *Codec) Decode(token string) (Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	raw := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(strings.TrimSpace(token), raw, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSig
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSig), errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSig
		default:
			return Claims{}, ErrMalformed
		}
	}

	claims, err := liftClaims(raw)
	if err != nil {
		return Claims{}, err
	}
	if err := claims.ValidateExpiry(c.now().UTC()); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// ExtractSubject is a convenience wrapper over Decode.
func (c *Codec) ExtractSubject(token string) (string, error) {
	claims, err := c.Decode(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func liftClaims(raw jwt.MapClaims) (Claims, error) {
	sub, err := raw.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return Claims{}, ErrMalformed
	}
	iat, err := raw.GetIssuedAt()
	if err != nil || iat == nil {
		return Claims{}, ErrMalformed
	}
	exp, err := raw.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrMalformed
	}
	// Invariant: exp > iat. A token violating it was never issued by us.
	if !exp.Time.After(iat.Time) {
		return Claims{}, ErrMalformed
	}

	iss, _ := raw.GetIssuer()
	typ, _ := raw["typ"].(string)

	var extra map[string]any
	for k, v := range raw {
		if _, ok := registeredClaimNames[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}

	return Claims{
		Subject:   sub,
		Issuer:    iss,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
		TokenType: typ,
		Extra:     extra,
	}, nil
}
