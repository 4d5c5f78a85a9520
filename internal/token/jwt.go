package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/example/festival-programs/internal/application"
	"github.com/example/festival-programs/internal/festival"
)

// MinSecretLength is the shortest accepted HMAC secret in bytes.
const MinSecretLength = 32

// Config holds the token signing settings.
type Config struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

func (c Config) validate() error {
	if len(c.Secret) < MinSecretLength {
		return fmt.Errorf("token: secret must be at least %d bytes", MinSecretLength)
	}
	if c.TTL <= 0 {
		return fmt.Errorf("token: ttl must be positive")
	}
	return nil
}

// Claims are the JWT claims carried by a session token.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwtv5.RegisteredClaims
}

// Option customises a JWTIssuer.
type Option func(*JWTIssuer)

// WithClock replaces the wall clock used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *JWTIssuer) {
		if now != nil {
			i.now = now
		}
	}
}

// WithIDGenerator replaces the random UUID token ids.
func WithIDGenerator(newID func() string) Option {
	return func(i *JWTIssuer) {
		if newID != nil {
			i.newID = newID
		}
	}
}

// JWTIssuer signs HS256 tokens and consults a Blacklist for revocations.
type JWTIssuer struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	blacklist Blacklist
	now       func() time.Time
	newID     func() string
}

var _ application.TokenIssuer = (*JWTIssuer)(nil)

// NewJWTIssuer validates cfg and returns an issuer. blacklist must not be nil.
func NewJWTIssuer(cfg Config, blacklist Blacklist, opts ...Option) (*JWTIssuer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if blacklist == nil {
		return nil, fmt.Errorf("token: blacklist is required")
	}
	issuer := &JWTIssuer{
		secret:    []byte(cfg.Secret),
		issuer:    strings.TrimSpace(cfg.Issuer),
		ttl:       cfg.TTL,
		blacklist: blacklist,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer, nil
}

// Issue signs a token for user with a fresh token id.
func (i *JWTIssuer) Issue(_ context.Context, user festival.User) (application.IssuedToken, error) {
	if user.ID <= 0 {
		return application.IssuedToken{}, fmt.Errorf("token: user id is required")
	}

	now := i.now()
	expires := now.Add(i.ttl)
	id := i.newID()
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role.String(),
		RegisteredClaims: jwtv5.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatInt(user.ID, 10),
			Issuer:    i.issuer,
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(expires),
		},
	}

	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return application.IssuedToken{}, fmt.Errorf("token: sign: %w", err)
	}
	// NumericDate truncates to seconds; report what the token actually carries.
	return application.IssuedToken{Token: signed, ID: id, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Parse verifies the signature, issuer and expiry. Expired tokens yield
// application.ErrSessionExpired; anything else unverifiable yields
// application.ErrInvalidCredentials.
func (i *JWTIssuer) Parse(_ context.Context, token string) (application.TokenClaims, error) {
	claims, err := i.parse(token)
	if err != nil {
		return application.TokenClaims{}, err
	}
	return application.TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Invalidate blacklists a valid token until its expiry. Tokens that have
// already expired need no entry.
func (i *JWTIssuer) Invalidate(ctx context.Context, token string) error {
	claims, err := i.parse(token)
	if errors.Is(err, application.ErrSessionExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := i.blacklist.Add(ctx, Digest(token), claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("token: blacklist: %w", err)
	}
	return nil
}

// IsInvalidated reports whether the token was revoked.
func (i *JWTIssuer) IsInvalidated(ctx context.Context, token string) (bool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return false, nil
	}
	revoked, err := i.blacklist.Contains(ctx, Digest(token))
	if err != nil {
		return false, fmt.Errorf("token: blacklist: %w", err)
	}
	return revoked, nil
}

func (i *JWTIssuer) parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, application.ErrInvalidCredentials
	}

	opts := []jwtv5.ParserOption{
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithTimeFunc(i.now),
		jwtv5.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwtv5.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwtv5.ParseWithClaims(token, claims, func(*jwtv5.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, application.ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", application.ErrInvalidCredentials, err)
	}
	if !parsed.Valid || claims.UserID <= 0 || claims.ID == "" {
		return nil, application.ErrInvalidCredentials
	}
	return claims, nil
}

// Digest returns the hex SHA-256 of a raw token. Blacklists store digests
// rather than bearer tokens.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
	return hex.EncodeToString(sum[:])
}
