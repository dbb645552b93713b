package jwttoken

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"usersapi/pkg/domain"
	dErrors "usersapi/pkg/domain-errors"
	"usersapi/pkg/platform/sentinel"
	"usersapi/pkg/requestcontext"
)

// Kind distinguishes short-lived session tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Verification failures. Both surface to callers as CodeUnauthorized;
// use errors.Is to tell them apart in logs.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = fmt.Errorf("token %w", sentinel.ErrExpired)
)

// IdentityClaims is the signed payload: the Identity plus registered claims.
type IdentityClaims struct {
	UserID    string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	TokenUse  Kind   `json:"token_use"`
	jwt.RegisteredClaims
}

// Config configures signing keys and lifetimes.
type Config struct {
	AccessKey  string
	RefreshKey string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// JWTService signs and verifies HS256 identity tokens.
type JWTService struct {
	accessKey  []byte
	refreshKey []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// TokenPair is the result of a successful Issue.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// NewJWTService validates cfg. A missing key is a startup error.
func NewJWTService(cfg Config) (*JWTService, error) {
	if strings.TrimSpace(cfg.AccessKey) == "" {
		return nil, errors.New("jwt signing key is required")
	}
	if cfg.RefreshKey == "" {
		cfg.RefreshKey = cfg.AccessKey
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt token lifetimes must be positive")
	}
	return &JWTService{
		accessKey:  []byte(cfg.AccessKey),
		refreshKey: []byte(cfg.RefreshKey),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (s *JWTService) keyFor(kind Kind) []byte {
	if kind == KindRefresh {
		return s.refreshKey
	}
	return s.accessKey
}

func (s *JWTService) ttlFor(kind Kind) time.Duration {
	if kind == KindRefresh {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Issue mints an access and a refresh token for the identity.
func (s *JWTService) Issue(ctx context.Context, identity domain.Identity) (TokenPair, error) {
	access, accessExp, err := s.Sign(ctx, identity, KindAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.Sign(ctx, identity, KindRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Sign produces a single token of the given kind. The clock is requestcontext.Now,
// truncated to whole seconds so the returned expiry equals the signed exp claim.
func (s *JWTService) Sign(ctx context.Context, identity domain.Identity, kind Kind) (string, time.Time, error) {
	if !identity.Valid() {
		return "", time.Time{}, dErrors.New(dErrors.CodeInvalidInput, "identity requires id and email")
	}

	now := requestcontext.Now(ctx).Truncate(time.Second)
	expiresAt := now.Add(s.ttlFor(kind))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, IdentityClaims{
		UserID:    identity.ID.String(),
		Email:     identity.Email,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		TokenUse:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signed, err := token.SignedString(s.keyFor(kind))
	if err != nil {
		return "", time.Time{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not sign token")
	}
	return signed, expiresAt, nil
}

// Verify checks signature, algorithm, issuer, expiry and token kind, and
// returns the embedded Identity. Payloads missing a parseable id or an
// email are rejected as invalid.
func (s *JWTService) Verify(ctx context.Context, tokenString string, kind Kind) (domain.Identity, error) {
	claims := new(IdentityClaims)
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(token *jwt.Token) (any, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenUnverifiable
			}
			return s.keyFor(kind), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		// jwt treats now == exp as expired; a token stays valid through its expiry instant.
		jwt.WithLeeway(time.Nanosecond),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, unauthenticated(ErrExpiredToken)
		}
		return domain.Identity{}, unauthenticated(fmt.Errorf("%w: %w", ErrInvalidToken, err))
	}
	if !parsed.Valid || claims.TokenUse != kind {
		return domain.Identity{}, unauthenticated(ErrInvalidToken)
	}

	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil || claims.Subject != claims.UserID {
		return domain.Identity{}, unauthenticated(ErrInvalidToken)
	}
	identity := domain.Identity{
		ID:        userID,
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
	}
	if !identity.Valid() {
		return domain.Identity{}, unauthenticated(ErrInvalidToken)
	}
	return identity, nil
}

// VerifyAccess verifies a session credential. Refresh tokens are rejected.
func (s *JWTService) VerifyAccess(ctx context.Context, tokenString string) (domain.Identity, error) {
	return s.Verify(ctx, tokenString, KindAccess)
}

// VerifyRefresh verifies a refresh credential.
func (s *JWTService) VerifyRefresh(ctx context.Context, tokenString string) (domain.Identity, error) {
	return s.Verify(ctx, tokenString, KindRefresh)
}

func unauthenticated(cause error) error {
	return &dErrors.Error{Code: dErrors.CodeUnauthorized, Message: "authentication failed", Err: cause}
}
