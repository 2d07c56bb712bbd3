package auth

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"resumetailor-hq/tailor/pkg/quota"
)

// Validator verifies a raw token and returns its claims.
type Validator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// JWKSValidator validates tokens signed by keys published at a JWKS URL.
// The key set is cached and refreshed in the background to follow rotation.
type JWKSValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
	skew     time.Duration
}

// JWKSConfig configures a JWKSValidator.
type JWKSConfig struct {
	JWKSURL         string
	Issuer          string
	Audience        string
	RefreshInterval time.Duration
	ClockSkew       time.Duration
}

// NewJWKSValidator registers the JWKS URL and performs the first fetch. The
// refresh goroutine stops when ctx is cancelled.
func NewJWKSValidator(ctx context.Context, cfg JWKSConfig) (*JWKSValidator, error) {
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("jwks url is required")
	}
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = 15 * time.Minute
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL, jwk.WithMinRefreshInterval(cfg.RefreshInterval)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &JWKSValidator{
		jwksURL:  cfg.JWKSURL,
		cache:    cache,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		skew:     cfg.ClockSkew,
	}, nil
}

// Validate verifies signature, expiry, issuer and audience.
func (v *JWKSValidator) Validate(ctx context.Context, raw string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}
	return parse(raw, v.issuer, v.audience, v.skew, jwt.WithKeySet(keyset))
}

// KeyFunc returns the current shared secret.
type KeyFunc func(ctx context.Context) ([]byte, error)

// StaticKeyValidator validates HS256 tokens with a shared secret. Intended
// for local development and tests.
type StaticKeyValidator struct {
	key      KeyFunc
	issuer   string
	audience string
}

// NewStaticKeyValidator creates a shared-secret validator.
func NewStaticKeyValidator(secret []byte, issuer, audience string) (*StaticKeyValidator, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("shared secret must be at least %d bytes", minSecretLen)
	}
	return &StaticKeyValidator{
		key:      func(context.Context) ([]byte, error) { return secret, nil },
		issuer:   issuer,
		audience: audience,
	}, nil
}

// NewRotatingKeyValidator creates a shared-secret validator that looks the
// secret up on every call. The key is fetched once here to fail fast.
func NewRotatingKeyValidator(ctx context.Context, key KeyFunc, issuer, audience string) (*StaticKeyValidator, error) {
	v := &StaticKeyValidator{key: key, issuer: issuer, audience: audience}
	if _, err := v.secret(ctx); err != nil {
		return nil, err
	}
	return v, nil
}

const minSecretLen = 32

func (v *StaticKeyValidator) secret(ctx context.Context) ([]byte, error) {
	secret, err := v.key(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load shared secret: %w", err)
	}
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("shared secret must be at least %d bytes", minSecretLen)
	}
	return secret, nil
}

// Validate verifies the HMAC signature and standard claims.
func (v *StaticKeyValidator) Validate(ctx context.Context, raw string) (*Claims, error) {
	secret, err := v.secret(ctx)
	if err != nil {
		return nil, err
	}
	return parse(raw, v.issuer, v.audience, 0, jwt.WithKey(jwa.HS256, secret))
}

// Sign issues a token for subject. Used by the dev tooling and tests.
func (v *StaticKeyValidator) Sign(subject, email string, ttl time.Duration) (string, error) {
	if err := checkSubject(subject); err != nil {
		return "", err
	}
	now := time.Now()
	b := jwt.NewBuilder().
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	if v.issuer != "" {
		b = b.Issuer(v.issuer)
	}
	if v.audience != "" {
		b = b.Audience([]string{v.audience})
	}
	if email != "" {
		b = b.Claim("email", email)
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}
	secret, err := v.secret(context.Background())
	if err != nil {
		return "", err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// parse verifies raw with keyOpt. Cognito access tokens carry the app client
// in client_id instead of aud, so either satisfies the audience check.
func parse(raw, issuer, audience string, skew time.Duration, keyOpt jwt.ParseOption) (*Claims, error) {
	opts := []jwt.ParseOption{keyOpt, jwt.WithValidate(true)}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if skew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(skew))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if audience != "" && !slices.Contains(token.Audience(), audience) && stringClaim(token, "client_id") != audience {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidToken)
	}
	if err := checkSubject(token.Subject()); err != nil {
		return nil, err
	}

	claims := &Claims{
		Subject:  token.Subject(),
		Issuer:   token.Issuer(),
		Email:    stringClaim(token, "email"),
		Username: stringClaim(token, "cognito:username"),
	}
	if claims.Username == "" {
		claims.Username = stringClaim(token, "username")
	}
	return claims, nil
}

// checkSubject rejects empty subjects and subjects in the guest identity
// namespace, which would share quota records with guests.
func checkSubject(sub string) error {
	if sub == "" {
		return fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if strings.HasPrefix(sub, quota.GuestPrefix) {
		return fmt.Errorf("%w: subject uses reserved prefix %q", ErrInvalidToken, quota.GuestPrefix)
	}
	return nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
