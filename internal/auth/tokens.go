package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshMargin is the minimum remaining lifetime of a token handed out by Token
const RefreshMargin = 300 * time.Second

// Credential is a bearer token and the exp claim decoded from it
type Credential struct {
	Token  string
	Expiry int64 // epoch seconds
}

// ExpiresAt returns the expiry as a time
func (c Credential) ExpiresAt() time.Time {
	return time.Unix(c.Expiry, 0)
}

// TokenCache keeps a single bearer credential valid for the life of the
// process. Reads are concurrent; at most one renewal runs at a time and
// every caller waiting on it receives the token it produced.
type TokenCache struct {
	provider Provider
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.RWMutex
	cred Credential

	group singleflight.Group
}

// NewTokenCache creates an empty cache backed by provider. Call Initialize
// before Token.
func NewTokenCache(provider Provider) *TokenCache {
	return &TokenCache{
		provider: provider,
		now:      time.Now,
		logger:   slog.Default().With("component", "auth.tokens"),
	}
}

// SetClock replaces the wall clock, for tests
func (c *TokenCache) SetClock(now func() time.Time) {
	c.now = now
}

// Initialize authenticates with username and password and stores the
// resulting credential
func (c *TokenCache) Initialize(ctx context.Context, username, password string) (Credential, error) {
	token, err := c.provider.Authenticate(ctx, username, password)
	if err != nil {
		return Credential{}, asAuthError("authenticate", err)
	}

	cred, err := newCredential(token)
	if err != nil {
		return Credential{}, err
	}

	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	c.logger.Info("authenticated", "expires_at", cred.ExpiresAt().UTC().Format(time.RFC3339))
	return cred, nil
}

// Token returns a bearer token valid for at least RefreshMargin, renewing
// the credential first when it is about to expire
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if cred := c.current(); !c.expiring(cred) {
		return cred.Token, nil
	}

	v, err, shared := c.group.Do("renew", func() (interface{}, error) {
		// A renewal may have finished between our check and entering Do
		if cred := c.current(); !c.expiring(cred) {
			return cred, nil
		}
		return c.renew(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("joined in-flight renewal")
	}
	return v.(Credential).Token, nil
}

// Credential returns a copy of the stored credential without renewing it
func (c *TokenCache) Credential() Credential {
	return c.current()
}

func (c *TokenCache) renew(ctx context.Context) (Credential, error) {
	if c.current().Token == "" {
		return Credential{}, &AuthError{Op: "renew", Err: errors.New("token cache not initialized")}
	}

	token, err := c.provider.Renew(ctx)
	if err != nil {
		c.logger.Warn("token renewal failed", "err", err)
		return Credential{}, asAuthError("renew", err)
	}

	cred, err := newCredential(token)
	if err != nil {
		return Credential{}, err
	}

	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()

	c.logger.Info("token renewed", "expires_at", cred.ExpiresAt().UTC().Format(time.RFC3339))
	return cred, nil
}

func (c *TokenCache) current() Credential {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cred
}

// expiring reports whether now > expiry - RefreshMargin
func (c *TokenCache) expiring(cred Credential) bool {
	return c.now().Unix() > cred.Expiry-int64(RefreshMargin/time.Second)
}

func newCredential(token string) (Credential, error) {
	if token == "" {
		return Credential{}, &AuthError{Op: "decode", Err: errors.New("identity provider returned an empty token")}
	}
	exp, err := DecodeExpiry(token)
	if err != nil {
		return Credential{}, err
	}
	return Credential{Token: token, Expiry: exp}, nil
}

func asAuthError(op string, err error) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return err
	}
	return &AuthError{Op: op, Err: err}
}
