// Package session holds the signed-in identity of a client and tells
// interested parts of the app when it changes.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	errorvalues "github.com/limbo/habitstreak/internal/error_values"
	"github.com/limbo/habitstreak/pkg/entity"
	jwtservice "github.com/limbo/habitstreak/pkg/jwt_service"
)

type Identity struct {
	UserID    uuid.UUID
	Email     string
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

// Listener gets the new identity, signedIn is false after sign-out.
type Listener func(id Identity, signedIn bool)

type Authenticator interface {
	Login(ctx context.Context, email, password string) (*entity.User, error)
}

type TokenIssuer interface {
	GenerateToken(user *entity.User) (string, error)
	ParseToken(tokenString string) (*jwtservice.Claims, error)
}

// Revoker is a server-side list of tokens that must not be accepted anymore.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type Option func(*Gate)

func WithTokenStore(ts TokenStore) Option {
	return func(g *Gate) {
		g.store = ts
	}
}

func WithRevoker(r Revoker) Option {
	return func(g *Gate) {
		g.revoker = r
	}
}

// Gate is the single source of truth about who is signed in. Sign-in,
// sign-out and restore are serialized. Listeners run after the identity is
// swapped, outside the state lock, and must not call back into SignIn,
// SignOut or Restore.
type Gate struct {
	auth   Authenticator
	tokens TokenIssuer

	store   TokenStore
	revoker Revoker

	opMu sync.Mutex

	mu      sync.RWMutex
	current *Identity

	subsMu  sync.Mutex
	subs    map[int]Listener
	nextSub int
}

func NewGate(auth Authenticator, tokens TokenIssuer, opts ...Option) *Gate {
	g := &Gate{
		auth:   auth,
		tokens: tokens,
		subs:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Current() (Identity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.current == nil {
		return Identity{}, false
	}
	return *g.current, true
}

// Require is Current for callers that can't proceed anonymously.
func (g *Gate) Require() (Identity, error) {
	id, ok := g.Current()
	if !ok {
		return Identity{}, errorvalues.ErrNotAuthenticated
	}
	return id, nil
}

func (g *Gate) SignIn(ctx context.Context, email, password string) (Identity, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	user, err := g.auth.Login(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	token, err := g.tokens.GenerateToken(user)
	if err != nil {
		return Identity{}, errors.New("generating token error: " + err.Error())
	}
	id, err := g.identityOf(token)
	if err != nil {
		return Identity{}, err
	}
	if g.store != nil {
		if err = g.store.Save(token); err != nil {
			slog.WarnContext(ctx, "session won't survive restart", slog.String("error", err.Error()))
		}
	}
	g.set(&id)
	return id, nil
}

// SignOut forgets the identity and the persisted token. The token is revoked
// when a revoker is configured; local state is cleared even if that fails.
func (g *Gate) SignOut(ctx context.Context) error {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	prev, ok := g.Current()
	if !ok {
		return nil
	}
	g.set(nil)

	var errs []error
	if g.store != nil {
		if err := g.store.Clear(); err != nil {
			errs = append(errs, err)
		}
	}
	if g.revoker != nil && prev.TokenID != "" {
		if err := g.revoker.Revoke(ctx, prev.TokenID, time.Until(prev.ExpiresAt)); err != nil {
			errs = append(errs, errors.New("revoking token error: "+err.Error()))
		}
	}
	return errors.Join(errs...)
}

// Restore signs in with the persisted token if it is still good. A token that
// expired, fails verification or was revoked is dropped from the store.
func (g *Gate) Restore(ctx context.Context) (bool, error) {
	g.opMu.Lock()
	defer g.opMu.Unlock()

	if g.store == nil {
		return false, nil
	}
	token, err := g.store.Load()
	if err != nil {
		if errors.Is(err, ErrNoToken) {
			return false, nil
		}
		return false, err
	}
	id, err := g.identityOf(token)
	if err != nil {
		slog.InfoContext(ctx, "dropping stored token", slog.String("reason", err.Error()))
		return false, g.store.Clear()
	}
	if g.revoker != nil {
		revoked, err := g.revoker.IsRevoked(ctx, id.TokenID)
		if err != nil {
			return false, err
		}
		if revoked {
			slog.InfoContext(ctx, "dropping stored token", slog.String("reason", "revoked"))
			return false, g.store.Clear()
		}
	}
	g.set(&id)
	return true, nil
}

// Subscribe registers fn for identity changes. The returned func removes it.
func (g *Gate) Subscribe(fn Listener) func() {
	g.subsMu.Lock()
	defer g.subsMu.Unlock()
	key := g.nextSub
	g.nextSub++
	g.subs[key] = fn
	return func() {
		g.subsMu.Lock()
		defer g.subsMu.Unlock()
		delete(g.subs, key)
	}
}

func (g *Gate) identityOf(token string) (Identity, error) {
	claims, err := g.tokens.ParseToken(token)
	if err != nil {
		return Identity{}, err
	}
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, errorvalues.ErrInvalidToken
	}
	id := Identity{
		UserID:  uid,
		Email:   claims.Email,
		Token:   token,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}

func (g *Gate) set(id *Identity) {
	g.mu.Lock()
	g.current = id
	g.mu.Unlock()

	g.subsMu.Lock()
	listeners := make([]Listener, 0, len(g.subs))
	for _, fn := range g.subs {
		listeners = append(listeners, fn)
	}
	g.subsMu.Unlock()

	var (
		value    Identity
		signedIn bool
	)
	if id != nil {
		value, signedIn = *id, true
	}
	for _, fn := range listeners {
		fn(value, signedIn)
	}
}
