package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rollcall/internal/auth"
	"rollcall/internal/common"
)

// State is the client-side session lifecycle.
type State int

const (
	Uninitialized State = iota
	Loading
	Authenticated
	Anonymous
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Anonymous:
		return "anonymous"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Local storage keys.
const (
	KeyFirstLaunch = "first_launch"
	KeySession     = "session"
)

// Authenticator is the remote side of sign-in, usually the API client.
type Authenticator interface {
	SignIn(ctx context.Context, role string, c Credentials) (Result, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	SignOut(ctx context.Context, accessToken string) error
}

// LocalStore is a small persistent key/value store on the client.
type LocalStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Persisted is the session blob kept in local storage.
type Persisted struct {
	Role         string          `json:"role"`
	Record       json.RawMessage `json:"record"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
}

// Holder owns the current client session. Construct one per process and pass it around.
type Holder struct {
	mu      sync.RWMutex
	remote  Authenticator
	local   LocalStore
	state   State
	current *Persisted
}

func NewHolder(remote Authenticator, local LocalStore) *Holder {
	return &Holder{remote: remote, local: local}
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Current returns the signed-in session, or false when anonymous.
func (h *Holder) Current() (Persisted, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.state != Authenticated || h.current == nil {
		return Persisted{}, false
	}
	return *h.current, true
}

// Token returns the access token of the current session, if any.
func (h *Holder) Token() string {
	p, _ := h.Current()
	return p.Token
}

// Init restores a persisted session. A corrupt blob is discarded.
func (h *Holder) Init(ctx context.Context) error {
	h.set(Loading, nil)

	raw, ok, err := h.local.Get(ctx, KeySession)
	if err != nil {
		h.set(Anonymous, nil)
		return fmt.Errorf("read session: %w", err)
	}
	if !ok {
		h.set(Anonymous, nil)
		return nil
	}
	var p Persisted
	if err := json.Unmarshal([]byte(raw), &p); err != nil || p.Token == "" || p.Role == "" {
		_ = h.local.Delete(ctx, KeySession)
		h.set(Anonymous, nil)
		return nil
	}
	h.set(Authenticated, &p)
	return nil
}

// SignIn authenticates remotely and persists the session. On failure the
// previous session, if any, stays in place.
func (h *Holder) SignIn(ctx context.Context, role string, c Credentials) error {
	h.mu.Lock()
	prevState, prev := h.state, h.current
	h.state = Loading
	h.mu.Unlock()

	res, err := h.remote.SignIn(ctx, role, c)
	if err != nil {
		if prevState != Authenticated {
			prevState = Anonymous
		}
		h.set(prevState, prev)
		return err
	}

	p := Persisted{
		Role:         res.Session.Role,
		Record:       res.Session.Record,
		Token:        res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}
	if err := h.persist(ctx, p); err != nil {
		h.set(Anonymous, nil)
		return err
	}
	h.set(Authenticated, &p)
	return nil
}

// Refresh trades the stored refresh token for a new token pair and persists
// it. When the API rejects the refresh token the session is dropped and the
// holder becomes Anonymous. Transport failures leave the session in place.
func (h *Holder) Refresh(ctx context.Context) error {
	cur, ok := h.Current()
	if !ok {
		return common.ErrUnauthorized
	}
	if cur.RefreshToken == "" {
		h.drop(ctx)
		return common.ErrUnauthorized
	}

	tokens, err := h.remote.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			h.drop(ctx)
		}
		return fmt.Errorf("refresh session: %w", err)
	}

	cur.Token = tokens.AccessToken
	if tokens.RefreshToken != "" {
		cur.RefreshToken = tokens.RefreshToken
	}
	if err := h.persist(ctx, cur); err != nil {
		return err
	}
	h.set(Authenticated, &cur)
	return nil
}

// Do runs call and, if the API answers 401, refreshes the session once and
// runs call again. call must read the access token through Token.
func (h *Holder) Do(ctx context.Context, call func(ctx context.Context) error) error {
	err := call(ctx)
	if !errors.Is(err, common.ErrUnauthorized) || h.State() != Authenticated {
		return err
	}
	if rerr := h.Refresh(ctx); rerr != nil {
		return rerr
	}
	return call(ctx)
}

// SignOut ends the remote session and clears local state. Local state is
// cleared even when the remote call fails; that error is still returned
// unless the API no longer knows the session.
func (h *Holder) SignOut(ctx context.Context) error {
	var remoteErr error
	if h.Token() != "" {
		remoteErr = h.Do(ctx, func(ctx context.Context) error {
			return h.remote.SignOut(ctx, h.Token())
		})
		if errors.Is(remoteErr, common.ErrUnauthorized) {
			remoteErr = nil
		}
	}
	localErr := h.local.Delete(ctx, KeySession)
	h.set(Anonymous, nil)
	return errors.Join(remoteErr, localErr)
}

// FirstLaunch reports whether this installation has not completed its first launch yet.
func (h *Holder) FirstLaunch(ctx context.Context) (bool, error) {
	v, ok, err := h.local.Get(ctx, KeyFirstLaunch)
	if err != nil {
		return false, err
	}
	return !ok || v != "false", nil
}

func (h *Holder) CompleteFirstLaunch(ctx context.Context) error {
	return h.local.Set(ctx, KeyFirstLaunch, "false")
}

func (h *Holder) persist(ctx context.Context, p Persisted) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := h.local.Set(ctx, KeySession, string(raw)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (h *Holder) drop(ctx context.Context) {
	_ = h.local.Delete(ctx, KeySession)
	h.set(Anonymous, nil)
}

func (h *Holder) set(s State, p *Persisted) {
	h.mu.Lock()
	h.state, h.current = s, p
	h.mu.Unlock()
}
