package session

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrAuthenticationRequired is returned when no stored token can be used or
// renewed; the caller must obtain a fresh session through login.
var ErrAuthenticationRequired = errors.New("session: authentication required")

// State describes the coordinator's view of the current session.
type State int

const (
	NoSession State = iota
	Valid
	Expired
	Refreshing
	Invalid
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no_session"
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Refreshing:
		return "refreshing"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// RefreshFunc exchanges a refresh token for a new pair over the network.
// A returned pair with an empty RefreshToken keeps the old refresh token.
type RefreshFunc func(ctx context.Context, refreshToken string) (Tokens, error)

// Config carries the coordinator's collaborators. All fields are required.
type Config struct {
	Storage TokenStorage
	Bus     *Broadcaster
	Refresh RefreshFunc
	// Expired reports whether a token is expired or unusable; it must not
	// perform network calls.
	Expired func(token string) bool
}

// Coordinator owns a token session. Concurrent GetValidatedToken calls that
// need a refresh share one network call; its result is applied once and
// handed to every waiter.
type Coordinator struct {
	storage TokenStorage
	bus     *Broadcaster
	refresh RefreshFunc
	expired func(string) bool

	group singleflight.Group

	mu           sync.Mutex
	state        State
	manualLogout bool
}

func NewCoordinator(cfg Config) (*Coordinator, error) {
	if cfg.Storage == nil || cfg.Bus == nil || cfg.Refresh == nil || cfg.Expired == nil {
		return nil, errors.New("session: storage, bus, refresh and expired are all required")
	}
	c := &Coordinator{
		storage: cfg.Storage,
		bus:     cfg.Bus,
		refresh: cfg.Refresh,
		expired: cfg.Expired,
	}
	if t, ok := cfg.Storage.Load(); ok && t.AccessToken != "" {
		if cfg.Expired(t.AccessToken) {
			c.state = Expired
		} else {
			c.state = Valid
		}
	}
	return c, nil
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ManualLogout reports whether the session ended by an explicit Logout
// call. The latch holds until the next SetTokens.
func (c *Coordinator) ManualLogout() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manualLogout
}

// SetTokens installs a freshly obtained pair (login), clears the manual
// logout latch and broadcasts a login event.
func (c *Coordinator) SetTokens(accessToken, refreshToken string) {
	c.storage.Store(Tokens{AccessToken: accessToken, RefreshToken: refreshToken})
	c.mu.Lock()
	c.state = Valid
	c.manualLogout = false
	c.mu.Unlock()
	c.bus.PublishLogin(LoginEvent{AccessToken: accessToken, RefreshToken: refreshToken})
}

// Logout discards the session, latches the manual flag and broadcasts a
// logout event.
func (c *Coordinator) Logout() {
	c.storage.Clear()
	c.mu.Lock()
	c.state = NoSession
	c.manualLogout = true
	c.mu.Unlock()
	c.bus.PublishLogout(LogoutEvent{Manual: true})
}

// GetValidatedToken returns an access token that was unexpired at the time
// of the check. An expired access token with a usable refresh token
// triggers exactly one refresh call no matter how many goroutines arrive
// here concurrently; all of them receive the same renewed token. With
// neither token usable it fails immediately without touching the network.
func (c *Coordinator) GetValidatedToken(ctx context.Context) (string, error) {
	tokens, ok := c.storage.Load()
	if !ok || (tokens.AccessToken == "" && tokens.RefreshToken == "") {
		c.setState(NoSession)
		return "", ErrAuthenticationRequired
	}

	if tokens.AccessToken != "" && !c.expired(tokens.AccessToken) {
		c.setState(Valid)
		return tokens.AccessToken, nil
	}

	if tokens.RefreshToken == "" || c.expired(tokens.RefreshToken) {
		c.setState(Invalid)
		return "", ErrAuthenticationRequired
	}

	c.setState(Refreshing)
	refreshToken := tokens.RefreshToken

	// The flight runs detached from any single caller's context so that a
	// cancelled waiter does not abort the refresh other waiters share. The
	// flight itself settles the final state, so Refreshing never sticks.
	ch := c.group.DoChan(refreshToken, func() (any, error) {
		defer c.group.Forget(refreshToken)
		renewed, err := c.refresh(context.WithoutCancel(ctx), refreshToken)
		if err != nil {
			c.applyRefreshFailure()
			return nil, err
		}
		if renewed.RefreshToken == "" {
			renewed.RefreshToken = refreshToken
		}
		c.applyRefreshSuccess(renewed)
		return renewed, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(Tokens).AccessToken, nil
	}
}

// Listen applies session events published by other coordinators sharing
// the bus. Applied updates are never re-broadcast. Blocks until ctx is
// cancelled; run it in its own goroutine.
func (c *Coordinator) Listen(ctx context.Context) {
	login := c.bus.SubscribeLogin()
	logout := c.bus.SubscribeLogout()
	refresh := c.bus.SubscribeRefresh()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-login:
			c.storage.Store(Tokens{AccessToken: ev.AccessToken, RefreshToken: ev.RefreshToken})
			c.mu.Lock()
			c.state = Valid
			c.manualLogout = false
			c.mu.Unlock()
		case <-logout:
			c.storage.Clear()
			c.setState(NoSession)
		case ev := <-refresh:
			if t, ok := c.storage.Load(); ok {
				t.AccessToken = ev.AccessToken
				c.storage.Store(t)
			}
			c.setState(Valid)
		}
	}
}

func (c *Coordinator) applyRefreshSuccess(renewed Tokens) {
	c.storage.Store(renewed)
	c.setState(Valid)
	c.bus.PublishRefresh(RefreshEvent{AccessToken: renewed.AccessToken})
}

func (c *Coordinator) applyRefreshFailure() {
	c.storage.Clear()
	c.setState(Invalid)
	c.bus.PublishLogout(LogoutEvent{Manual: false})
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
