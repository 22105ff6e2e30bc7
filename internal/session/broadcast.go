package session

import "sync"

// LoginEvent announces a fresh token pair obtained by explicit login.
type LoginEvent struct {
	AccessToken  string
	RefreshToken string
}

// LogoutEvent announces the session ended. Manual is true when the user
// asked for it rather than the session being invalidated.
type LogoutEvent struct {
	Manual bool
}

// RefreshEvent announces a renewed access token; the refresh token is
// unchanged.
type RefreshEvent struct {
	AccessToken string
}

const eventBuffer = 8

// Broadcaster fans session events out to subscribers. Delivery is
// fire-and-forget and at most once: a subscriber that is not draining its
// channel misses events rather than blocking the publisher. Per subscriber
// each channel preserves publish order.
type Broadcaster struct {
	mu      sync.Mutex
	login   []chan LoginEvent
	logout  []chan LogoutEvent
	refresh []chan RefreshEvent
}

func NewBroadcaster() *Broadcaster { return &Broadcaster{} }

func (b *Broadcaster) SubscribeLogin() <-chan LoginEvent {
	ch := make(chan LoginEvent, eventBuffer)
	b.mu.Lock()
	b.login = append(b.login, ch)
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) SubscribeLogout() <-chan LogoutEvent {
	ch := make(chan LogoutEvent, eventBuffer)
	b.mu.Lock()
	b.logout = append(b.logout, ch)
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) SubscribeRefresh() <-chan RefreshEvent {
	ch := make(chan RefreshEvent, eventBuffer)
	b.mu.Lock()
	b.refresh = append(b.refresh, ch)
	b.mu.Unlock()
	return ch
}

func (b *Broadcaster) PublishLogin(ev LoginEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.login {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) PublishLogout(ev LogoutEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.logout {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Broadcaster) PublishRefresh(ev RefreshEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.refresh {
		select {
		case ch <- ev:
		default:
		}
	}
}
