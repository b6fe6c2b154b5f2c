package remote

import (
	"sync"
	"time"
)

// AuthRequired is broadcast after the remote rejected the stored token and
// the session was purged.
type AuthRequired struct {
	Status int
	Path   string
	At     time.Time
}

// AuthNotifier fans AuthRequired events out to subscribers, for example a
// navigation guard that sends the user back to the login page.
type AuthNotifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(AuthRequired)
}

func NewAuthNotifier() *AuthNotifier {
	return &AuthNotifier{subs: make(map[int]func(AuthRequired))}
}

// Subscribe registers fn and returns a function that removes it.
func (n *AuthNotifier) Subscribe(fn func(AuthRequired)) (unsubscribe func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify calls every subscriber synchronously.
func (n *AuthNotifier) Notify(ev AuthRequired) {
	n.mu.RLock()
	fns := make([]func(AuthRequired), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}
