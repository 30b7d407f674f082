package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/bizdir/bizdir/internal/client/api"
)

// Verifier asks the server about a token. Errors wrapping api.ErrRejected are definitive.
type Verifier interface {
	Verify(ctx context.Context, token string) error
}

// Coordinator owns the session of one client process. It is safe for concurrent use.
// Listeners must not call Start, Login, Logout or Close.
type Coordinator struct {
	store    Store
	verifier Verifier

	mu     sync.Mutex
	snap   Snapshot
	gen    uint64
	closed bool

	ctx    context.Context //nolint:containedctx // lifetime of the background verification
	cancel context.CancelFunc
	wg     sync.WaitGroup

	verified     chan struct{}
	verifiedDone bool

	notifyMu  sync.Mutex
	listeners map[int]func(Snapshot)
	nextID    int
}

// New creates a coordinator in StateUninitialized.
func New(store Store, verifier Verifier) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())

	return &Coordinator{
		store:     store,
		verifier:  verifier,
		ctx:       ctx,
		cancel:    cancel,
		verified:  make(chan struct{}),
		listeners: make(map[int]func(Snapshot)),
	}
}

// Start restores the persisted session. When Start returns, Initialized is true and the
// state is Authenticated or Anonymous; the server has not been asked yet. A persisted
// session is then verified once in the background.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if c.snap.State != StateUninitialized {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}

	c.snap.State = StateRestoring
	c.snap.Loading = true
	gen := c.gen
	c.mu.Unlock()
	c.notify()

	token, user, err := c.store.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted session, starting anonymous")

		token, user = "", nil
	}

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	// a Logout during the read wins over what was read
	if c.gen != gen || c.snap.State != StateRestoring {
		c.mu.Unlock()
		return nil
	}

	c.snap.Initialized = true

	if token == "" || !user.valid() {
		c.toAnonymous()
		c.markVerified()
		c.mu.Unlock()
		c.notify()

		return nil
	}

	c.snap.State = StateAuthenticated
	c.snap.Token = token
	c.snap.User = user.clone()
	c.snap.Loading = true

	c.wg.Add(1)

	go c.verify(gen, token)

	c.mu.Unlock()
	c.notify()

	return nil
}

// verify runs the single background verification of session generation gen.
func (c *Coordinator) verify(gen uint64, token string) {
	defer c.wg.Done()

	err := c.verifier.Verify(c.ctx, token)

	c.mu.Lock()

	if c.closed || c.gen != gen {
		c.mu.Unlock()
		log.Debug().Err(err).Msg("discarding outdated session verification")

		return
	}

	var apiErr *api.Error

	switch {
	case err == nil:
		c.snap.ServerReachable = Reachable
	case errors.Is(err, api.ErrRejected):
		log.Info().Err(err).Msg("server rejected the persisted session")

		if errClear := c.store.Clear(c.ctx); errClear != nil {
			log.Error().Err(errClear).Msg("failed to clear rejected session")
		}

		c.gen++
		c.toAnonymous()
		c.snap.ServerReachable = Reachable
	case errors.As(err, &apiErr):
		log.Warn().Err(err).Int("status", apiErr.Status).Msg("session verification inconclusive")

		c.snap.ServerReachable = Reachable
	default:
		log.Warn().Err(err).Msg("session verification failed, keeping session")

		c.snap.ServerReachable = Unreachable
	}

	c.snap.Loading = false
	c.markVerified()
	c.mu.Unlock()
	c.notify()
}

// Login records a fresh session. The session is persisted before the state changes.
func (c *Coordinator) Login(ctx context.Context, token string, user UserSnapshot) error {
	if token == "" || !user.valid() {
		return ErrInvalidSession
	}

	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	switch c.snap.State {
	case StateAuthenticated:
		c.mu.Unlock()
		return ErrAlreadyAuthenticated
	case StateRestoring:
		c.mu.Unlock()
		return ErrRestoring
	case StateUninitialized, StateAnonymous:
	}

	if err := c.store.Save(ctx, token, user); err != nil {
		c.mu.Unlock()
		return err //nolint:wrapcheck
	}

	c.gen++
	c.snap.State = StateAuthenticated
	c.snap.Token = token
	c.snap.User = user.clone()
	c.snap.Initialized = true
	c.snap.Loading = false
	c.markVerified()
	c.mu.Unlock()
	c.notify()

	return nil
}

// Logout clears the persisted session before it returns and leaves the coordinator
// Anonymous. Calling it again changes nothing.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	err := c.store.Clear(ctx)

	changed := c.snap.State != StateAnonymous || c.snap.Token != "" || c.snap.User != nil
	if changed {
		c.gen++
		c.toAnonymous()
		c.markVerified()
	}

	c.mu.Unlock()

	if changed {
		c.notify()
	}

	return err //nolint:wrapcheck
}

// Close stops the background verification and waits for it. Later results are dropped.
func (c *Coordinator) Close() {
	c.mu.Lock()

	if c.closed {
		c.mu.Unlock()
		return
	}

	c.closed = true
	c.cancel()
	c.markVerified()
	c.mu.Unlock()

	c.wg.Wait()
}

// Snapshot returns a copy of the current state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.snap
	s.User = c.snap.User.clone()

	return s
}

// Status returns StatusUnknown until Start decided, then authenticated or anonymous.
func (c *Coordinator) Status() Status {
	return c.Snapshot().Status()
}

// WaitVerified blocks until the background verification finished, was superseded or
// was never needed.
func (c *Coordinator) WaitVerified(ctx context.Context) error {
	select {
	case <-c.verified:
		return nil
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	}
}

// Subscribe registers fn to be called with the latest snapshot after every change.
// The returned function removes it.
func (c *Coordinator) Subscribe(fn func(Snapshot)) func() {
	c.notifyMu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.notifyMu.Unlock()

	return func() {
		c.notifyMu.Lock()
		delete(c.listeners, id)
		c.notifyMu.Unlock()
	}
}

// notify delivers the current snapshot. Deliveries are serialized and always carry the
// state at delivery time, so the last call a listener sees is the latest state.
func (c *Coordinator) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if len(c.listeners) == 0 {
		return
	}

	snap := c.Snapshot()
	for _, fn := range c.listeners {
		fn(snap)
	}
}

// toAnonymous must be called with mu held.
func (c *Coordinator) toAnonymous() {
	c.snap.State = StateAnonymous
	c.snap.Token = ""
	c.snap.User = nil
	c.snap.Loading = false
	c.snap.Initialized = true
}

// markVerified must be called with mu held.
func (c *Coordinator) markVerified() {
	if !c.verifiedDone {
		c.verifiedDone = true
		close(c.verified)
	}
}
