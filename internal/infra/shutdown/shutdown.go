package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// SignalExitCode is the exit status after a signal-triggered shutdown.
const SignalExitCode = 130

// Handler runs registered cleanup hooks once.
type Handler struct {
	timeout time.Duration
	exit    func(int)

	mu    sync.Mutex
	hooks []func(context.Context) error
	once  sync.Once
	err   error
	done  chan struct{}
}

// NewHandler creates a new shutdown handler. timeout bounds the hooks.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		exit:    os.Exit,
		hooks:   make([]func(context.Context) error, 0),
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a shutdown hook.
// Hooks are called in reverse order of registration.
func (h *Handler) OnShutdown(hook func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Shutdown runs the hooks in reverse order. Only the first call runs them;
// later calls return the same result.
func (h *Handler) Shutdown() error {
	h.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		h.mu.Lock()
		hooks := make([]func(context.Context) error, len(h.hooks))
		copy(hooks, h.hooks)
		h.mu.Unlock()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			if err := hooks[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}

		h.err = errors.Join(errs...)
		close(h.done)
	})
	return h.err
}

// Watch runs Shutdown and exits with SignalExitCode when SIGINT or SIGTERM
// arrives. The returned function stops watching.
func (h *Handler) Watch() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quit := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-sigCh:
			_ = h.Shutdown()
			h.exit(SignalExitCode)
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigCh)
			close(quit)
			wg.Wait()
		})
	}
}

// Done returns a channel that closes when the hooks have run.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
