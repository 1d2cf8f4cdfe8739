// Package shutdown runs cleanup hooks exactly once, either when the
// program finishes normally or when it receives SIGINT or SIGTERM.
//
// Usage:
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(func(ctx context.Context) error { return history.Save() })
//	stop := h.Watch()
//	defer stop()
//	...
//	_ = h.Shutdown()
package shutdown
