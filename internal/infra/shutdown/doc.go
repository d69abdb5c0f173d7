// Package shutdown coordinates graceful process termination.
//
// A Handler blocks until SIGINT or SIGTERM arrives, or until Trigger is
// called, then runs the registered hooks in reverse registration order
// under a single deadline:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(srv.Shutdown)
//	err := h.Wait()
package shutdown
