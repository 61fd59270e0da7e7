package observability

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownManager drains the HTTP server and runs registered hooks when
// the process receives SIGINT or SIGTERM. The server stops accepting
// requests first so in-flight decisions finish their audit writes before
// the sinks close underneath them.
type ShutdownManager struct {
	logger          *Logger
	server          *http.Server
	hooks           []shutdownHook
	shutdownTimeout time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
	mu              sync.Mutex
}

// ShutdownFunc is a hook to call during shutdown
type ShutdownFunc func(context.Context) error

type shutdownHook struct {
	name string
	fn   ShutdownFunc
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *Logger, server *http.Server, timeout time.Duration) *ShutdownManager {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownManager{
		logger:          logger,
		server:          server,
		shutdownTimeout: timeout,
		stop:            make(chan struct{}),
	}
}

// RegisterShutdownFunc registers a named hook to call during shutdown.
func (sm *ShutdownManager) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.hooks = append(sm.hooks, shutdownHook{name: name, fn: fn})
}

// Stop triggers shutdown without a signal.
func (sm *ShutdownManager) Stop() {
	sm.stopOnce.Do(func() { close(sm.stop) })
}

// WaitForShutdown blocks until a shutdown signal arrives or Stop is
// called, then drains the server and runs every hook.
func (sm *ShutdownManager) WaitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sm.logger.Infof("Received signal %s, starting graceful shutdown", sig)
	case <-sm.stop:
		sm.logger.Info("Shutdown requested, starting graceful shutdown")
	}

	ctx, cancel := context.WithTimeout(context.Background(), sm.shutdownTimeout)
	defer cancel()

	if sm.server != nil {
		sm.logger.Info("Shutting down HTTP server")
		if err := sm.server.Shutdown(ctx); err != nil {
			sm.logger.WithError(err).Error("HTTP server shutdown error")
			return fmt.Errorf("HTTP server shutdown failed: %w", err)
		}
		sm.logger.Info("HTTP server shutdown complete")
	}

	sm.mu.Lock()
	hooks := sm.hooks
	sm.mu.Unlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(hooks))

	for _, hook := range hooks {
		if hook.fn == nil {
			continue
		}
		wg.Add(1)
		go func(hook shutdownHook) {
			defer wg.Done()
			if err := hook.fn(ctx); err != nil {
				sm.logger.WithError(err).Errorf("Shutdown hook %s failed", hook.name)
				errChan <- fmt.Errorf("%s: %w", hook.name, err)
			} else {
				sm.logger.Infof("Shutdown hook %s complete", hook.name)
			}
		}(hook)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		sm.logger.Warn("Shutdown timeout reached, forcing shutdown")
		return fmt.Errorf("shutdown timeout reached")
	}

	close(errChan)
	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown completed with %d errors: %v", len(errs), errs)
	}

	sm.logger.Info("Graceful shutdown complete")
	return nil
}
