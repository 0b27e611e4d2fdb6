package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"plausible-bridge/internal/settings"
)

// ErrUnhandled is returned by Dispatch when no handler is registered for a message.
var ErrUnhandled = errors.New("no handler registered")

// HandlerFunc reacts to one message. s is the settings snapshot the message
// is dispatched under.
type HandlerFunc func(ctx context.Context, s settings.Settings, msg Message) (Result, error)

// Dispatcher routes messages to handlers.
type Dispatcher struct {
	store  settings.Store
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewDispatcher creates a Dispatcher reading settings snapshots from store.
func NewDispatcher(store settings.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		logger:   logger,
		handlers: make(map[string]HandlerFunc),
	}
}

// Handle registers h for messages of the given kind, replacing any previous handler.
func (d *Dispatcher) Handle(kind string, h HandlerFunc) {
	d.mu.Lock()
	d.handlers[kind] = h
	d.mu.Unlock()
}

// On registers a handler for message type M.
func On[M Message](d *Dispatcher, h func(ctx context.Context, s settings.Settings, msg M) (Result, error)) {
	var zero M
	d.Handle(zero.Kind(), func(ctx context.Context, s settings.Settings, msg Message) (Result, error) {
		m, ok := msg.(M)
		if !ok {
			return Result{}, fmt.Errorf("handler for %s got %T", zero.Kind(), msg)
		}
		return h(ctx, s, m)
	})
}

// Dispatch runs the handler for msg. SettingsChanged is handled under its
// New snapshot; every other message under the stored settings.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) (Result, error) {
	kind := msg.Kind()

	d.mu.RLock()
	h, ok := d.handlers[kind]
	d.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", kind, ErrUnhandled)
	}

	var s settings.Settings
	if sc, isChange := msg.(SettingsChanged); isChange {
		s = sc.New
	} else {
		var err error
		if s, err = d.store.Get(ctx); err != nil {
			return Result{}, fmt.Errorf("loading settings: %w", err)
		}
	}

	start := time.Now()
	res, err := h(ctx, s, msg)
	if err != nil {
		d.logger.Debug("event handler failed",
			slog.String("event", kind),
			slog.String("error", err.Error()),
		)
		return res, err
	}
	d.logger.Debug("event handled",
		slog.String("event", kind),
		slog.Duration("duration", time.Since(start)),
	)
	return res, nil
}
