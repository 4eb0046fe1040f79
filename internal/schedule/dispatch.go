package schedule

import (
	"context"
	"fmt"
)

// CommandHandler executes an operator action outside the scheduler.
type CommandHandler interface {
	Handle(ctx context.Context, action Action, e Event) error
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, action Action, e Event) error

// Handle calls f.
func (f CommandHandlerFunc) Handle(ctx context.Context, action Action, e Event) error {
	return f(ctx, action, e)
}

// Dispatcher routes action requests to command handlers after checking the
// event still offers the action.
type Dispatcher struct {
	source   EventSource
	handlers map[Action]CommandHandler
	fallback CommandHandler
}

// NewDispatcher creates a Dispatcher. fallback, if non-nil, handles every
// action without a dedicated handler.
func NewDispatcher(source EventSource, fallback CommandHandler) *Dispatcher {
	return &Dispatcher{
		source:   source,
		handlers: make(map[Action]CommandHandler),
		fallback: fallback,
	}
}

// Handle registers h for action, replacing any previous handler.
func (d *Dispatcher) Handle(action Action, h CommandHandler) {
	d.handlers[action] = h
}

// Perform executes action on the event identified by eventID.
func (d *Dispatcher) Perform(ctx context.Context, action Action, eventID string) error {
	e, err := d.source.Event(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", eventID, err)
	}
	if !e.Actions().Has(action) {
		return fmt.Errorf("%w: %s on %s %s", ErrActionNotAllowed, action, e.Kind, e.ID)
	}
	h, ok := d.handlers[action]
	if !ok {
		h = d.fallback
	}
	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, action)
	}
	if err := h.Handle(ctx, action, e); err != nil {
		return fmt.Errorf("%s %s: %w", action, e.ID, err)
	}
	return nil
}
