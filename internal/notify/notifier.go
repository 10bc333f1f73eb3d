// Package notify pushes auction highlights (sales, RTM outcomes, the end of
// the auction) and operational alerts to chat channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Level grades a message; senders may render it (e.g. embed colour).
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
)

// Message is one notification.
type Message struct {
	Title string
	Body  string
	Level Level
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	// Name returns a short identifier such as "telegram".
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Engine events are
// filtered by type; operational alerts always go out.
type Notifier struct {
	senders []Sender
	events  map[domain.EventType]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders. Only
// event types listed in events are forwarded by Notify; an empty list allows
// every type that Format knows how to render.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[domain.EventType]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventType(e)] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// Notify renders evt and sends it when its type is allowed.
func (n *Notifier) Notify(ctx context.Context, evt domain.Event, names TeamNames) error {
	if len(n.events) > 0 && !n.events[evt.Type] {
		n.logger.DebugContext(ctx, "event filtered out", slog.String("event", string(evt.Type)))
		return nil
	}
	msg, ok := Format(evt, names)
	if !ok {
		return nil
	}
	return n.dispatch(ctx, msg)
}

// Alert sends an operational message regardless of the event filter.
func (n *Notifier) Alert(ctx context.Context, title, body string) error {
	return n.dispatch(ctx, Message{Title: title, Body: body, Level: LevelWarn})
}

// dispatch sends msg to every sender. A failing sender does not prevent
// delivery to the others; failures are joined into the returned error.
func (n *Notifier) dispatch(ctx context.Context, msg Message) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("title", msg.Title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}
