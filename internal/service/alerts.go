package service

import (
	"context"
	"log/slog"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/notify"
)

// Alerts forwards auction highlights to the notifier.
type Alerts struct {
	notifier *notify.Notifier
	engine   *auction.Engine
	logger   *slog.Logger
}

// NewAlerts creates an Alerts relay. Team names are looked up on engine.
func NewAlerts(notifier *notify.Notifier, engine *auction.Engine, logger *slog.Logger) *Alerts {
	return &Alerts{
		notifier: notifier,
		engine:   engine,
		logger:   logger.With(slog.String("component", "alerts")),
	}
}

// Run relays events until the channel closes.
func (a *Alerts) Run(ctx context.Context, events <-chan domain.Event) error {
	names := notify.TeamNames(func(id string) string {
		if t, ok := a.engine.Team(id); ok {
			return t.Name
		}
		return ""
	})
	for evt := range events {
		if err := a.notifier.Notify(context.WithoutCancel(ctx), evt, names); err != nil {
			a.logger.WarnContext(ctx, "notification failed",
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}
