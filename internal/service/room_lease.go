package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/notify"
)

// RoomKey is the lock held by the process running the auction.
const RoomKey = "auction-room"

// RoomLease makes sure only one process runs the auction at a time.
type RoomLease struct {
	locks    domain.LockManager
	ttl      time.Duration
	notifier *notify.Notifier
	logger   *slog.Logger

	lease domain.Lease
}

// NewRoomLease creates a RoomLease. notifier may be nil.
func NewRoomLease(locks domain.LockManager, ttl time.Duration, notifier *notify.Notifier, logger *slog.Logger) *RoomLease {
	return &RoomLease{
		locks:    locks,
		ttl:      ttl,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "room_lease")),
	}
}

// Acquire takes the room lock. It fails with domain.ErrLockHeld when
// another process is already running the auction.
func (r *RoomLease) Acquire(ctx context.Context) error {
	lease, err := r.locks.Acquire(ctx, RoomKey, r.ttl)
	if err != nil {
		return fmt.Errorf("room_lease: acquire: %w", err)
	}
	r.lease = lease
	r.logger.InfoContext(ctx, "auction room lease acquired", slog.Duration("ttl", r.ttl))
	return nil
}

// Run keeps the lease alive until ctx is done, then releases it. Losing the
// lease is fatal: the returned error stops the process before two engines
// accept bids for the same room.
func (r *RoomLease) Run(ctx context.Context) error {
	if r.lease == nil {
		return fmt.Errorf("room_lease: run before acquire: %w", domain.ErrInvalidState)
	}
	defer r.lease.Release()

	ticker := time.NewTicker(r.ttl / 3)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("releasing auction room lease")
			return nil
		case <-ticker.C:
		}

		err := r.lease.Extend(ctx, r.ttl)
		switch {
		case err == nil:
			failures = 0
			continue
		case errors.Is(err, domain.ErrLockHeld):
			r.lost(ctx, "lease taken over by another process")
			return fmt.Errorf("room_lease: %w", err)
		}

		// Transient error: the key survives ttl, so two more tries fit.
		failures++
		r.logger.WarnContext(ctx, "lease extend failed", slog.Int("failures", failures), slog.String("error", err.Error()))
		if failures >= 2 {
			r.lost(ctx, "lease could not be extended")
			return fmt.Errorf("room_lease: extend: %w", err)
		}
	}
}

func (r *RoomLease) lost(ctx context.Context, why string) {
	r.logger.ErrorContext(ctx, "auction room lease lost", slog.String("reason", why))
	if r.notifier != nil {
		_ = r.notifier.Alert(context.WithoutCancel(ctx), "Auction room lease lost", why)
	}
}
