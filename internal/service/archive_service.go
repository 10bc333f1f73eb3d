package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/auctiond/internal/auction"
	s3blob "github.com/alanyoungcy/auctiond/internal/blob/s3"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

// ArchiveService uploads each finished auction to blob storage and lists
// what has been archived.
type ArchiveService struct {
	engine   *auction.Engine
	archiver domain.Archiver
	reader   domain.BlobReader
	bids     domain.BidStore
	rtm      domain.RTMStore
	retry    RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService. bids and rtm may be nil; they
// are only consulted when the engine has already moved on to a new session.
func NewArchiveService(
	engine *auction.Engine,
	archiver domain.Archiver,
	reader domain.BlobReader,
	bids domain.BidStore,
	rtm domain.RTMStore,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		engine:   engine,
		archiver: archiver,
		reader:   reader,
		bids:     bids,
		rtm:      rtm,
		retry:    DefaultRetryPolicy(),
		sleep:    sleepCtx,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run archives every completed auction until the channel closes.
func (a *ArchiveService) Run(ctx context.Context, events <-chan domain.Event) error {
	for evt := range events {
		if evt.Type != domain.EventAuctionCompleted {
			continue
		}
		prefix, err := a.archive(ctx, evt)
		if err != nil {
			a.logger.ErrorContext(ctx, "archive failed",
				slog.String("session_id", evt.SessionID),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.InfoContext(ctx, "auction archived",
			slog.String("session_id", evt.SessionID),
			slog.String("prefix", prefix),
		)
	}
	return nil
}

func (a *ArchiveService) archive(ctx context.Context, evt domain.Event) (string, error) {
	archive, err := a.collect(ctx, evt)
	if err != nil {
		return "", err
	}
	prefix := s3blob.SessionPrefix(archive.SessionID, archive.CompletedAt)
	if a.reader != nil {
		// A manifest is only written after every file, so its presence
		// means a previous run finished the upload.
		done, err := a.reader.Exists(ctx, prefix+"manifest.json")
		if err != nil {
			a.logger.WarnContext(ctx, "archive lookup failed", slog.String("prefix", prefix), slog.String("error", err.Error()))
		}
		if done {
			return prefix, nil
		}
	}

	delay := a.retry.BaseDelay
	for attempt := 1; ; attempt++ {
		prefix, err := a.archiver.ArchiveSession(context.WithoutCancel(ctx), archive)
		if err == nil {
			return prefix, nil
		}
		if attempt >= a.retry.Attempts {
			return "", fmt.Errorf("archive_service: after %d attempts: %w", attempt, err)
		}
		if serr := a.sleep(ctx, delay); serr != nil {
			return "", fmt.Errorf("archive_service: %w", err)
		}
		delay = min(delay*2, a.retry.MaxDelay)
	}
}

// collect prefers the engine's own record. When a new auction has already
// started, bids and RTM attempts come from the stores and the rosters from
// the completion event.
func (a *ArchiveService) collect(ctx context.Context, evt domain.Event) (domain.SessionArchive, error) {
	archive := a.engine.Archive()
	if archive.SessionID == evt.SessionID {
		archive.CompletedAt = evt.At
		return archive, nil
	}
	if a.bids == nil || a.rtm == nil {
		return domain.SessionArchive{}, fmt.Errorf("archive_service: session %s is gone: %w", evt.SessionID, domain.ErrNotFound)
	}

	bids, err := a.bids.ListBySession(ctx, evt.SessionID)
	if err != nil {
		return domain.SessionArchive{}, fmt.Errorf("archive_service: list bids: %w", err)
	}
	attempts, err := a.rtm.ListBySession(ctx, evt.SessionID)
	if err != nil {
		return domain.SessionArchive{}, fmt.Errorf("archive_service: list rtm attempts: %w", err)
	}
	return domain.SessionArchive{
		SessionID:   evt.SessionID,
		CompletedAt: evt.At,
		Bids:        bids,
		RTMAttempts: attempts,
		Players:     evt.Players,
		Teams:       evt.Teams,
	}, nil
}

// List returns the manifests of every archived auction, newest first.
// Operators only.
func (a *ArchiveService) List(ctx context.Context, actor domain.Actor) ([]s3blob.Manifest, error) {
	if err := authorize(actor, "archives", operators...); err != nil {
		return nil, err
	}
	if a.reader == nil {
		return []s3blob.Manifest{}, nil
	}
	infos, err := a.reader.List(ctx, "archive/")
	if err != nil {
		return nil, fmt.Errorf("archive_service: list: %w", err)
	}

	out := []s3blob.Manifest{}
	for _, info := range infos {
		if path.Base(info.Path) != "manifest.json" {
			continue
		}
		m, err := a.manifest(ctx, info.Path)
		if err != nil {
			a.logger.WarnContext(ctx, "unreadable manifest", slog.String("path", info.Path), slog.String("error", err.Error()))
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	return out, nil
}

func (a *ArchiveService) manifest(ctx context.Context, key string) (s3blob.Manifest, error) {
	rc, err := a.reader.Get(ctx, key)
	if err != nil {
		return s3blob.Manifest{}, err
	}
	defer rc.Close()

	var m s3blob.Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return s3blob.Manifest{}, fmt.Errorf("decode %s: %w", key, err)
	}
	if m.SessionID == "" {
		m.SessionID = strings.TrimSuffix(path.Base(path.Dir(key)), "/")
	}
	return m, nil
}
