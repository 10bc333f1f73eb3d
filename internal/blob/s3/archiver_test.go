package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

type memWriter struct {
	objects map[string][]byte
	order   []string
	failOn  string
}

func (w *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.failOn != "" && strings.HasSuffix(path, w.failOn) {
		return errors.New("boom")
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if w.objects == nil {
		w.objects = make(map[string][]byte)
	}
	w.objects[path] = b
	w.order = append(w.order, path)
	return nil
}

func (w *memWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

func TestArchiver_ArchiveSession(t *testing.T) {
	w := &memWriter{}
	at := time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)
	archive := domain.SessionArchive{
		SessionID:   "s1",
		CompletedAt: at,
		Bids: []domain.BidRecord{
			{ID: "b1", LotID: "p1", TeamID: "mi", Amount: decimal.RequireFromString("2.00"), Counter: 1, Valid: true},
			{ID: "b2", LotID: "p1", TeamID: "csk", Amount: decimal.RequireFromString("2.20"), Counter: 2, Valid: true},
		},
		Players: []domain.Player{{ID: "p1", Status: domain.PlayerStatusSold}},
		Teams:   []domain.Team{{ID: "mi"}, {ID: "csk"}},
	}

	prefix, err := NewArchiver(w).ArchiveSession(context.Background(), archive)
	assert.NoError(t, err)
	check.Equal(t, "archive/2026-04/s1/", prefix)

	bids := w.objects[prefix+"bids.jsonl"]
	check.Equal(t, 2, bytes.Count(bids, []byte("\n")))
	check.Equal(t, 0, len(w.objects[prefix+"rtm_attempts.jsonl"]))

	assert.Equal(t, 5, len(w.order))
	check.Equal(t, prefix+"manifest.json", w.order[len(w.order)-1])

	var m Manifest
	assert.NoError(t, json.Unmarshal(w.objects[prefix+"manifest.json"], &m))
	check.Equal(t, "s1", m.SessionID)
	check.Equal(t, 2, m.Files["bids.jsonl"])
	check.Equal(t, 1, m.Files["players.jsonl"])
	check.Equal(t, 2, m.Files["teams.jsonl"])
}

func TestArchiver_NoManifestOnFailure(t *testing.T) {
	w := &memWriter{failOn: "players.jsonl"}
	_, err := NewArchiver(w).ArchiveSession(context.Background(), domain.SessionArchive{SessionID: "s2", CompletedAt: time.Now()})
	check.NotNil(t, err)
	for path := range w.objects {
		check.False(t, strings.HasSuffix(path, "manifest.json"))
	}
}

func TestArchiver_RequiresSessionID(t *testing.T) {
	_, err := NewArchiver(&memWriter{}).ArchiveSession(context.Background(), domain.SessionArchive{})
	check.True(t, errors.Is(err, domain.ErrInvalidArgument))
}
