package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// multipartThreshold is the file size from which uploads are split into
// parts of the same size.
const multipartThreshold = 8 << 20

// Manifest is written next to the JSONL files of an archived session.
type Manifest struct {
	SessionID   string         `json:"session_id"`
	CompletedAt time.Time      `json:"completed_at"`
	Files       map[string]int `json:"files"`
}

// Archiver implements domain.Archiver: a finished auction becomes one JSONL
// file per record kind plus a manifest under a per-session prefix.
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver uploading through writer.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveSession uploads the archive and returns the prefix it was written
// under. The manifest goes last, so a prefix with a manifest is complete.
func (a *Archiver) ArchiveSession(ctx context.Context, archive domain.SessionArchive) (string, error) {
	if archive.SessionID == "" {
		return "", fmt.Errorf("s3blob: archive session: %w", domain.ErrInvalidArgument)
	}
	prefix := SessionPrefix(archive.SessionID, archive.CompletedAt)
	manifest := Manifest{
		SessionID:   archive.SessionID,
		CompletedAt: archive.CompletedAt,
		Files:       make(map[string]int, 4),
	}

	files := []struct {
		name  string
		count int
		data  func() ([]byte, error)
	}{
		{"bids.jsonl", len(archive.Bids), func() ([]byte, error) { return marshalJSONL(archive.Bids) }},
		{"rtm_attempts.jsonl", len(archive.RTMAttempts), func() ([]byte, error) { return marshalJSONL(archive.RTMAttempts) }},
		{"players.jsonl", len(archive.Players), func() ([]byte, error) { return marshalJSONL(archive.Players) }},
		{"teams.jsonl", len(archive.Teams), func() ([]byte, error) { return marshalJSONL(archive.Teams) }},
	}
	for _, f := range files {
		buf, err := f.data()
		if err != nil {
			return "", fmt.Errorf("s3blob: archive %s marshal: %w", f.name, err)
		}
		path := prefix + f.name
		if len(buf) >= multipartThreshold {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), multipartThreshold)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
		}
		if err != nil {
			return "", fmt.Errorf("s3blob: archive %s upload: %w", f.name, err)
		}
		manifest.Files[f.name] = f.count
	}

	data, err := json.Marshal(manifest)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive manifest marshal: %w", err)
	}
	if err := a.writer.Put(ctx, prefix+"manifest.json", bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive manifest upload: %w", err)
	}
	return prefix, nil
}

// SessionPrefix builds the key prefix for a session archive, partitioned by
// completion month.
//
//	archive/2026-04/7f1c.../
func SessionPrefix(sessionID string, completedAt time.Time) string {
	return fmt.Sprintf("archive/%s/%s/", completedAt.UTC().Format("2006-01"), sessionID)
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
