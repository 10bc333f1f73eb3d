package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// SessionArchive is everything recorded for one finished auction.
type SessionArchive struct {
	SessionID   string       `json:"session_id"`
	CompletedAt time.Time    `json:"completed_at"`
	Bids        []BidRecord  `json:"bids"`
	RTMAttempts []RTMAttempt `json:"rtm_attempts"`
	Players     []Player     `json:"players"`
	Teams       []Team       `json:"teams"`
}

// Archiver moves a finished auction to cold storage.
type Archiver interface {
	ArchiveSession(ctx context.Context, archive SessionArchive) (string, error)
}
