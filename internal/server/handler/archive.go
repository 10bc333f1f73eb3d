package handler

import (
	"context"
	"log/slog"
	"net/http"

	s3blob "github.com/alanyoungcy/auctiond/internal/blob/s3"
	"github.com/alanyoungcy/auctiond/internal/domain"
	"github.com/alanyoungcy/auctiond/internal/server/middleware"
)

// ArchiveLister lists archived auctions.
type ArchiveLister interface {
	List(ctx context.Context, actor domain.Actor) ([]s3blob.Manifest, error)
}

// ArchiveHandler serves the archive index.
type ArchiveHandler struct {
	archives ArchiveLister
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archives ArchiveLister, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archives: archives, logger: logHandler(logger, "archive")}
}

// ListArchives returns the manifest of every archived auction.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	manifests, err := h.archives.List(r.Context(), middleware.ActorFrom(r.Context()))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"archives": manifests})
}
