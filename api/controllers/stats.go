package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/safliix/console-backend/api/responses"
	"github.com/safliix/console-backend/internal/backend"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/types"
)

// StatsFetcher is the slice of the backend client the stats handler needs.
type StatsFetcher interface {
	TitleStats(ctx context.Context, kind types.EntityKind, id string) (backend.TitleStats, error)
}

// TitleStats handles GET /api/v1/stats/{kind}/{id}: viewing figures for one
// title, normalized from the backend's mixed legacy field names.
func TitleStats(svc StatsFetcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		kind := types.EntityKind(chi.URLParam(r, "kind"))
		if !kind.IsValid() {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown entity kind"))
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "entity id is required"))
			return
		}

		stats, err := svc.TitleStats(ctx, kind, id)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
