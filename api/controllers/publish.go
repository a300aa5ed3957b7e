package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/safliix/console-backend/api/responses"
	"github.com/safliix/console-backend/api/validators"
	"github.com/safliix/console-backend/internal/catalog"
	"github.com/safliix/console-backend/internal/form"
	"github.com/safliix/console-backend/internal/realtime"
	"github.com/safliix/console-backend/internal/retry"
	"github.com/safliix/console-backend/internal/workflow"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/metrics"
	"github.com/safliix/console-backend/pkg/types"
)

// PublishDeps carries everything a publish request needs. One value is built
// in cmd/api and shared by both handlers.
type PublishDeps struct {
	Backend    catalog.Publisher
	Journal    form.Recorder
	Metrics    *metrics.PublishMetrics
	Realtime   *realtime.Conn
	Retry      retry.Policy
	Parallel   bool
	ResetDelay time.Duration
	Logger     *logger.Logger
}

type publishResponse struct {
	ID       string                  `json:"id"`
	NoFiles  bool                    `json:"noFiles"`
	Uploaded []types.FinalizedUpload `json:"uploaded"`
}

// PublishCreate handles POST /api/v1/publish/{kind}: metadata persist plus
// the upload workflow for any file parts, creating a new entity.
func PublishCreate(deps PublishDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publish(deps, w, r, "")
	}
}

// PublishUpdate handles PUT /api/v1/publish/{kind}/{id}: same flow against
// an existing entity, so a failed submission can be retried without creating
// a duplicate.
func PublishUpdate(deps PublishDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		publish(deps, w, r, chi.URLParam(r, "id"))
	}
}

func publish(deps PublishDeps, w http.ResponseWriter, r *http.Request, entityID string) {
	ctx := r.Context()

	kind := types.EntityKind(chi.URLParam(r, "kind"))
	if !kind.IsValid() {
		responses.WriteError(ctx, deps.Logger, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown entity kind"))
		return
	}

	parts, err := validators.ParsePublishMultipart(r)
	if err != nil {
		responses.WriteError(ctx, deps.Logger, w, err)
		return
	}

	var resp publishResponse
	switch kind {
	case types.KindFilm:
		var values catalog.FilmForm
		if err = validators.DecodeJSONValue(parts.Metadata, &values); err != nil {
			break
		}
		taken := takeFiles(parts.Files)
		values.MainImage = taken.pop(catalog.SlotMainImage)
		values.SecondaryImage = taken.pop(catalog.SlotSecondaryImage)
		values.Trailer = taken.pop(catalog.SlotTrailer)
		values.Movie = taken.pop(catalog.SlotMovie)
		if err = taken.remaining(); err != nil {
			break
		}
		resp, err = runPublish(ctx, deps, catalog.NewFilmAdapter(deps.Backend), values, kind, entityID)
	case types.KindSeries:
		var values catalog.SeriesForm
		if err = validators.DecodeJSONValue(parts.Metadata, &values); err != nil {
			break
		}
		taken := takeFiles(parts.Files)
		values.MainImage = taken.pop(catalog.SlotMainImage)
		values.SecondaryImage = taken.pop(catalog.SlotSecondaryImage)
		values.Trailer = taken.pop(catalog.SlotTrailer)
		if err = taken.remaining(); err != nil {
			break
		}
		resp, err = runPublish(ctx, deps, catalog.NewSeriesAdapter(deps.Backend), values, kind, entityID)
	case types.KindEpisode:
		var values catalog.EpisodeForm
		if err = validators.DecodeJSONValue(parts.Metadata, &values); err != nil {
			break
		}
		taken := takeFiles(parts.Files)
		values.Poster = taken.pop(catalog.SlotPoster)
		values.Video = taken.pop(catalog.SlotVideo)
		values.Subtitle = taken.pop(catalog.SlotSubtitle)
		if err = taken.remaining(); err != nil {
			break
		}
		resp, err = runPublish(ctx, deps, catalog.NewEpisodeAdapter(deps.Backend), values, kind, entityID)
	}
	if err != nil {
		responses.WriteError(ctx, deps.Logger, w, err)
		return
	}

	status := http.StatusOK
	if entityID == "" {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, resp)
}

// runPublish drives a fresh form through the staged-confirm lifecycle for
// one request.
func runPublish[V any](
	ctx context.Context,
	deps PublishDeps,
	adapter form.Adapter[V],
	values V,
	kind types.EntityKind,
	entityID string,
) (publishResponse, error) {
	var observer workflow.Observer
	if deps.Realtime != nil {
		observer = deps.Realtime.ObserverFor(ctx, string(kind), entityID)
	}
	var retryHook func(step string, attempt int, err error)
	if deps.Metrics != nil {
		retryHook = func(step string, attempt int, err error) {
			deps.Metrics.IncRetry(step)
		}
	}
	engine := workflow.New(workflow.Options{
		Retry:     deps.Retry,
		Parallel:  deps.Parallel,
		Observer:  observer,
		RetryHook: retryHook,
		Logger:    deps.Logger,
	})
	f := form.New(adapter, engine, form.Options{
		Retry:      deps.Retry,
		ResetDelay: deps.ResetDelay,
		Journal:    deps.Journal,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	})

	if entityID != "" {
		if err := f.SetEntityID(entityID); err != nil {
			return publishResponse{}, err
		}
	}
	if err := f.Stage(values); err != nil {
		return publishResponse{}, err
	}
	res, err := f.ConfirmSubmit(ctx)
	if err != nil {
		return publishResponse{}, err
	}
	uploaded := res.Uploaded
	if uploaded == nil {
		uploaded = []types.FinalizedUpload{}
	}
	return publishResponse{ID: res.EntityID, NoFiles: res.NoFiles, Uploaded: uploaded}, nil
}

// fileSet tracks which uploaded parts a kind's slot mapping consumed, so a
// part named after a slot the kind does not have is rejected instead of
// silently dropped.
type fileSet struct {
	files map[types.SlotKey]types.FileHandle
}

func takeFiles(files map[types.SlotKey]types.FileHandle) *fileSet {
	return &fileSet{files: files}
}

func (s *fileSet) pop(key types.SlotKey) *types.FileHandle {
	file, ok := s.files[key]
	if !ok {
		return nil
	}
	delete(s.files, key)
	return &file
}

func (s *fileSet) remaining() error {
	for key := range s.files {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown file part "+string(key)).
			WithDetails(map[string]any{"slot": string(key)})
	}
	return nil
}
