// Package form holds the generic submission engine layered above the upload
// workflow. A Form is parameterized by an entity adapter, stages a snapshot of
// the operator's input, and only touches the network once that snapshot is
// explicitly confirmed.
package form

import (
	"context"
	"sync"
	"time"

	"github.com/safliix/console-backend/internal/journal"
	"github.com/safliix/console-backend/internal/retry"
	"github.com/safliix/console-backend/internal/workflow"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/metrics"
	"github.com/safliix/console-backend/pkg/types"
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusStaged  Status = "staged"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Adapter is the per-entity-type contract plugged into a Form.
type Adapter[V any] interface {
	Kind() types.EntityKind
	// Validate rejects an invalid snapshot before any network call.
	Validate(values V) error
	// BuildMetadata maps the snapshot to the backend payload. Pure.
	BuildMetadata(values V) (any, error)
	// CollectFiles returns only the slots actually holding a file.
	CollectFiles(values V) []types.SlotFile
	// SubmitMetadata creates the entity when id is empty, updates otherwise,
	// and returns the server-assigned id.
	SubmitMetadata(ctx context.Context, payload any, id string) (string, error)
	// Handlers binds the upload workflow to this entity.
	Handlers(id string) workflow.Handlers
}

// Recorder is the journal surface the form writes to. Optional.
type Recorder interface {
	Record(ctx context.Context, sub *journal.Submission) error
}

// Options configures a Form.
type Options struct {
	Retry retry.Policy
	// ResetDelay postpones the post-success reset so a success message can
	// display. Zero resets immediately.
	ResetDelay time.Duration
	Journal    Recorder
	Metrics    *metrics.PublishMetrics
	Logger     *logger.Logger
}

// Result reports a completed submission.
type Result struct {
	EntityID string
	NoFiles  bool
	Uploaded []types.FinalizedUpload
}

// Form drives one entity's submission lifecycle. A single submission may be
// in flight at a time; the staged snapshot and the held entity id are owned
// exclusively by this instance.
type Form[V any] struct {
	mu       sync.Mutex
	adapter  Adapter[V]
	engine   *workflow.Engine
	status   Status
	pending  *V
	entityID string
	lastErr  error

	retryPolicy retry.Policy
	resetDelay  time.Duration
	resetTimer  *time.Timer
	journal     Recorder
	metrics     *metrics.PublishMetrics
	logg        *logger.Logger
}

func New[V any](adapter Adapter[V], engine *workflow.Engine, opts Options) *Form[V] {
	return &Form[V]{
		adapter:     adapter,
		engine:      engine,
		status:      StatusIdle,
		retryPolicy: opts.Retry,
		resetDelay:  opts.ResetDelay,
		journal:     opts.Journal,
		metrics:     opts.Metrics,
		logg:        opts.Logger,
	}
}

// Status returns the current submission status.
func (f *Form[V]) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// EntityID returns the held server-assigned id, or "".
func (f *Form[V]) EntityID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entityID
}

// LastError returns the error from the most recent failed submission.
func (f *Form[V]) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// SetEntityID enters edit mode for a pre-existing record: the next confirmed
// submission updates instead of creating.
func (f *Form[V]) SetEntityID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		return pkgerrors.New(pkgerrors.CodeConflict, "submission in flight")
	}
	f.entityID = id
	return nil
}

// Stage stores the snapshot to submit and waits for confirmation.
func (f *Form[V]) Stage(values V) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		return pkgerrors.New(pkgerrors.CodeConflict, "submission in flight")
	}
	f.cancelResetLocked()
	f.pending = &values
	f.status = StatusStaged
	f.lastErr = nil
	return nil
}

// Discard drops the staged snapshot without submitting.
func (f *Form[V]) Discard() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		return pkgerrors.New(pkgerrors.CodeConflict, "submission in flight")
	}
	f.pending = nil
	f.status = StatusIdle
	f.lastErr = nil
	return nil
}

// ConfirmSubmit executes the staged submission: metadata persist, then the
// upload workflow when any file slot is populated. Allowed from the staged
// state and, for retries with the retained snapshot, from the error state.
// Metadata persist is re-run on retry as an idempotent update against the
// held entity id.
func (f *Form[V]) ConfirmSubmit(ctx context.Context) (Result, error) {
	values, entityID, err := f.begin()
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	kind := string(f.adapter.Kind())
	res, stage, err := f.submit(ctx, values, entityID)

	f.metrics.ObserveDuration(kind, time.Since(start))
	if err != nil {
		f.metrics.IncFailure(kind, stage)
		f.finishFailure(ctx, err, stage)
		return Result{}, err
	}
	f.metrics.IncSuccess(kind)
	f.finishSuccess(ctx, res)
	return res, nil
}

func (f *Form[V]) begin() (V, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var zero V
	if f.status == StatusLoading {
		return zero, "", pkgerrors.New(pkgerrors.CodeConflict, "submission in flight")
	}
	if f.pending == nil || (f.status != StatusStaged && f.status != StatusError) {
		return zero, "", pkgerrors.New(pkgerrors.CodeConflict, "nothing staged for submission")
	}
	f.status = StatusLoading
	f.lastErr = nil
	return *f.pending, f.entityID, nil
}

func (f *Form[V]) submit(ctx context.Context, values V, entityID string) (Result, string, error) {
	if err := f.adapter.Validate(values); err != nil {
		return Result{}, "validate", err
	}

	payload, err := f.adapter.BuildMetadata(values)
	if err != nil {
		return Result{}, "validate", err
	}

	if f.logg != nil {
		f.logg.Info(f.logg.WithEntity(ctx, string(f.adapter.Kind()), entityID), "metadata.submit")
	}
	id, err := retry.DoValue(ctx, f.metadataPolicy(), func(ctx context.Context) (string, error) {
		return f.adapter.SubmitMetadata(ctx, payload, entityID)
	})
	if err != nil {
		return Result{}, "metadata", err
	}
	f.holdEntityID(id)

	files := f.adapter.CollectFiles(values)
	runRes, err := f.engine.Run(ctx, files, f.adapter.Handlers(id))
	if err != nil {
		return Result{EntityID: id}, stageOf(f.engine.FailedDuring()), err
	}

	var uploadedBytes int64
	for _, file := range files {
		uploadedBytes += file.File.Size
	}
	f.metrics.AddUploadedBytes(string(f.adapter.Kind()), uploadedBytes)

	return Result{EntityID: id, NoFiles: runRes.NoFiles, Uploaded: runRes.Uploaded}, "", nil
}

// metadataPolicy counts metadata-persist retries against the retry metric.
func (f *Form[V]) metadataPolicy() retry.Policy {
	p := f.retryPolicy
	if f.metrics == nil {
		return p
	}
	prev := p.OnRetry
	m := f.metrics
	p.OnRetry = func(attempt int, err error) {
		if prev != nil {
			prev(attempt, err)
		}
		m.IncRetry("metadata")
	}
	return p
}

func (f *Form[V]) finishSuccess(ctx context.Context, res Result) {
	f.mu.Lock()
	f.status = StatusSuccess
	f.mu.Unlock()

	f.record(ctx, &journal.Submission{
		EntityKind: string(f.adapter.Kind()),
		EntityID:   res.EntityID,
		Status:     journal.StatusSucceeded,
	})

	if f.resetDelay <= 0 {
		f.Reset()
		return
	}
	f.mu.Lock()
	f.resetTimer = time.AfterFunc(f.resetDelay, f.Reset)
	f.mu.Unlock()
}

// finishFailure keeps the snapshot and the entity id so a retry neither
// recreates the entity nor forces the operator to re-enter the form.
func (f *Form[V]) finishFailure(ctx context.Context, err error, stage string) {
	f.mu.Lock()
	f.status = StatusError
	f.lastErr = err
	entityID := f.entityID
	f.mu.Unlock()

	if f.logg != nil {
		f.logg.Error(f.logg.WithEntity(ctx, string(f.adapter.Kind()), entityID), "submission failed", err)
	}
	f.record(ctx, &journal.Submission{
		EntityKind:  string(f.adapter.Kind()),
		EntityID:    entityID,
		Status:      journal.StatusFailed,
		Stage:       stage,
		FailingSlot: string(workflow.FailingSlot(err)),
		Message:     err.Error(),
	})
}

// Reset clears the snapshot, the held entity id, and returns to idle.
func (f *Form[V]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		return
	}
	f.cancelResetLocked()
	f.pending = nil
	f.entityID = ""
	f.status = StatusIdle
	f.lastErr = nil
}

func (f *Form[V]) holdEntityID(id string) {
	f.mu.Lock()
	f.entityID = id
	f.mu.Unlock()
}

func (f *Form[V]) cancelResetLocked() {
	if f.resetTimer != nil {
		f.resetTimer.Stop()
		f.resetTimer = nil
	}
}

func (f *Form[V]) record(ctx context.Context, sub *journal.Submission) {
	if f.journal == nil {
		return
	}
	if err := f.journal.Record(ctx, sub); err != nil && f.logg != nil {
		f.logg.Warn(ctx, "journal write failed")
	}
}

func stageOf(state workflow.State) string {
	switch state {
	case workflow.StatePresign:
		return "presign"
	case workflow.StateFinalize:
		return "finalize"
	default:
		return "upload"
	}
}
