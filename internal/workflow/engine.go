// Package workflow implements the media upload state machine: reserve
// presigned slots, push file bytes to storage, finalize the entity. Metadata
// persistence happens upstream (internal/form); the engine only ever sees the
// three backend-calling handlers it is given.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/safliix/console-backend/internal/retry"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/types"
)

type State string

const (
	StateIdle     State = "idle"
	StatePresign  State = "presign"
	StateUpload   State = "upload"
	StateFinalize State = "finalize"
	StateError    State = "error"
)

// Progress is the UI-facing snapshot of where a run currently is.
type Progress struct {
	State  State
	Detail string
}

// Observer receives every progress transition. Calls are serialized.
type Observer func(Progress)

// Handlers are the three backend-calling functions a run is bound to. The
// engine has no other side effects.
type Handlers struct {
	Presign     func(ctx context.Context, files []types.SlotFile) ([]types.PresignedSlot, error)
	UploadToURL func(ctx context.Context, uploadURL string, file types.FileHandle) error
	Finalize    func(ctx context.Context, uploads []types.FinalizedUpload) error
}

func (h Handlers) validate() error {
	if h.Presign == nil || h.UploadToURL == nil || h.Finalize == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "workflow handlers incomplete")
	}
	return nil
}

// Result reports what a successful run did.
type Result struct {
	// NoFiles is set when the submission had nothing to transfer; no backend
	// call was made.
	NoFiles bool
	// Uploaded lists the finalized slots in the order storage issued them.
	Uploaded []types.FinalizedUpload
}

// Options configures an Engine.
type Options struct {
	// Retry wraps every network-touching step individually.
	Retry retry.Policy
	// Parallel fires all transfers concurrently with a single aggregate
	// progress message instead of per-file detail. Fixed per call site.
	Parallel bool
	Observer Observer
	// RetryHook is invoked whenever a step's transfer is re-attempted, with
	// the step name. Used to count retries.
	RetryHook func(step string, attempt int, err error)
	Logger    *logger.Logger
}

// Engine is the upload workflow state machine. One run at a time.
type Engine struct {
	mu           sync.Mutex
	state        State
	detail       string
	failedDuring State
	inFlight     bool

	retryPolicy retry.Policy
	parallel    bool
	observer    Observer
	retryHook   func(step string, attempt int, err error)
	logg        *logger.Logger
}

func New(opts Options) *Engine {
	return &Engine{
		state:       StateIdle,
		retryPolicy: opts.Retry,
		parallel:    opts.Parallel,
		observer:    opts.Observer,
		retryHook:   opts.RetryHook,
		logg:        opts.Logger,
	}
}

// stepPolicy attributes retries of one workflow step to the retry hook.
func (e *Engine) stepPolicy(step string) retry.Policy {
	p := e.retryPolicy
	if e.retryHook == nil {
		return p
	}
	prev := p.OnRetry
	hook := e.retryHook
	p.OnRetry = func(attempt int, err error) {
		if prev != nil {
			prev(attempt, err)
		}
		hook(step, attempt, err)
	}
	return p
}

// Snapshot returns the current progress state.
func (e *Engine) Snapshot() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Progress{State: e.state, Detail: e.detail}
}

// Run executes presign → upload → finalize for the given files. An empty file
// list succeeds immediately without touching the backend. Any failure aborts
// the remaining steps and is returned to the caller; already-persisted
// metadata is left as-is.
func (e *Engine) Run(ctx context.Context, files []types.SlotFile, h Handlers) (Result, error) {
	if err := h.validate(); err != nil {
		return Result{}, err
	}
	if err := e.begin(); err != nil {
		return Result{}, err
	}
	defer e.end()

	if len(files) == 0 {
		e.transition(StateIdle, "no files to send")
		return Result{NoFiles: true}, nil
	}

	e.transition(StatePresign, "requesting upload locations")
	slots, err := retry.DoValue(ctx, e.stepPolicy("presign"), func(ctx context.Context) ([]types.PresignedSlot, error) {
		return h.Presign(ctx, files)
	})
	if err != nil {
		return Result{}, e.fail(err, "requesting upload locations failed")
	}
	if err := matchSlots(files, slots); err != nil {
		return Result{}, e.fail(err, "upload location mismatch")
	}

	if e.parallel {
		err = e.uploadParallel(ctx, files, slots, h)
	} else {
		err = e.uploadSequential(ctx, files, slots, h)
	}
	if err != nil {
		return Result{}, err
	}

	uploads := make([]types.FinalizedUpload, 0, len(slots))
	for _, slot := range slots {
		uploads = append(uploads, types.FinalizedUpload{Key: slot.Key, FinalURL: slot.FinalURL})
	}

	e.transition(StateFinalize, "registering uploads")
	err = retry.Do(ctx, e.stepPolicy("finalize"), func(ctx context.Context) error {
		return h.Finalize(ctx, uploads)
	})
	if err != nil {
		return Result{}, e.fail(err, "registering uploads failed")
	}

	e.transition(StateIdle, "")
	return Result{Uploaded: uploads}, nil
}

// uploadSequential transfers one file at a time in the order storage returned
// the slots, so progress detail can name the current file.
func (e *Engine) uploadSequential(ctx context.Context, files []types.SlotFile, slots []types.PresignedSlot, h Handlers) error {
	byKey := filesByKey(files)
	for _, slot := range slots {
		file := byKey[slot.Key]
		e.transition(StateUpload, fmt.Sprintf("uploading %s (%s)", slot.Key, file.Name))
		if e.logg != nil {
			e.logg.Info(e.logg.WithSlot(ctx, string(slot.Key)), "upload.start")
		}
		err := retry.Do(ctx, e.stepPolicy("upload"), func(ctx context.Context) error {
			return h.UploadToURL(ctx, slot.UploadURL, file)
		})
		if err != nil {
			return e.fail(slotError(slot.Key, err), fmt.Sprintf("upload of %s failed", slot.Key))
		}
	}
	return nil
}

// uploadParallel fires all transfers concurrently. Progress reports a single
// aggregate message; every failing slot is reported, not just the first.
func (e *Engine) uploadParallel(ctx context.Context, files []types.SlotFile, slots []types.PresignedSlot, h Handlers) error {
	byKey := filesByKey(files)
	e.transition(StateUpload, fmt.Sprintf("uploading %d files", len(slots)))

	g, gctx := errgroup.WithContext(ctx)
	slotErrs := make([]error, len(slots))
	for i, slot := range slots {
		i, slot := i, slot
		g.Go(func() error {
			err := retry.Do(gctx, e.stepPolicy("upload"), func(ctx context.Context) error {
				return h.UploadToURL(ctx, slot.UploadURL, byKey[slot.Key])
			})
			if err != nil {
				slotErrs[i] = slotError(slot.Key, err)
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		combined := multierr.Combine(slotErrs...)
		if combined == nil {
			combined = err
		}
		return e.fail(combined, "upload failed")
	}
	return nil
}

// matchSlots enforces the presign invariant: the returned slot keys are
// exactly the requested keys. Any mismatch is fatal for the submission.
func matchSlots(files []types.SlotFile, slots []types.PresignedSlot) error {
	requested := make(map[types.SlotKey]bool, len(files))
	for _, f := range files {
		requested[f.Key] = true
	}
	returned := make(map[types.SlotKey]bool, len(slots))
	for _, s := range slots {
		if !requested[s.Key] {
			return pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("presign returned unrequested slot %q", s.Key)).
				WithDetails(map[string]any{"slot": string(s.Key)})
		}
		if returned[s.Key] {
			return pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("presign returned duplicate slot %q", s.Key)).
				WithDetails(map[string]any{"slot": string(s.Key)})
		}
		returned[s.Key] = true
	}
	for key := range requested {
		if !returned[key] {
			return pkgerrors.New(pkgerrors.CodeProtocol, fmt.Sprintf("presign missing slot %q", key)).
				WithDetails(map[string]any{"slot": string(key)})
		}
	}
	return nil
}

// slotError wraps a transfer failure so callers can tell which slot failed
// without losing the cause's classification.
func slotError(key types.SlotKey, err error) error {
	code := pkgerrors.CodeDependency
	if typed := pkgerrors.As(err); typed != nil {
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, err, fmt.Sprintf("upload failed for slot %q", key)).
		WithDetails(map[string]any{"slot": string(key)})
}

// FailingSlot extracts the slot key recorded on an upload failure, or "".
func FailingSlot(err error) types.SlotKey {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ""
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return ""
	}
	slot, _ := details["slot"].(string)
	return types.SlotKey(slot)
}

func filesByKey(files []types.SlotFile) map[types.SlotKey]types.FileHandle {
	byKey := make(map[types.SlotKey]types.FileHandle, len(files))
	for _, f := range files {
		byKey[f.Key] = f.File
	}
	return byKey
}

func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return pkgerrors.New(pkgerrors.CodeConflict, "a submission is already in flight")
	}
	e.inFlight = true
	e.state = StateIdle
	e.detail = ""
	e.failedDuring = ""
	return nil
}

func (e *Engine) end() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

func (e *Engine) transition(state State, detail string) {
	e.mu.Lock()
	e.state = state
	e.detail = detail
	observer := e.observer
	snapshot := Progress{State: state, Detail: detail}
	e.mu.Unlock()
	if observer != nil {
		observer(snapshot)
	}
}

func (e *Engine) fail(err error, detail string) error {
	e.mu.Lock()
	e.failedDuring = e.state
	e.mu.Unlock()
	e.transition(StateError, detail)
	return err
}

// FailedDuring reports which active state the last failed run was in.
func (e *Engine) FailedDuring() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failedDuring
}
