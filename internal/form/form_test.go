package form

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/safliix/console-backend/internal/journal"
	"github.com/safliix/console-backend/internal/retry"
	"github.com/safliix/console-backend/internal/workflow"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/types"
)

type filmValues struct {
	Title string
	Files []types.SlotFile
}

type stubAdapter struct {
	mu sync.Mutex

	validateErr error

	nextID       string
	submitErr    error
	submitBlock  chan struct{}
	submitCalls  int
	submittedIDs []string

	presignErr   error
	presignCalls int
	uploadErr    error
	uploadCalls  int
	finalizeErr  error
}

func (a *stubAdapter) Kind() types.EntityKind { return types.KindFilm }

func (a *stubAdapter) Validate(values filmValues) error { return a.validateErr }

func (a *stubAdapter) BuildMetadata(values filmValues) (any, error) {
	return map[string]any{"title": values.Title}, nil
}

func (a *stubAdapter) CollectFiles(values filmValues) []types.SlotFile { return values.Files }

func (a *stubAdapter) SubmitMetadata(ctx context.Context, payload any, id string) (string, error) {
	a.mu.Lock()
	a.submitCalls++
	a.submittedIDs = append(a.submittedIDs, id)
	block := a.submitBlock
	a.mu.Unlock()
	if block != nil {
		<-block
	}
	if a.submitErr != nil {
		return "", a.submitErr
	}
	if id != "" {
		return id, nil
	}
	return a.nextID, nil
}

func (a *stubAdapter) Handlers(id string) workflow.Handlers {
	return workflow.Handlers{
		Presign: func(ctx context.Context, files []types.SlotFile) ([]types.PresignedSlot, error) {
			a.mu.Lock()
			a.presignCalls++
			a.mu.Unlock()
			if a.presignErr != nil {
				return nil, a.presignErr
			}
			slots := make([]types.PresignedSlot, 0, len(files))
			for _, f := range files {
				slots = append(slots, types.PresignedSlot{
					Key:       f.Key,
					UploadURL: "https://s3/" + string(f.Key),
					FinalURL:  "https://cdn/" + string(f.Key),
				})
			}
			return slots, nil
		},
		UploadToURL: func(ctx context.Context, uploadURL string, file types.FileHandle) error {
			a.mu.Lock()
			a.uploadCalls++
			a.mu.Unlock()
			return a.uploadErr
		},
		Finalize: func(ctx context.Context, uploads []types.FinalizedUpload) error {
			return a.finalizeErr
		},
	}
}

type stubRecorder struct {
	mu   sync.Mutex
	subs []journal.Submission
}

func (r *stubRecorder) Record(ctx context.Context, sub *journal.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, *sub)
	return nil
}

func newTestForm(adapter *stubAdapter, recorder Recorder) *Form[filmValues] {
	engine := workflow.New(workflow.Options{Retry: retry.NoRetry})
	return New[filmValues](adapter, engine, Options{
		Retry:   retry.NoRetry,
		Journal: recorder,
	})
}

func mainFile() types.SlotFile {
	return types.SlotFile{
		Key:  "main",
		File: types.BytesFile("poster.png", "image/png", []byte("png-bytes")),
	}
}

func TestConfirmSubmitRequiresStagedSnapshot(t *testing.T) {
	t.Parallel()

	f := newTestForm(&stubAdapter{nextID: "f1"}, nil)
	_, err := f.ConfirmSubmit(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict without staged snapshot, got %v", err)
	}
}

func TestConfirmSubmitFullSuccessResetsForm(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{nextID: "f1"}
	recorder := &stubRecorder{}
	f := newTestForm(adapter, recorder)

	if err := f.Stage(filmValues{Title: "Dune", Files: []types.SlotFile{mainFile()}}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if f.Status() != StatusStaged {
		t.Fatalf("expected staged status, got %s", f.Status())
	}

	res, err := f.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if res.EntityID != "f1" {
		t.Fatalf("unexpected entity id %q", res.EntityID)
	}
	if len(res.Uploaded) != 1 || res.Uploaded[0].FinalURL != "https://cdn/main" {
		t.Fatalf("unexpected uploads %+v", res.Uploaded)
	}
	// Zero reset delay resets synchronously.
	if f.Status() != StatusIdle {
		t.Fatalf("expected idle after reset, got %s", f.Status())
	}
	if f.EntityID() != "" {
		t.Fatalf("entity id must clear after success, got %q", f.EntityID())
	}
	if len(recorder.subs) != 1 || recorder.subs[0].Status != journal.StatusSucceeded {
		t.Fatalf("expected one success journal row, got %+v", recorder.subs)
	}
}

func TestConfirmSubmitZeroFilesSkipsWorkflow(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{nextID: "f2"}
	f := newTestForm(adapter, nil)

	if err := f.Stage(filmValues{Title: "No assets"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	res, err := f.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if !res.NoFiles {
		t.Fatal("expected no-files result")
	}
	if adapter.presignCalls != 0 || adapter.uploadCalls != 0 {
		t.Fatal("no upload-related call may happen without files")
	}
}

func TestConfirmSubmitValidationFailureAbortsBeforeNetwork(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{
		nextID:      "f1",
		validateErr: pkgerrors.New(pkgerrors.CodeValidation, "title is required"),
	}
	f := newTestForm(adapter, nil)

	if err := f.Stage(filmValues{}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	_, err := f.ConfirmSubmit(context.Background())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if adapter.submitCalls != 0 {
		t.Fatal("metadata must not be submitted for an invalid snapshot")
	}
	if f.Status() != StatusError {
		t.Fatalf("expected error status, got %s", f.Status())
	}
}

func TestConfirmSubmitMetadataFailureAbortsUploads(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{
		submitErr: pkgerrors.New(pkgerrors.CodeDependency, "backend down"),
	}
	recorder := &stubRecorder{}
	f := newTestForm(adapter, recorder)

	if err := f.Stage(filmValues{Title: "Dune", Files: []types.SlotFile{mainFile()}}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := f.ConfirmSubmit(context.Background()); err == nil {
		t.Fatal("expected metadata failure")
	}
	if adapter.presignCalls != 0 {
		t.Fatal("presign must not run after metadata failure")
	}
	if len(recorder.subs) != 1 || recorder.subs[0].Stage != "metadata" {
		t.Fatalf("expected failure journaled at metadata stage, got %+v", recorder.subs)
	}
}

func TestConfirmSubmitUploadFailureRetainsEntityID(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{
		nextID:    "f7",
		uploadErr: pkgerrors.New(pkgerrors.CodeDependency, "socket closed"),
	}
	recorder := &stubRecorder{}
	f := newTestForm(adapter, recorder)

	if err := f.Stage(filmValues{Title: "Dune", Files: []types.SlotFile{mainFile()}}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := f.ConfirmSubmit(context.Background()); err == nil {
		t.Fatal("expected upload failure")
	}
	if f.Status() != StatusError {
		t.Fatalf("expected error status, got %s", f.Status())
	}
	if f.EntityID() != "f7" {
		t.Fatalf("entity id must be retained after failure, got %q", f.EntityID())
	}
	if len(recorder.subs) != 1 || recorder.subs[0].FailingSlot != "main" {
		t.Fatalf("expected failing slot journaled, got %+v", recorder.subs)
	}

	// Retry with the retained snapshot: metadata is re-run as an update
	// against the held id, so no duplicate entity is created.
	adapter.uploadErr = nil
	res, err := f.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("retry ConfirmSubmit: %v", err)
	}
	if res.EntityID != "f7" {
		t.Fatalf("retry must reuse the held id, got %q", res.EntityID)
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.submittedIDs) != 2 || adapter.submittedIDs[0] != "" || adapter.submittedIDs[1] != "f7" {
		t.Fatalf("expected create then update, got %v", adapter.submittedIDs)
	}
}

func TestSetEntityIDEntersEditMode(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{}
	f := newTestForm(adapter, nil)

	if err := f.SetEntityID("f42"); err != nil {
		t.Fatalf("SetEntityID: %v", err)
	}
	if err := f.Stage(filmValues{Title: "Rerelease"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	res, err := f.ConfirmSubmit(context.Background())
	if err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if res.EntityID != "f42" {
		t.Fatalf("expected update of existing entity, got %q", res.EntityID)
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if len(adapter.submittedIDs) != 1 || adapter.submittedIDs[0] != "f42" {
		t.Fatalf("expected update call with held id, got %v", adapter.submittedIDs)
	}
}

func TestSingleActiveSubmissionPerForm(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{nextID: "f1", submitBlock: make(chan struct{})}
	f := newTestForm(adapter, nil)

	if err := f.Stage(filmValues{Title: "Dune"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.ConfirmSubmit(context.Background())
	}()

	waitForStatus(t, f, StatusLoading)

	if _, err := f.ConfirmSubmit(context.Background()); pkgerrors.As(err) == nil {
		t.Fatalf("expected conflict while loading, got %v", err)
	}
	if err := f.Stage(filmValues{Title: "Other"}); err == nil {
		t.Fatal("staging must be blocked while loading")
	}
	if err := f.Discard(); err == nil {
		t.Fatal("discard must be blocked while loading")
	}

	close(adapter.submitBlock)
	<-done
}

func TestResetDelayDefersCleanup(t *testing.T) {
	t.Parallel()

	adapter := &stubAdapter{nextID: "f1"}
	engine := workflow.New(workflow.Options{Retry: retry.NoRetry})
	f := New[filmValues](adapter, engine, Options{
		Retry:      retry.NoRetry,
		ResetDelay: 50 * time.Millisecond,
	})

	if err := f.Stage(filmValues{Title: "Dune"}); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	if _, err := f.ConfirmSubmit(context.Background()); err != nil {
		t.Fatalf("ConfirmSubmit: %v", err)
	}
	if f.Status() != StatusSuccess {
		t.Fatalf("expected success to linger, got %s", f.Status())
	}
	waitForStatus(t, f, StatusIdle)
}

func waitForStatus(t *testing.T, f *Form[filmValues], want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if f.Status() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("status never became %s (now %s)", want, f.Status())
}
