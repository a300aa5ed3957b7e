// Package catalog holds the per-entity publish adapters: field validation,
// metadata payload shaping, and the slot/role wiring each entity kind needs
// to push its media through the upload workflow.
package catalog

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/safliix/console-backend/internal/workflow"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/types"
)

// Publisher is the slice of the backend client the adapters need.
type Publisher interface {
	CreateEntity(ctx context.Context, kind types.EntityKind, payload any) (string, error)
	UpdateEntity(ctx context.Context, kind types.EntityKind, id string, payload any) error
	PresignUploads(ctx context.Context, kind types.EntityKind, id string, files []types.UploadSlotRequest) ([]types.PresignedSlot, error)
	UploadToURL(ctx context.Context, uploadURL string, file types.FileHandle) error
	FinalizeUploads(ctx context.Context, kind types.EntityKind, id string, uploads []types.FinalizedUpload) error
}

// CommercialType is how a title is monetized. Values match the backend's
// wire vocabulary.
type CommercialType string

const (
	CommercialSubscription CommercialType = "abonnement"
	CommercialRental       CommercialType = "location"
	CommercialPurchase     CommercialType = "achat"
)

// Slot keys per entity kind. The set is fixed; presign requests outside it
// are a programming error.
const (
	SlotMainImage      types.SlotKey = "main"
	SlotSecondaryImage types.SlotKey = "secondary"
	SlotTrailer        types.SlotKey = "trailer"
	SlotMovie          types.SlotKey = "movie"
	SlotPoster         types.SlotKey = "poster"
	SlotVideo          types.SlotKey = "video"
	SlotSubtitle       types.SlotKey = "subtitle"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// adapter carries the behavior shared by all three entity kinds: metadata
// persist (create or update depending on whether an id is held) and the
// workflow handler set bound to one entity.
type adapter struct {
	backend Publisher
	kind    types.EntityKind
	roles   map[types.SlotKey]types.AttachmentRole
}

func (a adapter) Kind() types.EntityKind { return a.kind }

// SubmitMetadata creates the entity on first submission and updates it on
// re-submission, so a retry after a failed upload never duplicates the row.
func (a adapter) SubmitMetadata(ctx context.Context, payload any, id string) (string, error) {
	if id == "" {
		return a.backend.CreateEntity(ctx, a.kind, payload)
	}
	if err := a.backend.UpdateEntity(ctx, a.kind, id, payload); err != nil {
		return "", err
	}
	return id, nil
}

// Handlers binds the three workflow callbacks to one entity, tagging each
// slot with its backend attachment role at presign time.
func (a adapter) Handlers(id string) workflow.Handlers {
	return workflow.Handlers{
		Presign: func(ctx context.Context, files []types.SlotFile) ([]types.PresignedSlot, error) {
			reqs := make([]types.UploadSlotRequest, 0, len(files))
			for _, f := range files {
				role, ok := a.roles[f.Key]
				if !ok {
					return nil, pkgerrors.New(pkgerrors.CodeInternal,
						fmt.Sprintf("no attachment role for slot %q on %s", f.Key, a.kind))
				}
				reqs = append(reqs, types.UploadSlotRequest{
					Key:      f.Key,
					FileName: f.File.Name,
					MimeType: f.File.MimeType,
					Role:     role,
				})
			}
			return a.backend.PresignUploads(ctx, a.kind, id, reqs)
		},
		UploadToURL: a.backend.UploadToURL,
		Finalize: func(ctx context.Context, uploads []types.FinalizedUpload) error {
			return a.backend.FinalizeUploads(ctx, a.kind, id, uploads)
		},
	}
}

func validateStruct(v any) error {
	if err := validate.Struct(v); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form values")
	}
	return nil
}

func collect(pairs ...types.SlotFile) []types.SlotFile {
	files := make([]types.SlotFile, 0, len(pairs))
	for _, p := range pairs {
		if p.File.Open != nil {
			files = append(files, p)
		}
	}
	return files
}

func slotFile(key types.SlotKey, file *types.FileHandle) types.SlotFile {
	if file == nil {
		return types.SlotFile{Key: key}
	}
	return types.SlotFile{Key: key, File: *file}
}
