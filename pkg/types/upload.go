package types

import (
	"bytes"
	"io"
)

// EntityKind names a publishable catalog entity. Values double as the REST
// path segment on the SaFliix backend.
type EntityKind string

const (
	KindFilm    EntityKind = "films"
	KindSeries  EntityKind = "series"
	KindEpisode EntityKind = "episodes"
)

func (k EntityKind) IsValid() bool {
	switch k {
	case KindFilm, KindSeries, KindEpisode:
		return true
	}
	return false
}

// SlotKey identifies an upload slot within one submission. The valid set is
// entity-specific (film: main/secondary/trailer/movie, episode: poster/video/
// subtitle).
type SlotKey string

// AttachmentRole is the backend-meaningful tag attached to a slot at presign
// time.
type AttachmentRole string

const (
	RolePoster    AttachmentRole = "poster"
	RoleThumbnail AttachmentRole = "thumbnail"
	RoleTrailer   AttachmentRole = "trailer"
	RoleMainVideo AttachmentRole = "main-video"
	RoleSubtitle  AttachmentRole = "subtitle"
)

// FileHandle is a re-openable handle to binary content. Open must return a
// fresh reader on every call so a failed transfer can be retried.
type FileHandle struct {
	Name     string
	MimeType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// BytesFile wraps an in-memory payload as a FileHandle.
func BytesFile(name, mimeType string, data []byte) FileHandle {
	return FileHandle{
		Name:     name,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// SlotFile pairs a slot key with the file staged for it.
type SlotFile struct {
	Key  SlotKey
	File FileHandle
}

// UploadSlotRequest describes one file awaiting a presigned slot.
type UploadSlotRequest struct {
	Key      SlotKey        `json:"key"`
	FileName string         `json:"name"`
	MimeType string         `json:"type"`
	Role     AttachmentRole `json:"attachmentType"`
}

// PresignedSlot is the server-issued destination for one slot: a short-lived
// write-once upload URL plus the permanent location to register afterwards.
// Never cached or reused across submissions.
type PresignedSlot struct {
	Key       SlotKey `json:"key"`
	UploadURL string  `json:"uploadUrl"`
	FinalURL  string  `json:"finalUrl"`
}

// FinalizedUpload registers a slot's permanent URL during finalize.
type FinalizedUpload struct {
	Key      SlotKey `json:"key"`
	FinalURL string  `json:"finalUrl"`
}
