package validators

import (
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/types"
)

// maxMultipartMemory bounds what the multipart reader buffers in memory;
// larger file parts spill to temp files.
const maxMultipartMemory = 32 << 20

const metadataPartName = "metadata"

// PublishParts is the decoded body of a multipart publish request: one JSON
// metadata part plus zero or more file parts named by slot key.
type PublishParts struct {
	Metadata []byte
	Files    map[types.SlotKey]types.FileHandle
}

// ParsePublishMultipart splits a publish request into its metadata part and
// its per-slot file parts. File parts stay backed by the request's multipart
// storage, so they can be re-opened for transfer retries.
func ParsePublishMultipart(r *http.Request) (PublishParts, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return PublishParts{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}

	raw := r.FormValue(metadataPartName)
	if raw == "" {
		return PublishParts{}, pkgerrors.New(pkgerrors.CodeValidation, "metadata part is required")
	}

	parts := PublishParts{
		Metadata: []byte(raw),
		Files:    make(map[types.SlotKey]types.FileHandle),
	}
	for name, headers := range r.MultipartForm.File {
		if len(headers) == 0 {
			continue
		}
		if len(headers) > 1 {
			return PublishParts{}, pkgerrors.New(pkgerrors.CodeValidation, "duplicate file part "+name)
		}
		parts.Files[types.SlotKey(name)] = fileHandle(headers[0])
	}
	return parts, nil
}

func fileHandle(header *multipart.FileHeader) types.FileHandle {
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "multipart/") {
		mimeType = "application/octet-stream"
	}
	return types.FileHandle{
		Name:     header.Filename,
		MimeType: mimeType,
		Size:     header.Size,
		Open: func() (io.ReadCloser, error) {
			return header.Open()
		},
	}
}
