// Package backend is the thin HTTP client for the SaFliix REST API. It owns
// envelope decoding and error classification; nothing above it inspects raw
// HTTP responses.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/safliix/console-backend/pkg/config"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/logger"
	"github.com/safliix/console-backend/pkg/types"
)

const maxErrorBodyBytes = 64 * 1024

type Client struct {
	base         *url.URL
	httpClient   *http.Client
	uploadClient *http.Client
	tokens       TokenProvider
	logg         *logger.Logger
}

// NewClient builds a backend client from configuration. The token provider
// supplies the bearer credential per call; the client never mints or refreshes
// credentials itself.
func NewClient(cfg config.BackendConfig, tokens TokenProvider, logg *logger.Logger) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token provider required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend base url: %w", err)
	}
	return &Client{
		base:         base,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		uploadClient: &http.Client{Timeout: cfg.UploadTimeout},
		tokens:       tokens,
		logg:         logg,
	}, nil
}

type entityRef struct {
	ID string `json:"id"`
}

// CreateEntity persists new metadata and returns the server-assigned id.
func (c *Client) CreateEntity(ctx context.Context, kind types.EntityKind, payload any) (string, error) {
	var ref entityRef
	if err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/%s", kind), payload, &ref); err != nil {
		return "", err
	}
	if ref.ID == "" {
		return "", pkgerrors.New(pkgerrors.CodeProtocol, "create response missing entity id")
	}
	return ref.ID, nil
}

// UpdateEntity updates metadata for an existing entity.
func (c *Client) UpdateEntity(ctx context.Context, kind types.EntityKind, id string, payload any) error {
	return c.doJSON(ctx, http.MethodPut, fmt.Sprintf("/%s/%s", kind, url.PathEscape(id)), payload, nil)
}

type presignRequest struct {
	Files []types.UploadSlotRequest `json:"files"`
}

// PresignUploads reserves one presigned slot per requested file.
func (c *Client) PresignUploads(ctx context.Context, kind types.EntityKind, id string, files []types.UploadSlotRequest) ([]types.PresignedSlot, error) {
	var slots []types.PresignedSlot
	path := fmt.Sprintf("/%s/%s/uploads/presign", kind, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPost, path, presignRequest{Files: files}, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

type finalizeRequest struct {
	Uploads []types.FinalizedUpload `json:"uploads"`
}

type finalizeResponse struct {
	OK bool `json:"ok"`
}

// FinalizeUploads registers the permanent URLs against the entity. A response
// of ok:false is a failure even though the HTTP call itself succeeded.
func (c *Client) FinalizeUploads(ctx context.Context, kind types.EntityKind, id string, uploads []types.FinalizedUpload) error {
	var res finalizeResponse
	path := fmt.Sprintf("/%s/%s/uploads/finalize", kind, url.PathEscape(id))
	if err := c.doJSON(ctx, http.MethodPost, path, finalizeRequest{Uploads: uploads}, &res); err != nil {
		return err
	}
	if !res.OK {
		return pkgerrors.New(pkgerrors.CodeFinalizeRejected, "backend rejected finalize").
			WithDetails(map[string]any{"entity_id": id})
	}
	return nil
}

// UploadToURL streams the file's bytes to a presigned destination with a raw
// PUT. The URL is already authorized; no bearer is attached. Any non-error
// status counts as success.
func (c *Client) UploadToURL(ctx context.Context, uploadURL string, file types.FileHandle) error {
	body, err := file.Open()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "opening file for upload")
	}
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building upload request")
	}
	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	if file.Size > 0 {
		req.ContentLength = file.Size
	}

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "storage transfer failed")
	}
	defer c.drainAndClose(ctx, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.classify(resp, "storage rejected upload")
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding request body")
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building request")
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s %s failed", method, path))
	}
	defer c.drainAndClose(ctx, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return c.classify(resp, fmt.Sprintf("%s %s", method, path))
	}
	if out == nil {
		return nil
	}
	return decodeData(resp.Body, out)
}

// decodeData accepts both the enveloped {data: ...} convention and a bare
// payload, producing one canonical shape for callers.
func decodeData(r io.Reader, out any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading response body")
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Data) > 0 {
		raw = envelope.Data
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeProtocol, err, "decoding response body")
	}
	return nil
}

// classify converts a non-2xx response into a typed error: 401 session
// expired, 403 access denied, 5xx service unavailable (retryable), other
// client errors pass the embedded message through.
func (c *Client) classify(resp *http.Response, op string) error {
	message := extractMessage(resp)

	var code pkgerrors.Code
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		code = pkgerrors.CodeUnauthorized
		message = "session expired"
	case resp.StatusCode == http.StatusForbidden:
		code = pkgerrors.CodeForbidden
		message = "access denied"
	case resp.StatusCode == http.StatusNotFound:
		code = pkgerrors.CodeNotFound
	case resp.StatusCode == http.StatusConflict:
		code = pkgerrors.CodeConflict
	case resp.StatusCode >= http.StatusInternalServerError:
		code = pkgerrors.CodeDependency
		message = "service unavailable"
	default:
		code = pkgerrors.CodeValidation
	}

	if message == "" {
		message = fmt.Sprintf("%s: status %d", op, resp.StatusCode)
	}
	return pkgerrors.New(code, message).WithDetails(map[string]any{
		"status": resp.StatusCode,
		"op":     op,
	})
}

// extractMessage pulls the backend's message out of a JSON error body,
// falling back to raw text for non-JSON bodies.
func extractMessage(resp *http.Response) string {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var enveloped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &enveloped); err == nil {
		if enveloped.Error.Message != "" {
			return enveloped.Error.Message
		}
		if enveloped.Message != "" {
			return enveloped.Message
		}
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) drainAndClose(ctx context.Context, body io.ReadCloser) {
	if body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBodyBytes))
	if err := body.Close(); err != nil && c.logg != nil {
		c.logg.Warn(ctx, "failed to close response body")
	}
}
