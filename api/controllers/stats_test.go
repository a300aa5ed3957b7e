package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/safliix/console-backend/internal/backend"
	pkgerrors "github.com/safliix/console-backend/pkg/errors"
	"github.com/safliix/console-backend/pkg/types"
)

type stubStats struct {
	stats   backend.TitleStats
	err     error
	gotKind types.EntityKind
	gotID   string
}

func (s *stubStats) TitleStats(ctx context.Context, kind types.EntityKind, id string) (backend.TitleStats, error) {
	s.gotKind = kind
	s.gotID = id
	if s.err != nil {
		return backend.TitleStats{}, s.err
	}
	return s.stats, nil
}

func statsRouter(svc StatsFetcher) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/v1/stats/{kind}/{id}", TitleStats(svc, nil))
	return r
}

func TestTitleStatsSuccess(t *testing.T) {
	t.Parallel()

	svc := &stubStats{stats: backend.TitleStats{
		Views:        1200,
		Likes:        80,
		WatchSeconds: 96000,
		Revenue:      decimal.NewFromInt(340),
	}}
	router := statsRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/films/f1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if svc.gotKind != types.KindFilm || svc.gotID != "f1" {
		t.Fatalf("unexpected fetch args %q %q", svc.gotKind, svc.gotID)
	}

	var envelope struct {
		Data backend.TitleStats `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if envelope.Data.Views != 1200 || !envelope.Data.Revenue.Equal(decimal.NewFromInt(340)) {
		t.Fatalf("unexpected stats %+v", envelope.Data)
	}
}

func TestTitleStatsUnknownKind(t *testing.T) {
	t.Parallel()

	router := statsRouter(&stubStats{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/podcasts/p1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTitleStatsBackendError(t *testing.T) {
	t.Parallel()

	router := statsRouter(&stubStats{err: pkgerrors.New(pkgerrors.CodeNotFound, "title not found")})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats/films/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if envelope.Error.Message != "title not found" {
		t.Fatalf("unexpected message %q", envelope.Error.Message)
	}
}
