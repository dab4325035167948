package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/posindex/internal/searcher/reader"
	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

type fakeLookups struct{}

func (fakeLookups) Document(_ context.Context, name string) (reader.DocumentInfo, error) {
	if name != "a.html" {
		return reader.DocumentInfo{}, apperrors.New(apperrors.ErrDocumentNotFound, http.StatusNotFound, name)
	}
	return reader.DocumentInfo{Name: name, DocID: 1, DistinctTerms: 2, TotalTerms: 3}, nil
}

func (fakeLookups) Term(_ context.Context, raw string) (reader.TermInfo, error) {
	if raw == "broken" {
		return reader.TermInfo{}, apperrors.New(apperrors.ErrMalformedIndex, 0, "bad line")
	}
	return reader.TermInfo{Term: raw, Normalized: raw, TermID: 1, DocumentCount: 1, TotalOccurrences: 2}, nil
}

func (fakeLookups) TermInDocument(_ context.Context, raw, name string) (reader.TermDocumentInfo, error) {
	if name != "a.html" {
		return reader.TermDocumentInfo{}, apperrors.New(apperrors.ErrTermNotInDocument, http.StatusNotFound, raw)
	}
	return reader.TermDocumentInfo{Term: raw, Document: name, TermID: 1, DocID: 1, Frequency: 2, Positions: []int{1, 3}}, nil
}

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	New(fakeLookups{}).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestRoutes(t *testing.T) {
	srv := newServer(t)

	tests := []struct {
		path       string
		wantStatus int
		wantKey    string
		wantValue  any
	}{
		{"/api/v1/documents/a.html", http.StatusOK, "totalTerms", float64(3)},
		{"/api/v1/documents/zzz.html", http.StatusNotFound, "error", "document not found: zzz.html"},
		{"/api/v1/terms/cat", http.StatusOK, "totalOccurrences", float64(2)},
		{"/api/v1/terms/broken", http.StatusInternalServerError, "error", "malformed index: bad line"},
		{"/api/v1/terms/cat/documents/a.html", http.StatusOK, "frequency", float64(2)},
		{"/api/v1/terms/cat/documents/b.html", http.StatusNotFound, "error", "term not found in document: cat"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := get(t, srv, tt.path)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantValue, body[tt.wantKey])
		})
	}
}

func TestPositionsAreListed(t *testing.T) {
	_, body := get(t, newServer(t), "/api/v1/terms/cat/documents/a.html")
	assert.Equal(t, []any{float64(1), float64(3)}, body["positions"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newServer(t)
	resp, err := http.Post(srv.URL+"/api/v1/terms/cat", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
