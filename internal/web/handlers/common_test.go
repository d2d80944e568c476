package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/site-photos/internal/photos"
	"github.com/kozaktomas/site-photos/internal/siteapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]any{"message": "hello", "count": 42})

	assert.Equal(t, http.StatusCreated, recorder.Code)
	assert.Equal(t, "application/json", recorder.Header().Get("Content-Type"))
	var result map[string]any
	parseJSONResponse(t, recorder, &result)
	assert.Equal(t, "hello", result["message"])
	assert.InDelta(t, 42, result["count"], 0)
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusOK, nil)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Zero(t, recorder.Body.Len())
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong")
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "site-1forged", sanitizeForLog("site-1\r\nforged"))
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{fmt.Errorf("%w: bad date", photos.ErrInvalidFilter), http.StatusUnprocessableEntity},
		{photos.ErrNoReport, http.StatusUnprocessableEntity},
		{photos.ErrNoFiles, http.StatusUnprocessableEntity},
		{photos.ErrUnsupportedFile, http.StatusUnprocessableEntity},
		{photos.ErrNothingToMove, http.StatusUnprocessableEntity},
		{photos.ErrNoSelection, http.StatusUnprocessableEntity},
		{photos.ErrNotInCollection, http.StatusNotFound},
		{photos.ErrSubmitting, http.StatusConflict},
		{photos.ErrClosed, http.StatusGone},
		{fmt.Errorf("could not fetch photos: %w", &siteapi.APIError{Status: 500, Message: "boom"}), http.StatusBadGateway},
		{errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.expected, statusForError(tt.err))
		})
	}
}

func TestDecodeJSONValidates(t *testing.T) {
	var req moveRequest
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target":"sideways"}`))
	err := decodeJSON(r, &req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "target")

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
	assert.EqualError(t, decodeJSON(r, &req), errInvalidRequestBody)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"target":"after","ids":["a"]}`))
	require.NoError(t, decodeJSON(r, &req))
	assert.Equal(t, []string{"a"}, req.IDs)
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	var req deleteRequest
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, decodeJSON(r, &req))
	assert.False(t, req.Confirm)
}

func TestDecodeQueryFilter(t *testing.T) {
	var f photos.Filter
	r := httptest.NewRequest(http.MethodPut, "/?classification=after&from=2026-03-01&q=crack", nil)
	require.NoError(t, decodeQuery(r, &f))
	assert.Equal(t, photos.ClassificationFilter("after"), f.Classification)
	assert.Equal(t, "2026-03-01", f.From)
	assert.Equal(t, "crack", f.Search)

	r = httptest.NewRequest(http.MethodPut, "/?from=03/01/2026", nil)
	assert.Error(t, decodeQuery(r, &photos.Filter{}))
}

func TestHealthCheck(t *testing.T) {
	recorder := httptest.NewRecorder()
	HealthCheck(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	assert.Equal(t, "ok", result["status"])
}
