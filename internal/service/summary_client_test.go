package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"rezoning/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryClientSummarize(t *testing.T) {
	var got SummarizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/summarize", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(SummarizeResponse{Summary: "  A short summary.\n"})
	}))
	defer srv.Close()

	client := NewSummaryClient(srv.URL+"/", 5*time.Second, zerolog.Nop())
	text, err := client.Summarize(context.Background(), model.Project{
		ID:          "p-1",
		Name:        "Rezoning\n12 Elm St",
		Description: "Proposal for a mid-rise.",
		Tags:        []string{"housing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A short summary.", text)
	assert.Equal(t, SummarizeRequest{
		ProjectID:   "p-1",
		Title:       "Rezoning12 Elm St",
		Description: "Proposal for a mid-rise.",
		Tags:        []string{"housing"},
	}, got)
}

func TestSummaryClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad input", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := NewSummaryClient(srv.URL, 5*time.Second, zerolog.Nop()).Summarize(context.Background(), model.Project{ID: "p-1"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Body, "bad input")
	assert.True(t, IsClientError(err))
}

func TestIsClientError(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusBadRequest, true},
		{http.StatusNotFound, true},
		{http.StatusRequestTimeout, false},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsClientError(&StatusError{StatusCode: tt.status}), "status %d", tt.status)
	}
	assert.False(t, IsClientError(assert.AnError))
}
