package model

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaJudgeSingleResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`{"response": "{\"ok\": true}", "done": true}`))
	}))
	defer srv.Close()

	j := NewOllamaJudge(srv.URL, "test-model")
	out, err := j.Invoke(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"ok": true}`, out)
}

func TestOllamaJudgeStreamedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "", "done": false}
{"response": "part one ", "done": false}
{"response": "part two", "done": true}`))
	}))
	defer srv.Close()

	j := NewOllamaJudge(srv.URL, "test-model")
	out, err := j.Invoke(context.Background(), "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "part one part two", out)
}

func TestOllamaJudgeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	j := NewOllamaJudge(srv.URL, "test-model")
	_, err := j.Invoke(context.Background(), "system", "prompt")
	assert.Error(t, err)
}

func TestOllamaJudgeHonoursCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "late", "done": true}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	j := NewOllamaJudge(srv.URL, "test-model")
	_, err := j.Invoke(ctx, "system", "prompt")
	assert.Error(t, err)
}
