package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JoseManaure/portfolio-server/internal/retry"
)

func TestWebhookSend(t *testing.T) {
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	require.NoError(t, wh.Send(context.Background(), "Formulario completado", "Nombre: José"))
	require.Equal(t, "Formulario completado", got.Title)
	require.Equal(t, "Nombre: José", got.Message)
}

func TestWebhookNon2xxCapturesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow desactivado", http.StatusNotFound)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	wh.Retry = retry.Policy{MaxAttempts: 1}

	err := wh.Send(context.Background(), "t", "m")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Contains(t, err.Error(), "workflow desactivado")
}

func TestWebhookRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			http.Error(w, "ngrok reconnecting", http.StatusBadGateway)
			return
		}
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	require.NoError(t, wh.Send(context.Background(), "t", "m"))
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestWebhookUnconfigured(t *testing.T) {
	wh := NewWebhook("")
	require.Error(t, wh.Send(context.Background(), "t", "m"))
}
