package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/srvctl/internal/history"
)

func TestSinkPostsDocument(t *testing.T) {
	var (
		method, path, ctype string
		body                []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path, ctype = r.Method, r.URL.Path, r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	sink := New(srv.URL+"/", "server-history")
	e := history.Event{Type: history.EventStart, OccurredAt: time.Now().UTC().Truncate(time.Second), Name: "web", PID: 9, Port: 9000}
	require.NoError(t, sink.Send(context.Background(), e))

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/server-history/_doc", path)
	assert.Equal(t, "application/json", ctype)

	var got history.Event
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, e.Name, got.Name)
	assert.Equal(t, e.Type, got.Type)
	assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
}

func TestSinkErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL, "idx").Send(context.Background(), history.Event{Type: history.EventStop, Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestSinkConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	assert.Error(t, New(url, "idx").Send(context.Background(), history.Event{}))
}
