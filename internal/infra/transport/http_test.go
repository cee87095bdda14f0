package transport

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/tapedeck/internal/app/scheduler"
)

func execute(t *testing.T, tr *HTTP, req scheduler.Request) scheduler.Response {
	t.Helper()
	ch := make(chan scheduler.Response, 2)
	tr.Execute(req, func(resp scheduler.Response) { ch <- resp })

	select {
	case resp := <-ch:
		select {
		case <-ch:
			t.Fatal("completion fired twice")
		case <-time.After(20 * time.Millisecond):
		}
		return resp
	case <-time.After(5 * time.Second):
		t.Fatal("completion never fired")
		return scheduler.Response{}
	}
}

func TestHTTP_Execute(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/ping.view", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("f"))
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	tr, err := New(Config{BaseURL: server.URL + "/"})
	require.NoError(t, err)
	defer tr.Close()

	resp := execute(t, tr, scheduler.Request{Path: "rest/ping.view", Query: url.Values{"f": {"json"}}})
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestHTTP_ErrorStatusIsNotTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer server.Close()

	tr, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)

	resp := execute(t, tr, scheduler.Request{Path: "/missing"})
	assert.NoError(t, resp.Err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_ConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	base := server.URL
	server.Close()

	tr, err := New(Config{BaseURL: base, Timeout: time.Second})
	require.NoError(t, err)

	resp := execute(t, tr, scheduler.Request{Path: "/rest/ping.view"})
	assert.Error(t, resp.Err)
}

func TestHTTP_URL(t *testing.T) {
	tr, err := New(Config{BaseURL: "http://music.local:4533/"})
	require.NoError(t, err)

	assert.Equal(t, "http://music.local:4533/rest/ping.view", tr.URL(scheduler.Request{Path: "/rest/ping.view"}))
	assert.Equal(t, "http://music.local:4533/rest/stream.view?id=7", tr.URL(scheduler.Request{Path: "rest/stream.view", Query: url.Values{"id": {"7"}}}))

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestHTTP_DrivesScheduler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.URL.Query().Get("n"))
	}))
	defer server.Close()

	tr, err := New(Config{BaseURL: server.URL})
	require.NoError(t, err)
	s := scheduler.New(tr, scheduler.Config{MaxConcurrent: 2})

	results := make(chan string, 10)
	for i := 0; i < 10; i++ {
		n := fmt.Sprint(i)
		require.NoError(t, s.Submit(scheduler.Request{Path: "/echo", Query: url.Values{"n": {n}}}, scheduler.CallbackID(n), func(resp scheduler.Response) {
			results <- string(resp.Body)
		}))
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		select {
		case r := <-results:
			seen[r] = true
		case <-time.After(5 * time.Second):
			t.Fatal("timed out")
		}
	}
	assert.Len(t, seen, 10)
	assert.Equal(t, 0, s.Stats().Executing)
}
