package qbittorrent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfstream/shelfstream/internal/downloader/types"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, _ := strconv.Atoi(u.Port())

	client, err := New(Config{
		Name:     "qbit",
		Host:     u.Hostname(),
		Port:     port,
		Username: "admin",
		Password: "pass",
	})
	require.NoError(t, err)
	return client
}

func loginOK(mux *http.ServeMux, t *testing.T) {
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("username") == "admin" && r.Form.Get("password") == "pass" {
			http.SetCookie(w, &http.Cookie{Name: "SID", Value: "abc"})
			w.Write([]byte("Ok."))
			return
		}
		w.Write([]byte("Fails."))
	})
}

func TestLoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Fails."))
	})
	client := newTestClient(t, mux)

	err := client.Test(context.Background())
	assert.ErrorIs(t, err, types.ErrAuthFailed)
}

func TestExpiredSessionRetriesOnce(t *testing.T) {
	logins := 0
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/app/version", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("v5.0.0"))
	})
	client := newTestClient(t, mux)

	require.NoError(t, client.Test(context.Background()))
	assert.Equal(t, 2, logins)
	assert.Equal(t, 2, calls)
}

func TestPersistentForbiddenFailsAfterOneRetry(t *testing.T) {
	logins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		logins++
		w.Write([]byte("Ok."))
	})
	mux.HandleFunc("/api/v2/app/version", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	client := newTestClient(t, mux)

	err := client.Test(context.Background())
	assert.ErrorIs(t, err, types.ErrAuthFailed)
	assert.Equal(t, 2, logins)
}

func TestSubmitMagnet(t *testing.T) {
	mux := http.NewServeMux()
	loginOK(mux, t)
	mux.HandleFunc("/api/v2/torrents/add", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Contains(t, r.Form.Get("urls"), "magnet:")
		w.Write([]byte("Ok."))
	})
	client := newTestClient(t, mux)

	id, err := client.Submit(context.Background(), types.Submission{
		URL: "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567&dn=dune",
	})
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef01234567", id)
}

func TestStatus(t *testing.T) {
	mux := http.NewServeMux()
	loginOK(mux, t)
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{
			"hash": "aa", "name": "Dune", "state": "stalledUP",
			"progress": 1.0, "size": 4096,
			"content_path": "/downloads/Dune", "ratio": 2.0
		}]`))
	})
	client := newTestClient(t, mux)

	tr, err := client.Status(context.Background(), "aa")
	require.NoError(t, err)
	assert.Equal(t, types.StateSeeding, tr.State)
	assert.Equal(t, "stalledUP", tr.RawState)
	assert.Equal(t, "/downloads/Dune", tr.Path)
	assert.InDelta(t, 100.0, tr.Progress, 0.01)
}

func TestStatusNotFound(t *testing.T) {
	mux := http.NewServeMux()
	loginOK(mux, t)
	mux.HandleFunc("/api/v2/torrents/info", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	client := newTestClient(t, mux)

	_, err := client.Status(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestMapState(t *testing.T) {
	tests := []struct {
		raw  string
		want types.State
	}{
		{"downloading", types.StateActive},
		{"stalledDL", types.StateActive},
		{"queuedDL", types.StateQueued},
		{"pausedDL", types.StatePaused},
		{"uploading", types.StateSeeding},
		{"stalledUP", types.StateSeeding},
		{"queuedUP", types.StateSeeding},
		{"seeding", types.StateSeeding},
		{"pausedUP", types.StateComplete},
		{"error", types.StateFailed},
		{"missingFiles", types.StateFailed},
		{"somethingNew", types.StateUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapState(tt.raw), tt.raw)
	}
}
