package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/sessionauth/internal/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.bodies = append(f.bodies, string(body))
		f.mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			_, _ = io.WriteString(w, `{"version":{"number":"9.0.0"},"tagline":"You Know, for Search"}`)
		case strings.HasSuffix(r.URL.Path, "/_search"):
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":2},"hits":[{"_source":{"uid":"b"}},{"_source":{"uid":"a"}}]}}`)
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/missing"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"result":"not_found"}`)
		case r.Method == http.MethodDelete:
			_, _ = io.WriteString(w, `{"result":"deleted"}`)
		case r.Method == http.MethodPut || r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"result":"created"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"unexpected"}`)
		}
	}
}

func newTestDirectory(t *testing.T) (*Directory, *fakeES) {
	t.Helper()

	f := &fakeES{}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)
	return NewDirectory(client, "users"), f
}

func TestDirectory_PutAndRemove(t *testing.T) {
	t.Parallel()

	d, f := newTestDirectory(t)
	ctx := context.Background()

	require.NoError(t, d.Put(ctx, &models.User{UID: "a", Name: "Ann", Email: "ann@x.io", Role: "user"}))
	require.NoError(t, d.Remove(ctx, "a"))
	require.NoError(t, d.Remove(ctx, "missing"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Contains(t, f.requests, "PUT /users/_doc/a")
	assert.Contains(t, f.requests, "DELETE /users/_doc/a")

	var doc map[string]any
	for i, r := range f.requests {
		if r == "PUT /users/_doc/a" {
			require.NoError(t, json.Unmarshal([]byte(f.bodies[i]), &doc))
		}
	}
	assert.Equal(t, "ann@x.io", doc["email"])
	assert.NotContains(t, doc, "passwordHash")
}

func TestDirectory_Search(t *testing.T) {
	t.Parallel()

	d, f := newTestDirectory(t)

	total, uids, err := d.Search(context.Background(), "ann", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Equal(t, []string{"b", "a"}, uids)

	f.mu.Lock()
	defer f.mu.Unlock()
	last := f.bodies[len(f.bodies)-1]
	assert.Contains(t, last, `"multi_match"`)
	assert.Contains(t, last, `"ann"`)
}
