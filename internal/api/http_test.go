package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/BENZOOgataga/DeepSearch/internal/search"
	"github.com/BENZOOgataga/DeepSearch/internal/store"
)

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHTTPStartAndPollJob(t *testing.T) {
	client := newFakeClient()
	client.addChannel("c1", "general", 10, "foo here")
	s := testService(t, client)
	h := s.Router()

	w := doJSON(t, h, http.MethodPost, "/v1/jobs", JobRequest{Kind: "search", Query: "foo"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: code = %d, body = %s", w.Code, w.Body)
	}

	waitIdle(t, s, search.KindSearch)

	w = doJSON(t, h, http.MethodGet, "/v1/jobs/search", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("poll: code = %d", w.Code)
	}
	var snap JobSnapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Summary == nil || snap.Summary.MatchesFound != 10 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestHTTPErrorCodes(t *testing.T) {
	s := testService(t, newFakeClient())
	h := s.Router()

	cases := []struct {
		method, path string
		body         any
		want         int
	}{
		{http.MethodPost, "/v1/jobs", JobRequest{Kind: "bogus"}, http.StatusBadRequest},
		{http.MethodPost, "/v1/jobs", JobRequest{Kind: "regex", Query: "("}, http.StatusBadRequest},
		{http.MethodPost, "/v1/jobs/search/cancel", nil, http.StatusNotFound},
		{http.MethodPost, "/v1/jobs/bogus/cancel", nil, http.StatusBadRequest},
		{http.MethodGet, "/v1/jobs/bogus", nil, http.StatusBadRequest},
		{http.MethodGet, "/v1/hits?limit=-3", nil, http.StatusBadRequest},
	}
	for _, c := range cases {
		w := doJSON(t, h, c.method, c.path, c.body)
		if w.Code != c.want {
			t.Errorf("%s %s: code = %d, want %d (%s)", c.method, c.path, w.Code, c.want, w.Body)
		}
	}
}

func TestHTTPKeywordsRoundTrip(t *testing.T) {
	s := testService(t, newFakeClient())
	h := s.Router()

	w := doJSON(t, h, http.MethodPut, "/v1/keywords", map[string][]string{"keywords": {"alpha"}})
	if w.Code != http.StatusOK {
		t.Fatalf("put: code = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/v1/keywords", nil)
	var body map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body["keywords"]) != 1 || body["keywords"][0] != "alpha" {
		t.Errorf("keywords = %v", body)
	}
}

func TestHTTPArchiveSearch(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	if err := db.UpsertChannel(&store.Channel{JID: "c1@g.us", Name: "general", CanRead: true}); err != nil {
		t.Fatal(err)
	}
	for i, body := range []string{"deploy went fine", "rollback the deploy", "lunch plans"} {
		if err := db.UpsertMessage(&store.Message{
			ChannelJID: "c1@g.us",
			MsgID:      fmt.Sprintf("m%d", i),
			SenderJID:  "u1@s.whatsapp.net",
			SenderName: "alice",
			Body:       body,
			Timestamp:  int64(1000 + i),
		}); err != nil {
			t.Fatal(err)
		}
	}

	s := testService(t, newFakeClient())
	s.db = db
	h := s.Router()

	w := doJSON(t, h, http.MethodGet, "/v1/archive/search?q=deploy", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", w.Code, w.Body)
	}
	var matches []ArchiveMatch
	if err := json.Unmarshal(w.Body.Bytes(), &matches); err != nil {
		t.Fatal(err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches = %d, want 2", len(matches))
	}
	if matches[0].Snippet == "" {
		t.Error("snippet not populated")
	}

	w = doJSON(t, h, http.MethodGet, "/v1/archive/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: code = %d, want 400", w.Code)
	}
}

func TestHTTPStatsAndStatus(t *testing.T) {
	s := testService(t, newFakeClient())
	h := s.Router()

	for _, path := range []string{"/v1/stats", "/v1/status", "/v1/caches", "/metrics"} {
		w := doJSON(t, h, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: code = %d", path, w.Code)
		}
	}
}
