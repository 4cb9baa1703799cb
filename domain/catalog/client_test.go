package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := &Config{
		Token:    "test-token",
		BaseURL:  baseURL,
		RPSLimit: 1000,
		Timeout:  5 * time.Second,
	}
	c := NewClient(cfg, NewPacer(cfg), slog.Default())
	c.backoffBase = time.Millisecond
	return c
}

func writeListPage(w http.ResponseWriter, items []Item, nextPage string) {
	resp := map[string]any{"results": items}
	if nextPage != "" {
		resp["next_page"] = nextPage
	} else {
		resp["next_page"] = nil
	}
	json.NewEncoder(w).Encode(resp)
}

func item(id string, updatedAt string) Item {
	it := Item{"id": id}
	if updatedAt != "" {
		it["updated_at"] = updatedAt
	}
	return it
}

func TestFetchFullList_Pagination(t *testing.T) {
	var requests []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		switch r.URL.Query().Get("next") {
		case "":
			writeListPage(w, []Item{item("a", ""), item("b", "")}, srvURL(r)+"/list?next=cur2")
		case "cur2":
			writeListPage(w, []Item{item("c", "")}, srvURL(r)+"/list?next=cur3")
		case "cur3":
			writeListPage(w, []Item{item("d", "")}, "")
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("next"))
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.FetchFullList(t.Context(), 50, 0)
	if err != nil {
		t.Fatalf("FetchFullList() error = %v", err)
	}

	if len(items) != 4 {
		t.Fatalf("len(items) = %d, want 4", len(items))
	}
	wantIDs := []string{"a", "b", "c", "d"}
	for i, it := range items {
		if it["id"] != wantIDs[i] {
			t.Errorf("items[%d][id] = %v, want %v", i, it["id"], wantIDs[i])
		}
	}
	if len(requests) != 3 {
		t.Errorf("request count = %d, want 3", len(requests))
	}
}

func srvURL(r *http.Request) string {
	return "http://" + r.Host
}

func TestFetchFullList_QueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		checks := map[string]string{
			"token":              "test-token",
			"limit":              "25",
			"types":              "anime,anime-serial",
			"with_material_data": "true",
			"with_episodes":      "true",
			"sort":               "updated_at",
			"order":              "desc",
		}
		for k, want := range checks {
			if got := q.Get(k); got != want {
				t.Errorf("query %s = %q, want %q", k, got, want)
			}
		}
		writeListPage(w, nil, "")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	if _, err := c.FetchFullList(t.Context(), 25, 0); err != nil {
		t.Fatalf("FetchFullList() error = %v", err)
	}
}

func TestFetchFullList_MaxPages(t *testing.T) {
	pages := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		// Always advertises another page
		writeListPage(w, []Item{item(fmt.Sprintf("p%d", pages), "")}, srvURL(r)+"/list?next=more")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.FetchFullList(t.Context(), 10, 2)
	if err != nil {
		t.Fatalf("FetchFullList() error = %v", err)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
	if pages != 2 {
		t.Errorf("pages fetched = %d, want 2", pages)
	}
}

func TestFetchFullList_PageSizeClamped(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		wantLimit string
	}{
		{"above maximum", 500, "100"},
		{"zero", 0, "1"},
		{"negative", -3, "1"},
		{"in range", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("limit"); got != tt.wantLimit {
					t.Errorf("limit = %q, want %q", got, tt.wantLimit)
				}
				writeListPage(w, nil, "")
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			if _, err := c.FetchFullList(t.Context(), tt.pageSize, 0); err != nil {
				t.Fatalf("FetchFullList() error = %v", err)
			}
		})
	}
}

func TestFetchDelta_ShortCircuit(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		switch r.URL.Query().Get("next") {
		case "":
			writeListPage(w, []Item{
				item("new1", "2024-06-03T12:00:00Z"),
				item("new2", "2024-06-02T08:00:00Z"),
			}, srvURL(r)+"/list?next=p2")
		case "p2":
			writeListPage(w, []Item{
				item("new3", "2024-06-01T09:00:00Z"),
				item("old1", "2024-05-20T00:00:00Z"),
				item("old2", "2024-05-10T00:00:00Z"),
			}, srvURL(r)+"/list?next=p3")
		default:
			t.Error("fetched past the short-circuit point")
			writeListPage(w, nil, "")
		}
	}))
	defer srv.Close()

	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, srv.URL)
	items, err := c.FetchDelta(t.Context(), since, 50, 0)
	if err != nil {
		t.Fatalf("FetchDelta() error = %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(items))
	}
	for i, want := range []string{"new1", "new2", "new3"} {
		if items[i]["id"] != want {
			t.Errorf("items[%d][id] = %v, want %v", i, items[i]["id"], want)
		}
	}
	if requests != 2 {
		t.Errorf("request count = %d, want 2 (short-circuit must stop paging)", requests)
	}
}

func TestFetchDelta_SkipsUndatedItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeListPage(w, []Item{
			item("dated", "2024-06-03T12:00:00Z"),
			item("undated", ""),
			{"id": "badstamp", "updated_at": "not-a-date"},
			item("dated2", "2024-06-02T12:00:00Z"),
		}, "")
	}))
	defer srv.Close()

	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	c := newTestClient(t, srv.URL)
	items, err := c.FetchDelta(t.Context(), since, 50, 0)
	if err != nil {
		t.Fatalf("FetchDelta() error = %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}
	if items[0]["id"] != "dated" || items[1]["id"] != "dated2" {
		t.Errorf("unexpected items: %v", items)
	}
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeListPage(w, []Item{item("ok", "")}, "")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.FetchFullList(t.Context(), 10, 0)
	if err != nil {
		t.Fatalf("FetchFullList() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("len(items) = %d, want 1", len(items))
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClient_RetryExhausted(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchFullList(t.Context(), 10, 0)
	if err == nil {
		t.Fatal("FetchFullList() should fail when every attempt errors")
	}
	if attempts != maxRetries {
		t.Errorf("attempts = %d, want %d", attempts, maxRetries)
	}
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("error should wrap *NetworkError, got %v", err)
	}
}

func TestClient_PermanentErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"unknown token"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchFullList(t.Context(), 10, 0)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (4xx must not be retried)", attempts)
	}
}

func TestClient_MalformedBodyNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte(`{"results": [truncated`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchFullList(t.Context(), 10, 0)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestClient_RateLimitedThenRecovers(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeListPage(w, []Item{item("ok", "")}, "")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	items, err := c.FetchFullList(t.Context(), 10, 0)
	if err != nil {
		t.Fatalf("FetchFullList() error = %v", err)
	}
	if len(items) != 1 || attempts != 2 {
		t.Errorf("items = %d attempts = %d, want 1 item after 2 attempts", len(items), attempts)
	}
}

func TestClient_RateLimitedExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchFullList(t.Context(), 10, 0)

	var rlErr *RateLimitedError
	if !errors.As(err, &rlErr) {
		t.Fatalf("error = %v, want *RateLimitedError", err)
	}
}

func TestClient_MissingCursorOnNonTerminalPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// next_page is a URL but carries no next parameter
		writeListPage(w, []Item{item("a", "")}, srvURL(r)+"/list?limit=10")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchFullList(t.Context(), 10, 0)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestCursorFrom(t *testing.T) {
	tests := []struct {
		name     string
		nextPage string
		want     string
		wantErr  bool
	}{
		{"full URL with cursor", "https://api.example.com/list?limit=10&next=abc123", "abc123", false},
		{"bare cursor", "abc123", "abc123", false},
		{"URL without cursor", "https://api.example.com/list?limit=10", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cursorFrom(tt.nextPage)
			if tt.wantErr {
				if err == nil {
					t.Fatal("cursorFrom() should error")
				}
				return
			}
			if err != nil {
				t.Fatalf("cursorFrom() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("cursorFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEpisodePlaylist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("id") != "12345" || q.Get("id_type") != "shikimori" {
			t.Errorf("id = %q id_type = %q, want 12345/shikimori", q.Get("id"), q.Get("id_type"))
		}
		if q.Get("translation_id") != "610" || q.Get("seria") != "3" || q.Get("quality") != "720" {
			t.Errorf("unexpected playlist params: %v", q)
		}
		json.NewEncoder(w).Encode(map[string]string{"link": "//cdn.example.com/video/3/720.mp4:hls:manifest.m3u8"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	ids := map[string]string{"kinopoisk": "999", "shikimori": "12345"}
	link, err := c.GetEpisodePlaylist(t.Context(), ids, 610, 3, 720)
	if err != nil {
		t.Fatalf("GetEpisodePlaylist() error = %v", err)
	}
	want := "https://cdn.example.com/video/3/720.mp4:hls:manifest.m3u8"
	if link != want {
		t.Errorf("link = %q, want %q", link, want)
	}
}

func TestGetEpisodePlaylist_NoExternalIDs(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetEpisodePlaylist(t.Context(), map[string]string{}, 610, 1, 720)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if requests != 0 {
		t.Errorf("no HTTP request should be made without external ids, got %d", requests)
	}
}

func TestGetEpisodePlaylist_NotFoundFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetEpisodePlaylist(t.Context(), map[string]string{"imdb": "tt001"}, 610, 1, 480)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestGetEpisodePlaylist_EmptyLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"link": ""})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.GetEpisodePlaylist(t.Context(), map[string]string{"shikimori": "1"}, 0, 1, 720)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("error = %v, want *ProtocolError", err)
	}
}

func TestPickExternalID(t *testing.T) {
	tests := []struct {
		name     string
		ids      map[string]string
		wantVal  string
		wantKind string
		wantErr  bool
	}{
		{"shikimori wins", map[string]string{"imdb": "tt1", "shikimori": "100", "kinopoisk": "200"}, "100", "shikimori", false},
		{"kinopoisk over imdb", map[string]string{"imdb": "tt1", "kinopoisk": "200"}, "200", "kinopoisk", false},
		{"imdb alone", map[string]string{"imdb": "tt1"}, "tt1", "imdb", false},
		{"empty values ignored", map[string]string{"shikimori": "", "imdb": "tt2"}, "tt2", "imdb", false},
		{"nothing usable", map[string]string{"mydramalist": "5"}, "", "", true},
		{"nil map", nil, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, kind, err := PickExternalID(tt.ids)
			if tt.wantErr {
				if !errors.Is(err, ErrNotFound) {
					t.Fatalf("error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("PickExternalID() error = %v", err)
			}
			if val != tt.wantVal || kind != tt.wantKind {
				t.Errorf("PickExternalID() = (%q, %q), want (%q, %q)", val, kind, tt.wantVal, tt.wantKind)
			}
		})
	}
}

func TestItemUpdatedAt(t *testing.T) {
	tests := []struct {
		name   string
		item   Item
		wantOK bool
	}{
		{"RFC3339", Item{"updated_at": "2024-06-01T10:00:00Z"}, true},
		{"naive timestamp", Item{"updated_at": "2024-06-01T10:00:00"}, true},
		{"missing", Item{}, false},
		{"wrong type", Item{"updated_at": 12345}, false},
		{"garbage", Item{"updated_at": "yesterday"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.item.UpdatedAt()
			if ok != tt.wantOK {
				t.Errorf("UpdatedAt() ok = %v, want %v", ok, tt.wantOK)
			}
		})
	}
}
