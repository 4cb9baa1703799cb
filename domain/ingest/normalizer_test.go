package ingest

import (
	"errors"
	"reflect"
	"testing"

	"github.com/anivault/anivault/domain/catalog"
)

func sampleItem() map[string]any {
	// Decoded JSON: numbers arrive as float64
	return map[string]any{
		"id":         "kodik123",
		"title":      "Тайтл",
		"title_orig": "Title",
		"translation": map[string]any{
			"id":    float64(10),
			"title": "Test",
			"type":  "voice",
		},
		"year":         float64(2024),
		"last_episode": float64(2),
		"material_data": map[string]any{
			"poster_url":   "https://example.com/poster.jpg",
			"description":  "desc",
			"genres":       []any{"action"},
			"other_titles": []any{"Alt"},
		},
		"additional_data": map[string]any{
			"episodes_count": float64(2),
		},
		"shikimori_id": float64(1),
	}
}

func TestNormalize_DictPath(t *testing.T) {
	bundle, err := Normalize(sampleItem())
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if bundle.Work.ID != "kodik123" {
		t.Errorf("work id = %q, want kodik123", bundle.Work.ID)
	}
	if bundle.Work.Title != "Тайтл" {
		t.Errorf("title = %q", bundle.Work.Title)
	}
	if bundle.Translation.ID != 10 {
		t.Errorf("translation id = %d, want 10", bundle.Translation.ID)
	}
	if bundle.Link.WorkID != "kodik123" || bundle.Link.TranslationID != 10 {
		t.Errorf("link = %+v", bundle.Link)
	}

	if len(bundle.Episodes) != 2 {
		t.Fatalf("episodes = %d, want 2 synthesized from episodes_count", len(bundle.Episodes))
	}
	for i, wantID := range []string{"kodik123:10:1", "kodik123:10:2"} {
		if bundle.Episodes[i].ID != wantID {
			t.Errorf("episodes[%d].ID = %q, want %q", i, bundle.Episodes[i].ID, wantID)
		}
		if bundle.Episodes[i].Season != 1 {
			t.Errorf("episodes[%d].Season = %d, want 1", i, bundle.Episodes[i].Season)
		}
	}

	wantIDs := map[string]string{"shikimori": "1"}
	if !reflect.DeepEqual(bundle.Work.ExternalIDs, wantIDs) {
		t.Errorf("external ids = %v, want %v", bundle.Work.ExternalIDs, wantIDs)
	}

	hasAlt := func(want string) bool {
		for _, t := range bundle.Work.AltTitles {
			if t == want {
				return true
			}
		}
		return false
	}
	if !hasAlt("Alt") || !hasAlt("Title") {
		t.Errorf("alt titles = %v, want both Alt and Title", bundle.Work.AltTitles)
	}

	if bundle.Work.EpisodesTotal == nil || *bundle.Work.EpisodesTotal != 2 {
		t.Errorf("episodes total = %v, want 2", bundle.Work.EpisodesTotal)
	}
	if bundle.Work.PosterURL == nil || *bundle.Work.PosterURL != "https://example.com/poster.jpg" {
		t.Errorf("poster = %v", bundle.Work.PosterURL)
	}
	if !reflect.DeepEqual(bundle.Work.Genres, []string{"action"}) {
		t.Errorf("genres = %v", bundle.Work.Genres)
	}
}

func TestNormalize_Identity(t *testing.T) {
	tests := []struct {
		name    string
		raw     map[string]any
		wantID  string
		wantErr bool
	}{
		{"id wins", map[string]any{"id": "a", "kodik_id": "b", "link": "c", "title": "T"}, "a", false},
		{"kodik_id fallback", map[string]any{"kodik_id": "b", "link": "c", "title": "T"}, "b", false},
		{"link fallback", map[string]any{"link": "/serial/1/xyz/720p", "title": "T"}, "/serial/1/xyz/720p", false},
		{"nothing", map[string]any{"title": "T"}, "", true},
		{"empty strings", map[string]any{"id": "", "kodik_id": "", "title": "T"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bundle, err := Normalize(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrNoIdentity) {
					t.Fatalf("error = %v, want ErrNoIdentity", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if bundle.Work.ID != tt.wantID {
				t.Errorf("work id = %q, want %q", bundle.Work.ID, tt.wantID)
			}
		})
	}
}

func TestNormalize_SeasonsStructure(t *testing.T) {
	raw := map[string]any{
		"id":    "w1",
		"title": "Seasons",
		"translation": map[string]any{
			"id": float64(610),
		},
		"seasons": map[string]any{
			"1": map[string]any{
				"episodes": map[string]any{
					"1": "//cloud.kodik-storage.com/s/1/720.mp4:hls:manifest.m3u8",
					"2": map[string]any{
						"title":    "Второй эпизод",
						"duration": float64(24),
						"preview":  "https://example.com/p2.jpg",
					},
					"special": map[string]any{"title": "skipped"},
				},
			},
			"2": map[string]any{
				"1": "//cloud.kodik-storage.com/s/2/720.mp4",
			},
		},
	}

	bundle, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	// Episode 1 appears in both seasons; the number is the identity, so the
	// later season-2 write wins and only two rows remain.
	if len(bundle.Episodes) != 2 {
		t.Fatalf("episodes = %d, want 2 (non-integer key skipped, duplicate number collapsed)", len(bundle.Episodes))
	}

	ep := bundle.Episodes[0]
	if ep.ID != "w1:610:1" || ep.Season != 2 || ep.Title != nil {
		t.Errorf("episodes[0] = %+v, want season 2 episode 1 without metadata", ep)
	}

	ep = bundle.Episodes[1]
	if ep.ID != "w1:610:2" || ep.Season != 1 || ep.Title == nil || *ep.Title != "Второй эпизод" {
		t.Errorf("episodes[1] = %+v", ep)
	}
	if ep.Duration == nil || *ep.Duration != 24 {
		t.Errorf("episodes[1].Duration = %v, want 24", ep.Duration)
	}
	if ep.PreviewImage == nil || *ep.PreviewImage != "https://example.com/p2.jpg" {
		t.Errorf("episodes[1].PreviewImage = %v", ep.PreviewImage)
	}
}

func TestNormalize_DuplicateIdentityKeepsLast(t *testing.T) {
	// Both season keys parse to season 1; the later key in deterministic
	// order wins for the duplicated episode number.
	raw := map[string]any{
		"id":          "w1",
		"title":       "Dup",
		"translation": map[string]any{"id": float64(5)},
		"seasons": map[string]any{
			"01": map[string]any{"1": map[string]any{"title": "first"}},
			"1":  map[string]any{"1": map[string]any{"title": "second"}},
		},
	}

	bundle, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(bundle.Episodes) != 1 {
		t.Fatalf("episodes = %d, want 1", len(bundle.Episodes))
	}
	if bundle.Episodes[0].Title == nil || *bundle.Episodes[0].Title != "second" {
		t.Errorf("title = %v, want the last write to win", bundle.Episodes[0].Title)
	}
}

func TestNormalize_Status(t *testing.T) {
	tests := []struct {
		name     string
		material map[string]any
		addData  map[string]any
		want     *string
	}{
		{"airing maps to ongoing", map[string]any{"anime_status": "airing"}, nil, ptr("ongoing")},
		{"finished maps to released", map[string]any{"anime_status": "finished"}, nil, ptr("released")},
		{"announced passes through", map[string]any{"status": "Announced"}, nil, ptr("announced")},
		{"additional_data fallback", nil, map[string]any{"status": "ongoing"}, ptr("ongoing")},
		{"unknown drops to nil", map[string]any{"anime_status": "cancelled"}, nil, nil},
		{"absent", nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]any{"id": "w", "title": "S"}
			if tt.material != nil {
				raw["material_data"] = tt.material
			}
			if tt.addData != nil {
				raw["additional_data"] = tt.addData
			}

			bundle, err := Normalize(raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			got := bundle.Work.Status
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("status = %v, want %v", deref(got), deref(tt.want))
			}
			if got != nil && *got != *tt.want {
				t.Errorf("status = %q, want %q", *got, *tt.want)
			}
		})
	}
}

func TestNormalize_Ratings(t *testing.T) {
	raw := map[string]any{
		"id":    "w",
		"title": "R",
		"material_data": map[string]any{
			"shikimori_rating": float64(8.31),
			"kinopoisk_rating": "7.9",
			"imdb_rating":      "N/A",
		},
	}

	bundle, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if bundle.Work.RatingShiki == nil || *bundle.Work.RatingShiki != 8.31 {
		t.Errorf("shiki = %v, want 8.31", bundle.Work.RatingShiki)
	}
	if bundle.Work.RatingKinopoisk == nil || *bundle.Work.RatingKinopoisk != 7.9 {
		t.Errorf("kinopoisk = %v, want 7.9 parsed from string", bundle.Work.RatingKinopoisk)
	}
	if bundle.Work.RatingIMDB != nil {
		t.Errorf("imdb = %v, want nil for non-numeric", bundle.Work.RatingIMDB)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	a, err := Normalize(sampleItem())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Normalize(sampleItem())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("normalizing the same input twice must produce identical bundles")
	}
}

func TestNormalize_EpisodesTotalPrefersCount(t *testing.T) {
	raw := map[string]any{
		"id":              "w",
		"title":           "E",
		"last_episode":    float64(12),
		"additional_data": map[string]any{"episodes_count": float64(13)},
	}

	bundle, err := Normalize(raw)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Work.EpisodesTotal == nil || *bundle.Work.EpisodesTotal != 13 {
		t.Errorf("episodes total = %v, want 13 (episodes_count wins)", bundle.Work.EpisodesTotal)
	}
	if bundle.Link.LastEpisode == nil || *bundle.Link.LastEpisode != 12 {
		t.Errorf("last episode = %v, want 12", bundle.Link.LastEpisode)
	}
	if len(bundle.Episodes) != 13 {
		t.Errorf("synthesized episodes = %d, want 13", len(bundle.Episodes))
	}
}

func TestChunkItems(t *testing.T) {
	mk := func(n int) []catalog.Item {
		out := make([]catalog.Item, n)
		for i := range out {
			out[i] = catalog.Item{"id": i}
		}
		return out
	}

	tests := []struct {
		name     string
		items    int
		size     int
		wantLens []int
	}{
		{"even split", 4, 2, []int{2, 2}},
		{"remainder", 5, 2, []int{2, 2, 1}},
		{"oversized batch", 3, 10, []int{3}},
		{"zero size keeps one batch", 3, 0, []int{3}},
		{"empty", 0, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := chunkItems(mk(tt.items), tt.size)
			if len(batches) != len(tt.wantLens) {
				t.Fatalf("batches = %d, want %d", len(batches), len(tt.wantLens))
			}
			for i, want := range tt.wantLens {
				if len(batches[i]) != want {
					t.Errorf("batch[%d] len = %d, want %d", i, len(batches[i]), want)
				}
			}
		})
	}
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
