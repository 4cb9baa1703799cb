package ingest

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/anivault/anivault/domain/works"
)

// ErrNoIdentity marks a feed item that cannot be keyed to a work.
var ErrNoIdentity = errors.New("feed item has no usable work id")

// Bundle is the normalized form of one raw feed item: the work, the
// translation it was listed under, their link row, and the episodes.
type Bundle struct {
	Work        *works.Work
	Translation *works.Translation
	Link        *works.WorkTranslation
	Episodes    []*works.Episode
}

// altTitleKeys are scanned, in order, for alternative titles.
var altTitleKeys = []string{
	"title_orig",
	"other_title",
	"other_titles",
	"other_titles_en",
	"other_titles_jp",
}

// statusMap folds upstream status vocabulary onto ours.
var statusMap = map[string]string{
	"ongoing":   "ongoing",
	"airing":    "ongoing",
	"released":  "released",
	"finished":  "released",
	"announced": "announced",
}

// Normalize turns one raw feed record into a Bundle. The input shape is
// loose: keys may be missing and values may be scalars, lists, or nested
// objects, none of which should abort the whole batch. Output is
// deterministic for a given input.
func Normalize(raw map[string]any) (*Bundle, error) {
	workID := firstNonEmpty(str(raw["id"]), str(raw["kodik_id"]), str(raw["link"]))
	if workID == "" {
		return nil, ErrNoIdentity
	}

	translation := mapval(raw["translation"])
	translationID, _ := intval(translation["id"])
	material := mapval(raw["material_data"])
	additional := mapval(raw["additional_data"])

	episodesTotal := firstInt(additional["episodes_count"], raw["last_episode"])

	work := &works.Work{
		ID:               workID,
		Title:            str(raw["title"]),
		TitleOrig:        strPtr(raw["title_orig"]),
		AltTitles:        collectAltTitles(raw, material),
		Genres:           stringList(pick(material["genres"], material["anime_genres"])),
		ExternalIDs:      collectExternalIDs(raw),
		BlockedCountries: stringList(additional["blocked_countries"]),
		Year:             intPtr(raw["year"]),
		PosterURL:        strPtr(pick(material["poster_url"], material["anime_poster_url"])),
		Description:      strPtr(pick(material["description"], material["anime_description"])),
		RatingShiki:      floatPtr(material["shikimori_rating"]),
		RatingKinopoisk:  floatPtr(material["kinopoisk_rating"]),
		RatingIMDB:       floatPtr(material["imdb_rating"]),
		EpisodesTotal:    episodesTotal,
		Status:           normalizeStatus(material, additional),
	}

	bundle := &Bundle{
		Work: work,
		Translation: &works.Translation{
			ID:    translationID,
			Title: strPtr(translation["title"]),
			Type:  strPtr(translation["type"]),
		},
		Link: &works.WorkTranslation{
			WorkID:            workID,
			TranslationID:     translationID,
			EpisodesAvailable: episodesTotal,
			LastEpisode:       intPtr(raw["last_episode"]),
		},
		Episodes: extractEpisodes(raw, workID, translationID, episodesTotal),
	}
	return bundle, nil
}

// normalizeStatus resolves the status from its three possible homes and
// folds it through the status vocabulary. Unknown values become nil.
func normalizeStatus(material, additional map[string]any) *string {
	raw := firstNonEmpty(
		str(material["anime_status"]),
		str(material["status"]),
		str(additional["status"]),
	)
	if raw == "" {
		return nil
	}
	mapped, ok := statusMap[strings.ToLower(raw)]
	if !ok {
		return nil
	}
	return &mapped
}

// collectAltTitles gathers alternative titles from the top level and
// material_data, flattening lists and dropping empties. First occurrence
// wins so the result is stable.
func collectAltTitles(raw, material map[string]any) []string {
	seen := map[string]bool{}
	var titles []string

	add := func(v any) {
		for _, t := range stringList(v) {
			if t == "" || seen[t] {
				continue
			}
			seen[t] = true
			titles = append(titles, t)
		}
	}

	for _, key := range altTitleKeys {
		add(raw[key])
		add(material[key])
	}
	return titles
}

// collectExternalIDs keeps only the id kinds that carry a truthy value,
// stringified so numeric feed values match the text lookups downstream.
func collectExternalIDs(raw map[string]any) map[string]string {
	ids := map[string]string{}
	for kind, key := range map[string]string{
		"shikimori": "shikimori_id",
		"kinopoisk": "kinopoisk_id",
		"imdb":      "imdb_id",
	} {
		if v := str(raw[key]); v != "" {
			ids[kind] = v
		}
	}
	return ids
}

// extractEpisodes walks the seasons structure when present, otherwise
// synthesizes episodes 1..episodesTotal in season 1. Non-integer episode
// keys are skipped. The episode number is the persisted identity, so a
// duplicate number keeps the last write in deterministic key order and the
// season becomes whatever that write carried.
func extractEpisodes(raw map[string]any, workID string, translationID int, episodesTotal *int) []*works.Episode {
	byNumber := map[int]*works.Episode{}

	seasons := mapval(raw["seasons"])
	for _, seasonKey := range sortedKeys(seasons) {
		season, ok := intval(seasonKey)
		if !ok {
			season = 1
		}

		episodesDict := seasonEpisodes(seasons[seasonKey])
		for _, epKey := range sortedKeys(episodesDict) {
			number, ok := intval(epKey)
			if !ok {
				continue
			}

			ep := &works.Episode{
				ID:            episodeID(workID, translationID, number),
				WorkID:        workID,
				TranslationID: translationID,
				Number:        number,
				Season:        season,
			}
			if meta := mapval(episodesDict[epKey]); meta != nil {
				ep.Title = strPtr(pick(meta["title"], meta["name"]))
				ep.Duration = intPtr(meta["duration"])
				ep.PreviewImage = strPtr(meta["preview"])
			}
			byNumber[number] = ep
		}
	}

	if len(byNumber) == 0 {
		if episodesTotal == nil || *episodesTotal <= 0 {
			return nil
		}
		episodes := make([]*works.Episode, 0, *episodesTotal)
		for n := 1; n <= *episodesTotal; n++ {
			episodes = append(episodes, &works.Episode{
				ID:            episodeID(workID, translationID, n),
				WorkID:        workID,
				TranslationID: translationID,
				Number:        n,
				Season:        1,
			})
		}
		return episodes
	}

	episodes := make([]*works.Episode, 0, len(byNumber))
	for _, ep := range byNumber {
		episodes = append(episodes, ep)
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].Number < episodes[j].Number
	})
	return episodes
}

// seasonEpisodes unwraps a season value: either {"episodes": {...}} or the
// episode map directly. Anything else yields nothing.
func seasonEpisodes(v any) map[string]any {
	season := mapval(v)
	if season == nil {
		return nil
	}
	if inner := mapval(season["episodes"]); inner != nil {
		return inner
	}
	return season
}

func episodeID(workID string, translationID, number int) string {
	return fmt.Sprintf("%s:%d:%d", workID, translationID, number)
}

// sortedKeys returns map keys ordered numerically where possible, then
// lexically, so map walks are deterministic.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, aOK := intval(keys[i])
		b, bOK := intval(keys[j])
		if aOK && bOK && a != b {
			return a < b
		}
		if aOK != bOK {
			return aOK
		}
		return keys[i] < keys[j]
	})
	return keys
}

// str stringifies scalars: strings pass through, numbers drop trailing
// zeros, everything else becomes "".
func str(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return ""
	}
}

func intval(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func floatval(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// mapval returns v as an object, or nil when it isn't one.
func mapval(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// stringList flattens a scalar-or-list value into non-empty strings.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		var out []string
		for _, item := range t {
			if s := str(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		var out []string
		for _, s := range t {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := str(t); s != "" {
			return []string{s}
		}
		return nil
	}
}

func strPtr(v any) *string {
	if s := str(v); s != "" {
		return &s
	}
	return nil
}

func intPtr(v any) *int {
	if n, ok := intval(v); ok {
		return &n
	}
	return nil
}

func floatPtr(v any) *float64 {
	if f, ok := floatval(v); ok {
		return &f
	}
	return nil
}

// pick returns the first non-nil, non-empty candidate.
func pick(candidates ...any) any {
	for _, c := range candidates {
		if c == nil {
			continue
		}
		if s, ok := c.(string); ok && s == "" {
			continue
		}
		return c
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// firstInt returns a pointer to the first int-coercible candidate.
func firstInt(candidates ...any) *int {
	for _, c := range candidates {
		if n, ok := intval(c); ok {
			return &n
		}
	}
	return nil
}
