package works

import (
	"time"

	"github.com/uptrace/bun"
)

// Work is one catalog title from catalog.work. The primary key is the
// upstream catalog id, so re-ingesting the same feed converges instead of
// duplicating rows.
type Work struct {
	bun.BaseModel `bun:"table:catalog.work,alias:w"`

	ID        string   `bun:"id,pk" json:"id"`
	Title     string   `bun:"title,notnull" json:"title"`
	TitleOrig *string  `bun:"title_orig" json:"titleOrig,omitempty"`
	AltTitles []string `bun:"alt_titles,type:jsonb" json:"altTitles,omitempty"`
	Genres    []string `bun:"genres,type:jsonb" json:"genres,omitempty"`

	// ExternalIDs maps id kind (shikimori, kinopoisk, imdb) to the value
	// used for playlist lookups.
	ExternalIDs      map[string]string `bun:"external_ids,type:jsonb" json:"externalIds,omitempty"`
	BlockedCountries []string          `bun:"blocked_countries,type:jsonb" json:"blockedCountries,omitempty"`

	Year        *int    `bun:"year" json:"year,omitempty"`
	PosterURL   *string `bun:"poster_url" json:"posterUrl,omitempty"`
	Description *string `bun:"description" json:"description,omitempty"`

	RatingShiki     *float64 `bun:"rating_shiki" json:"ratingShiki,omitempty"`
	RatingKinopoisk *float64 `bun:"rating_kinopoisk" json:"ratingKinopoisk,omitempty"`
	RatingIMDB      *float64 `bun:"rating_imdb" json:"ratingImdb,omitempty"`

	EpisodesTotal *int    `bun:"episodes_total" json:"episodesTotal,omitempty"`
	Status        *string `bun:"status" json:"status,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`

	// Similarity is populated by trigram search queries, not stored.
	Similarity float64 `bun:"similarity,scanonly" json:"similarity,omitempty"`

	Translations []*WorkTranslation `bun:"rel:has-many,join:id=work_id" json:"translations,omitempty"`
}

// Translation is a dub/sub studio from catalog.translation. Ids come from
// the upstream feed and are shared across works.
type Translation struct {
	bun.BaseModel `bun:"table:catalog.translation,alias:t"`

	ID    int     `bun:"id,pk" json:"id"`
	Title *string `bun:"title" json:"title,omitempty"`
	Type  *string `bun:"type" json:"type,omitempty"`
}

// WorkTranslation links a work to one of its available translations and
// carries the per-translation availability counters.
type WorkTranslation struct {
	bun.BaseModel `bun:"table:catalog.work_translation,alias:wt"`

	WorkID        string `bun:"work_id,pk" json:"workId"`
	TranslationID int    `bun:"translation_id,pk" json:"translationId"`

	EpisodesAvailable *int `bun:"episodes_available" json:"episodesAvailable,omitempty"`
	LastEpisode       *int `bun:"last_episode" json:"lastEpisode,omitempty"`

	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`

	Translation *Translation `bun:"rel:belongs-to,join:translation_id=id" json:"translation,omitempty"`
}

// Episode is one episode of a work in a specific translation. The id is
// the composite "{work_id}:{translation_id}:{number}" string, so the same
// episode ingested twice lands on the same row.
type Episode struct {
	bun.BaseModel `bun:"table:catalog.episode,alias:e"`

	ID            string `bun:"id,pk" json:"id"`
	WorkID        string `bun:"work_id,notnull" json:"workId"`
	TranslationID int    `bun:"translation_id,notnull" json:"translationId"`
	Number        int    `bun:"number,notnull" json:"number"`
	Season        int    `bun:"season,nullzero,notnull,default:1" json:"season"`

	Title        *string `bun:"title" json:"title,omitempty"`
	Duration     *int    `bun:"duration" json:"duration,omitempty"`
	PreviewImage *string `bun:"preview_image" json:"previewImage,omitempty"`

	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`

	Work  *Work         `bun:"rel:belongs-to,join:work_id=id" json:"work,omitempty"`
	Media *EpisodeMedia `bun:"rel:has-one,join:id=episode_id" json:"media,omitempty"`
}

// EpisodeMedia records where a published episode lives in the chat backend.
// One row per episode; re-publishing overwrites it.
type EpisodeMedia struct {
	bun.BaseModel `bun:"table:catalog.episode_media,alias:em"`

	EpisodeID         string  `bun:"episode_id,pk" json:"episodeId"`
	TelegramChatID    string  `bun:"telegram_chat_id,notnull" json:"telegramChatId"`
	TelegramMessageID int64   `bun:"telegram_message_id,notnull" json:"telegramMessageId"`
	FileUniqueID      *string `bun:"file_unique_id" json:"fileUniqueId,omitempty"`
	Quality           *int    `bun:"quality" json:"quality,omitempty"`
	SourceURL         *string `bun:"source_url" json:"sourceUrl,omitempty"`
	Checksum          *string `bun:"checksum" json:"checksum,omitempty"`
	SizeBytes         *int64  `bun:"size_bytes" json:"sizeBytes,omitempty"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}

// MediaInput carries everything MarkMedia needs to record a publication.
type MediaInput struct {
	EpisodeID    string
	ChatID       string
	MessageID    int64
	FileUniqueID *string
	Quality      *int
	SourceURL    *string
	Checksum     *string
	SizeBytes    *int64
}

// EpisodeListItem is an episode plus its publication state, as exposed by
// the read API.
type EpisodeListItem struct {
	Episode   Episode `json:"episode"`
	Published bool    `json:"published"`
}

// WorkStats summarizes the mirror for the ops surface.
type WorkStats struct {
	Works             int `json:"works"`
	Translations      int `json:"translations"`
	Episodes          int `json:"episodes"`
	PublishedEpisodes int `json:"publishedEpisodes"`
}
