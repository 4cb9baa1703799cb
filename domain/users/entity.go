package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/anivault/anivault/domain/works"
)

// User is a chat user mirrored into core.users the first time they talk
// to the bot. telegram_id is the external identity; the uuid is ours.
type User struct {
	bun.BaseModel `bun:"table:core.users,alias:u"`

	ID         uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	TelegramID int64     `bun:"telegram_id,notnull" json:"telegramId"`
	Username   *string   `bun:"username" json:"username,omitempty"`
	FirstName  *string   `bun:"first_name" json:"firstName,omitempty"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	LastSeenAt time.Time `bun:"last_seen_at,nullzero,notnull,default:now()" json:"lastSeenAt"`
}

// Favorite pins a work to a user's list.
type Favorite struct {
	bun.BaseModel `bun:"table:core.favorites,alias:f"`

	UserID    uuid.UUID `bun:"user_id,pk,type:uuid" json:"userId"`
	WorkID    string    `bun:"work_id,pk" json:"workId"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
}

// Rating is a user's 1..10 score for a work.
type Rating struct {
	bun.BaseModel `bun:"table:core.ratings,alias:rt"`

	UserID    uuid.UUID `bun:"user_id,pk,type:uuid" json:"userId"`
	WorkID    string    `bun:"work_id,pk" json:"workId"`
	Score     int       `bun:"score,notnull" json:"score"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updatedAt"`
}

// WatchEntry records that a user watched an episode. Re-watching bumps
// watched_at instead of adding a row.
type WatchEntry struct {
	bun.BaseModel `bun:"table:core.watch_history,alias:wh"`

	ID        uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"userId"`
	EpisodeID string    `bun:"episode_id,notnull" json:"episodeId"`
	WatchedAt time.Time `bun:"watched_at,nullzero,notnull,default:now()" json:"watchedAt"`

	Episode *works.Episode `bun:"rel:belongs-to,join:episode_id=id" json:"episode,omitempty"`
}

// RatingSummary pairs the caller's own score with the work's average.
type RatingSummary struct {
	Score   *int     `json:"score,omitempty"`
	Average *float64 `json:"average,omitempty"`
}

// WorkStatus is everything the bot shows about one work for one user:
// the favorite flag, scores and how many episodes they have watched.
type WorkStatus struct {
	Favorite bool     `json:"favorite"`
	Score    *int     `json:"score,omitempty"`
	Average  *float64 `json:"average,omitempty"`
	Watched  int      `json:"watched"`
}
