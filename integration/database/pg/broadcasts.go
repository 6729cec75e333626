package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pnptv/broadcastq/core/broadcast"
	"github.com/pnptv/broadcastq/core/queue"
)

// ErrBroadcastNotFound is returned when a broadcast id has no stored campaign.
var ErrBroadcastNotFound = errors.New("broadcast not found")

// BroadcastRepository implements broadcast.Repository on PostgreSQL. Campaign
// content lives in the broadcasts table with language-keyed texts; the
// audience comes from the recipients table, optionally filtered by segment.
type BroadcastRepository struct {
	pool *pgxpool.Pool
}

// NewBroadcastRepository creates a Postgres-backed campaign repository.
func NewBroadcastRepository(pool *pgxpool.Pool) (*BroadcastRepository, error) {
	if pool == nil {
		return nil, queue.ErrRepositoryNil
	}
	return &BroadcastRepository{pool: pool}, nil
}

// ResolveAudience returns the active recipients of a broadcast. An empty
// segment means the full audience.
func (r *BroadcastRepository) ResolveAudience(ctx context.Context, broadcastID, segment string) ([]broadcast.Recipient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, language, COALESCE(username, '')
		FROM recipients
		WHERE active AND ($1 = '' OR segment = $1)
		ORDER BY id`,
		segment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve audience: %w", err)
	}
	defer rows.Close()

	var audience []broadcast.Recipient
	for rows.Next() {
		var rec broadcast.Recipient
		if err := rows.Scan(&rec.ID, &rec.Language, &rec.Username); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		audience = append(audience, rec)
	}

	return audience, rows.Err()
}

// Content returns the campaign content for a broadcast.
func (r *BroadcastRepository) Content(ctx context.Context, broadcastID string) (broadcast.Content, error) {
	var content broadcast.Content
	var photoURL *string

	err := r.pool.QueryRow(ctx, `
		SELECT texts, default_language, photo_url, buttons
		FROM broadcasts WHERE id = $1`,
		broadcastID,
	).Scan(&content.TextByLang, &content.DefaultLanguage, &photoURL, &content.Buttons)
	if errors.Is(err, pgx.ErrNoRows) {
		return broadcast.Content{}, fmt.Errorf("%w: %s", ErrBroadcastNotFound, broadcastID)
	}
	if err != nil {
		return broadcast.Content{}, fmt.Errorf("failed to load broadcast content: %w", err)
	}

	if photoURL != nil {
		content.PhotoURL = *photoURL
	}

	return content, nil
}

// CreateBroadcast stores a new campaign and returns nothing; the id comes
// from the caller so the enqueue payload and the row always agree.
func (r *BroadcastRepository) CreateBroadcast(ctx context.Context, broadcastID string, content broadcast.Content) error {
	if len(content.TextByLang) == 0 {
		return broadcast.ErrNoContent
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO broadcasts (id, texts, default_language, photo_url, buttons)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		broadcastID, content.TextByLang, content.DefaultLanguage, content.PhotoURL, content.Buttons,
	)
	if err != nil {
		return fmt.Errorf("failed to create broadcast: %w", err)
	}

	return nil
}
