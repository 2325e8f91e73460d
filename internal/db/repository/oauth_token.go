package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OAuthTokenRepository defines operations for stored user token pairs.
type OAuthTokenRepository interface {
	// GetByUserID retrieves a user's token pair.
	GetByUserID(ctx context.Context, userID int64) (*models.OAuthToken, error)

	// Upsert creates or replaces a user's token pair.
	Upsert(ctx context.Context, token *models.OAuthToken) error

	// UpdateAccessToken stores a refreshed access token and its expiry.
	UpdateAccessToken(ctx context.Context, userID int64, accessToken string, expiresAt time.Time) error

	// MarkExpired flags the token pair as needing user re-consent.
	MarkExpired(ctx context.Context, userID int64) error

	// ListActiveUserIDs returns the ids of users with an ACTIVE token pair.
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
}

type oauthTokenRepository struct {
	pool *pgxpool.Pool
}

// NewOAuthTokenRepository creates a new OAuthTokenRepository.
func NewOAuthTokenRepository(pool *pgxpool.Pool) OAuthTokenRepository {
	return &oauthTokenRepository{pool: pool}
}

func (r *oauthTokenRepository) GetByUserID(ctx context.Context, userID int64) (*models.OAuthToken, error) {
	query := `
		SELECT id, user_id, access_token, refresh_token, expires_at, status, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1
	`

	token := &models.OAuthToken{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&token.ID,
		&token.UserID,
		&token.AccessToken,
		&token.RefreshToken,
		&token.ExpiresAt,
		&token.Status,
		&token.CreatedAt,
		&token.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get oauth token by user id")
	}

	return token, nil
}

func (r *oauthTokenRepository) Upsert(ctx context.Context, token *models.OAuthToken) error {
	query := `
		INSERT INTO oauth_tokens (user_id, access_token, refresh_token, expires_at, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    refresh_token = EXCLUDED.refresh_token,
		    expires_at = EXCLUDED.expires_at,
		    status = EXCLUDED.status,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		token.UserID,
		token.AccessToken,
		token.RefreshToken,
		token.ExpiresAt,
		token.Status,
		token.CreatedAt,
		token.UpdatedAt,
	).Scan(
		&token.ID,
		&token.CreatedAt,
		&token.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "upsert oauth token")
	}

	return nil
}

func (r *oauthTokenRepository) UpdateAccessToken(ctx context.Context, userID int64, accessToken string, expiresAt time.Time) error {
	query := `
		UPDATE oauth_tokens
		SET access_token = $1,
		    expires_at = $2,
		    status = $3,
		    updated_at = now()
		WHERE user_id = $4
	`

	result, err := r.pool.Exec(ctx, query, accessToken, expiresAt, models.TokenStatusActive, userID)
	if err != nil {
		return db.WrapError(err, "update access token")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "update access token")
	}

	return nil
}

func (r *oauthTokenRepository) MarkExpired(ctx context.Context, userID int64) error {
	query := `UPDATE oauth_tokens SET status = $1, updated_at = now() WHERE user_id = $2`

	result, err := r.pool.Exec(ctx, query, models.TokenStatusExpired, userID)
	if err != nil {
		return db.WrapError(err, "mark oauth token expired")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "mark oauth token expired")
	}

	return nil
}

func (r *oauthTokenRepository) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT user_id FROM oauth_tokens WHERE status = $1 ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query, models.TokenStatusActive)
	if err != nil {
		return nil, db.WrapError(err, "list active token user ids")
	}
	defer rows.Close()

	var userIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		userIDs = append(userIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}

	return userIDs, nil
}
