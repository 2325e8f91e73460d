package models

import "time"

// OAuth token status constants
const (
	TokenStatusActive  = "ACTIVE"
	TokenStatusExpired = "EXPIRED"
)

// OAuthToken holds a user's platform access/refresh token pair. A token
// marked EXPIRED requires the user to re-consent; it is never refreshed
// automatically again.
type OAuthToken struct {
	ID           int64     `db:"id" json:"id"`
	UserID       int64     `db:"user_id" json:"user_id"`
	AccessToken  string    `db:"access_token" json:"-"`
	RefreshToken string    `db:"refresh_token" json:"-"`
	ExpiresAt    time.Time `db:"expires_at" json:"expires_at"`
	Status       string    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UsableUntil reports whether the access token is still good with the
// given safety margin before expiry.
func (t *OAuthToken) UsableUntil(margin time.Duration) bool {
	return t.Status == TokenStatusActive && time.Now().Add(margin).Before(t.ExpiresAt)
}

// Rotate stores a freshly issued access token.
func (t *OAuthToken) Rotate(accessToken string, expiresIn time.Duration) {
	now := time.Now()
	t.AccessToken = accessToken
	t.ExpiresAt = now.Add(expiresIn)
	t.Status = TokenStatusActive
	t.UpdatedAt = now
}

// MarkExpired marks the token pair as requiring user re-consent.
func (t *OAuthToken) MarkExpired() {
	t.Status = TokenStatusExpired
	t.UpdatedAt = time.Now()
}
