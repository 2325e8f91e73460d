// Package token manages user OAuth access tokens, refreshing them ahead
// of expiry via the platform's token endpoint.
package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// expiryMargin is how long before expiry a token stops being handed out
// and gets refreshed instead.
const expiryMargin = 5 * time.Minute

// Manager hands out valid access tokens, refreshing through the stored
// refresh token when needed. Concurrent requests for the same user share
// one refresh.
type Manager struct {
	repo       repository.OAuthTokenRepository
	httpClient *http.Client

	clientID     string
	clientSecret string
	tokenURL     string

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// NewManager creates a token manager over the stored token pairs.
func NewManager(repo repository.OAuthTokenRepository, cfg config.OAuthConfig) *Manager {
	return &Manager{
		repo:         repo,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     cfg.TokenURL,
		locks:        make(map[int64]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (m *Manager) userLock(userID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// ValidAccessToken returns an access token good for at least the expiry
// margin, refreshing it first when necessary. A missing or expired token
// pair yields ErrReauthRequired.
func (m *Manager) ValidAccessToken(ctx context.Context, userID int64) (string, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := m.repo.GetByUserID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return "", fmt.Errorf("%w: no token pair for user %d", platform.ErrReauthRequired, userID)
		}
		return "", fmt.Errorf("load token pair: %w", err)
	}

	if stored.Status != models.TokenStatusActive {
		return "", fmt.Errorf("%w: token pair for user %d is %s", platform.ErrReauthRequired, userID, stored.Status)
	}

	if stored.UsableUntil(expiryMargin) {
		return stored.AccessToken, nil
	}

	logger.Log.Info("refreshing access token",
		zap.Int64("user_id", userID),
		zap.Time("expires_at", stored.ExpiresAt),
	)

	accessToken, expiresIn, err := m.refresh(ctx, stored.RefreshToken)
	if err != nil {
		if platform.IsReauthRequired(err) {
			if markErr := m.repo.MarkExpired(ctx, userID); markErr != nil {
				logger.Log.Error("failed to mark token pair expired",
					zap.Int64("user_id", userID),
					zap.Error(markErr),
				)
			}
		}
		return "", err
	}

	expiresAt := time.Now().Add(expiresIn)
	if err := m.repo.UpdateAccessToken(ctx, userID, accessToken, expiresAt); err != nil {
		return "", fmt.Errorf("store refreshed token: %w", err)
	}

	return accessToken, nil
}

// Provider adapts the manager to the platform client's lazy fallback hook.
func (m *Manager) Provider(userID int64) platform.TokenProvider {
	return func(ctx context.Context) (string, error) {
		return m.ValidAccessToken(ctx, userID)
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// refresh exchanges the refresh token for a new access token.
func (m *Manager) refresh(ctx context.Context, refreshToken string) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", platform.ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var oauthErr tokenError
		if err := json.Unmarshal(body, &oauthErr); err == nil && oauthErr.Error == "invalid_grant" {
			return "", 0, fmt.Errorf("%w: refresh grant revoked: %s", platform.ErrReauthRequired, oauthErr.Description)
		}
		if resp.StatusCode >= 500 {
			return "", 0, fmt.Errorf("%w: token endpoint returned %d", platform.ErrTransient, resp.StatusCode)
		}
		return "", 0, fmt.Errorf("token refresh failed with status %d: %s", resp.StatusCode, string(body))
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", 0, fmt.Errorf("decode refresh response: %w", err)
	}

	if token.AccessToken == "" {
		return "", 0, fmt.Errorf("token endpoint returned empty access token")
	}

	return token.AccessToken, time.Duration(token.ExpiresIn) * time.Second, nil
}
