package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
)

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[int64]*models.OAuthToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[int64]*models.OAuthToken)}
}

func (f *fakeTokenRepo) GetByUserID(_ context.Context, userID int64) (*models.OAuthToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[userID]
	if !ok {
		return nil, db.WrapError(pgx.ErrNoRows, "get oauth token by user id")
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTokenRepo) Upsert(_ context.Context, token *models.OAuthToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *token
	f.tokens[token.UserID] = &copied
	return nil
}

func (f *fakeTokenRepo) UpdateAccessToken(_ context.Context, userID int64, accessToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[userID]
	if !ok {
		return db.WrapError(pgx.ErrNoRows, "update access token")
	}
	t.AccessToken = accessToken
	t.ExpiresAt = expiresAt
	t.Status = models.TokenStatusActive
	return nil
}

func (f *fakeTokenRepo) MarkExpired(_ context.Context, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[userID]
	if !ok {
		return db.WrapError(pgx.ErrNoRows, "mark oauth token expired")
	}
	t.Status = models.TokenStatusExpired
	return nil
}

func (f *fakeTokenRepo) ListActiveUserIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for id, t := range f.tokens {
		if t.Status == models.TokenStatusActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeTokenRepo) status(userID int64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID].Status
}

func newTestManager(repo *fakeTokenRepo, tokenURL string) *Manager {
	return NewManager(repo, config.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		TokenURL:     tokenURL,
	})
}

func storeToken(repo *fakeTokenRepo, userID int64, accessToken string, expiresAt time.Time, status string) {
	repo.tokens[userID] = &models.OAuthToken{
		ID:           userID,
		UserID:       userID,
		AccessToken:  accessToken,
		RefreshToken: "refresh-token",
		ExpiresAt:    expiresAt,
		Status:       status,
	}
}

func TestValidAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("returns stored token when still fresh", func(t *testing.T) {
		repo := newFakeTokenRepo()
		storeToken(repo, 1, "fresh-token", time.Now().Add(time.Hour), models.TokenStatusActive)

		mgr := newTestManager(repo, "http://unused.invalid")

		got, err := mgr.ValidAccessToken(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", got)
	})

	t.Run("refreshes token inside the expiry margin", func(t *testing.T) {
		var refreshCalls int
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			refreshCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
			assert.Equal(t, "refresh-token", r.Form.Get("refresh_token"))
			assert.Equal(t, "client-id", r.Form.Get("client_id"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"new-token","expires_in":3600,"token_type":"Bearer"}`))
		}))
		defer srv.Close()

		repo := newFakeTokenRepo()
		storeToken(repo, 1, "stale-token", time.Now().Add(time.Minute), models.TokenStatusActive)

		mgr := newTestManager(repo, srv.URL)

		got, err := mgr.ValidAccessToken(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new-token", got)
		assert.Equal(t, 1, refreshCalls)

		stored, err := repo.GetByUserID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new-token", stored.AccessToken)
		assert.True(t, stored.ExpiresAt.After(time.Now().Add(30*time.Minute)))
	})

	t.Run("invalid_grant marks the pair expired and requires reauth", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_grant","error_description":"Token has been revoked."}`))
		}))
		defer srv.Close()

		repo := newFakeTokenRepo()
		storeToken(repo, 1, "stale-token", time.Now().Add(-time.Minute), models.TokenStatusActive)

		mgr := newTestManager(repo, srv.URL)

		_, err := mgr.ValidAccessToken(ctx, 1)
		assert.ErrorIs(t, err, platform.ErrReauthRequired)
		assert.Equal(t, models.TokenStatusExpired, repo.status(1))
	})

	t.Run("expired pair requires reauth without calling the endpoint", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("no refresh call expected")
		}))
		defer srv.Close()

		repo := newFakeTokenRepo()
		storeToken(repo, 1, "old-token", time.Now().Add(time.Hour), models.TokenStatusExpired)

		mgr := newTestManager(repo, srv.URL)

		_, err := mgr.ValidAccessToken(ctx, 1)
		assert.ErrorIs(t, err, platform.ErrReauthRequired)
	})

	t.Run("unknown user requires reauth", func(t *testing.T) {
		repo := newFakeTokenRepo()
		mgr := newTestManager(repo, "http://unused.invalid")

		_, err := mgr.ValidAccessToken(ctx, 42)
		assert.ErrorIs(t, err, platform.ErrReauthRequired)
	})

	t.Run("5xx from token endpoint is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		repo := newFakeTokenRepo()
		storeToken(repo, 1, "stale-token", time.Now().Add(-time.Minute), models.TokenStatusActive)

		mgr := newTestManager(repo, srv.URL)

		_, err := mgr.ValidAccessToken(ctx, 1)
		assert.ErrorIs(t, err, platform.ErrTransient)
		assert.Equal(t, models.TokenStatusActive, repo.status(1))
	})

	t.Run("concurrent callers share a single refresh", func(t *testing.T) {
		var refreshCalls int
		var srvMu sync.Mutex
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			srvMu.Lock()
			refreshCalls++
			srvMu.Unlock()
			time.Sleep(20 * time.Millisecond)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"shared-token","expires_in":3600,"token_type":"Bearer"}`))
		}))
		defer srv.Close()

		repo := newFakeTokenRepo()
		storeToken(repo, 1, "stale-token", time.Now().Add(-time.Minute), models.TokenStatusActive)

		mgr := newTestManager(repo, srv.URL)

		var wg sync.WaitGroup
		results := make([]string, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				got, err := mgr.ValidAccessToken(ctx, 1)
				require.NoError(t, err)
				results[i] = got
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, refreshCalls)
		for _, got := range results {
			assert.Equal(t, "shared-token", got)
		}
	})
}

func TestProvider(t *testing.T) {
	repo := newFakeTokenRepo()
	storeToken(repo, 7, "provider-token", time.Now().Add(time.Hour), models.TokenStatusActive)

	mgr := newTestManager(repo, "http://unused.invalid")
	provider := mgr.Provider(7)

	got, err := provider(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "provider-token", got)
}
