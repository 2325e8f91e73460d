package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func quotaAPIError(reason string) error {
	return &googleapi.Error{
		Code:    403,
		Message: "quota",
		Errors:  []googleapi.ErrorItem{{Reason: reason}},
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil stays nil",
			err:  nil,
			want: nil,
		},
		{
			name: "429 is quota",
			err:  &googleapi.Error{Code: 429, Message: "too many requests"},
			want: ErrQuotaExceeded,
		},
		{
			name: "403 quotaExceeded is quota",
			err:  quotaAPIError("quotaExceeded"),
			want: ErrQuotaExceeded,
		},
		{
			name: "403 dailyLimitExceeded is quota",
			err:  quotaAPIError("dailyLimitExceeded"),
			want: ErrQuotaExceeded,
		},
		{
			name: "403 userRateLimitExceeded is quota",
			err:  quotaAPIError("userRateLimitExceeded"),
			want: ErrQuotaExceeded,
		},
		{
			name: "403 commentsDisabled",
			err:  quotaAPIError("commentsDisabled"),
			want: ErrCommentsDisabled,
		},
		{
			name: "401 requires reauth",
			err:  &googleapi.Error{Code: 401, Message: "invalid credentials"},
			want: ErrReauthRequired,
		},
		{
			name: "404 is not found",
			err:  &googleapi.Error{Code: 404, Message: "comment not found"},
			want: ErrNotFound,
		},
		{
			name: "500 is transient",
			err:  &googleapi.Error{Code: 500, Message: "backend error"},
			want: ErrTransient,
		},
		{
			name: "503 is transient",
			err:  &googleapi.Error{Code: 503, Message: "unavailable"},
			want: ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	t.Run("403 forbidden without quota reason passes through", func(t *testing.T) {
		raw := quotaAPIError("forbidden")
		got := ClassifyError(raw)
		assert.False(t, IsQuotaError(got))
		var apiErr *googleapi.Error
		assert.ErrorAs(t, got, &apiErr)
	})

	t.Run("non-api error passes through", func(t *testing.T) {
		raw := errors.New("connection refused")
		assert.Equal(t, raw, ClassifyError(raw))
	})
}

func TestWithRotation(t *testing.T) {
	t.Run("tries each credential exactly once when all are exhausted", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b", "c"})

		var attempts []string
		err := withRotation(pool, func(apiKey string) error {
			attempts = append(attempts, apiKey)
			return fmt.Errorf("%w: quotaExceeded", ErrQuotaExceeded)
		}, nil)

		require.ErrorIs(t, err, ErrNoAvailableCredential)
		assert.Len(t, attempts, 3)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, attempts)
	})

	t.Run("quota on first key succeeds on second", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b"})

		var attempts []string
		err := withRotation(pool, func(apiKey string) error {
			attempts = append(attempts, apiKey)
			if apiKey == "a" {
				return fmt.Errorf("%w: quotaExceeded", ErrQuotaExceeded)
			}
			return nil
		}, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, attempts)
	})

	t.Run("cursor advances past an exhausted key on the next call", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b"})

		// First call: key a is quota-exhausted, key b succeeds.
		var first []string
		err := withRotation(pool, func(apiKey string) error {
			first = append(first, apiKey)
			if apiKey == "a" {
				return fmt.Errorf("%w: quotaExceeded", ErrQuotaExceeded)
			}
			return nil
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, first)

		// Second call starts at b, not back at a.
		var second []string
		err = withRotation(pool, func(apiKey string) error {
			second = append(second, apiKey)
			return nil
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, second)
	})

	t.Run("non-quota error propagates without rotating", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b", "c"})
		boom := errors.New("bad request")

		var attempts int
		err := withRotation(pool, func(apiKey string) error {
			attempts++
			return boom
		}, nil)

		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, attempts)
	})

	t.Run("not found propagates without rotating", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b"})

		var attempts int
		err := withRotation(pool, func(apiKey string) error {
			attempts++
			return fmt.Errorf("%w: gone", ErrNotFound)
		}, nil)

		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 1, attempts)
	})

	t.Run("fallback runs only after the whole pool is exhausted", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b"})

		var attempts, fallbacks int
		err := withRotation(pool, func(apiKey string) error {
			attempts++
			return fmt.Errorf("%w: quotaExceeded", ErrQuotaExceeded)
		}, func() error {
			fallbacks++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, attempts)
		assert.Equal(t, 1, fallbacks)
	})

	t.Run("fallback not invoked when a key succeeds", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a"})

		var fallbacks int
		err := withRotation(pool, func(apiKey string) error {
			return nil
		}, func() error {
			fallbacks++
			return nil
		})

		require.NoError(t, err)
		assert.Zero(t, fallbacks)
	})

	t.Run("fallback error propagates", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a"})
		boom := errors.New("token refresh failed")

		err := withRotation(pool, func(apiKey string) error {
			return fmt.Errorf("%w: quotaExceeded", ErrQuotaExceeded)
		}, func() error {
			return boom
		})

		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty pool without fallback fails immediately", func(t *testing.T) {
		pool := NewCredentialPool(nil)

		var attempts int
		err := withRotation(pool, func(apiKey string) error {
			attempts++
			return nil
		}, nil)

		assert.ErrorIs(t, err, ErrNoAvailableCredential)
		assert.Zero(t, attempts)
	})

	t.Run("empty pool with fallback goes straight to fallback", func(t *testing.T) {
		pool := NewCredentialPool(nil)

		var fallbacks int
		err := withRotation(pool, func(apiKey string) error {
			t.Fatal("no key attempt expected")
			return nil
		}, func() error {
			fallbacks++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, fallbacks)
	})
}

func TestNewCredentialPool(t *testing.T) {
	t.Run("drops empty keys", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "", "b", ""})
		assert.Equal(t, 2, pool.Size())
	})

	t.Run("rotation spreads across keys round robin", func(t *testing.T) {
		pool := NewCredentialPool([]string{"a", "b", "c"})

		var order []string
		for i := 0; i < 6; i++ {
			order = append(order, pool.Key(pool.Start()))
		}

		assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
	})
}

func TestBatchIDs(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		batchSize int
		wantLens  []int
	}{
		{name: "empty", count: 0, batchSize: 50, wantLens: nil},
		{name: "single partial batch", count: 7, batchSize: 50, wantLens: []int{7}},
		{name: "exact multiple", count: 100, batchSize: 50, wantLens: []int{50, 50}},
		{name: "remainder batch", count: 120, batchSize: 50, wantLens: []int{50, 50, 20}},
		{name: "oversized batch size clamped", count: 60, batchSize: 500, wantLens: []int{50, 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.count)
			for i := range ids {
				ids[i] = fmt.Sprintf("video-%d", i)
			}

			batches := BatchIDs(ids, tt.batchSize)
			require.Len(t, batches, len(tt.wantLens))
			for i, want := range tt.wantLens {
				assert.Len(t, batches[i], want)
			}
		})
	}
}

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "strips timed text markup",
			raw:  `<transcript><text start="0.5" dur="2.1">hello world</text><text start="2.6">second line</text></transcript>`,
			want: "hello worldsecond line",
		},
		{
			name: "decodes entities",
			raw:  "<text>he said &quot;hi&quot; &amp; left &#39;early&#39;</text>",
			want: `he said "hi" & left 'early'`,
		},
		{
			name: "plain text untouched",
			raw:  "already plain",
			want: "already plain",
		},
		{
			name: "trims whitespace",
			raw:  "  padded  ",
			want: "padded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanTranscript(tt.raw))
		})
	}
}
