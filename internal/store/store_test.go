package store_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hit/internal/model"
	"hit/internal/store"
)

func engines(t *testing.T) map[string]func(t *testing.T) store.Store {
	t.Helper()
	result := map[string]func(t *testing.T) store.Store{
		store.EngineJSON: func(t *testing.T) store.Store {
			st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "hit.json"))
			require.NoError(t, err)
			return st
		},
		store.EngineSQLite: func(t *testing.T) store.Store {
			st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "hit.db"))
			require.NoError(t, err)
			return st
		},
		store.EngineBolt: func(t *testing.T) store.Store {
			st, err := store.NewTempBoltStore()
			require.NoError(t, err)
			return st
		},
	}
	if dsn := os.Getenv("HIT_TEST_POSTGRES_DSN"); dsn != "" {
		result[store.EnginePostgres] = func(t *testing.T) store.Store {
			st, err := store.NewPostgresStore(dsn)
			require.NoError(t, err)
			return st
		}
	}
	return result
}

func closeStore(t *testing.T, st store.Store) {
	t.Cleanup(func() {
		if closer, ok := st.(io.Closer); ok {
			_ = closer.Close()
		}
	})
}

func sampleStats(now time.Time) model.UserStats {
	wpm := 18.0
	return model.UserStats{
		Streak:        2,
		TotalSessions: 1,
		AverageScore:  81,
		History: []model.PracticeSession{{
			ID:       "1704067200000-abc",
			Date:     now,
			PhotoURL: "data:image/jpeg;base64,AAAA",
			Analysis: model.AnalysisResult{
				OverallScore:       81,
				StyleDetected:      model.StyleCursive,
				Metrics:            []model.FeedbackMetric{{Label: "Clarity", Score: 80, Feedback: "Close your a's."}},
				SuggestedExercises: []string{"Loops"},
				Transcription:      "hello",
				WPM:                &wpm,
			},
			IsSpeedMode: true,
		}},
	}
}

func TestStatsRoundTrip(t *testing.T) {
	for name, open := range engines(t) {
		open := open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := open(t)
			closeStore(t, st)

			_, ok, err := st.Load("user:nobody")
			require.NoError(t, err)
			assert.False(t, ok)

			now := time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
			want := sampleStats(now)
			require.NoError(t, st.Save("user:a", want))

			got, ok, err := st.Load("user:a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, want.Streak, got.Streak)
			assert.Equal(t, want.AverageScore, got.AverageScore)
			require.Len(t, got.History, 1)
			assert.True(t, got.History[0].Date.Equal(now))
			assert.Equal(t, want.History[0].Analysis.Metrics, got.History[0].Analysis.Metrics)
			require.NotNil(t, got.History[0].Analysis.WPM)
			assert.Equal(t, 18.0, *got.History[0].Analysis.WPM)

			// Overwrite replaces the whole snapshot.
			require.NoError(t, st.Save("user:a", model.UserStats{Streak: 1}))
			got, ok, err = st.Load("user:a")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Empty(t, got.History)
			assert.Equal(t, 0, got.TotalSessions)

			require.NoError(t, st.Delete("user:a"))
			_, ok, err = st.Load("user:a")
			require.NoError(t, err)
			assert.False(t, ok)
			require.NoError(t, st.Delete("user:a"))
		})
	}
}

func TestAccounts(t *testing.T) {
	for name, open := range engines(t) {
		name, open := name, open
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			st := open(t)
			closeStore(t, st)

			account := model.Account{
				UID:          "user_" + name,
				Email:        "  Scribe@Example.com ",
				DisplayName:  "Scribe",
				PasswordHash: "hash",
				CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			}
			require.NoError(t, st.CreateAccount(account))

			got, ok, err := st.GetAccountByEmail("SCRIBE@example.com")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "scribe@example.com", got.Email)
			assert.Equal(t, "hash", got.PasswordHash)

			got, ok, err = st.GetAccount(account.UID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "Scribe", got.DisplayName)

			dup := account
			dup.UID = "user_other"
			assert.ErrorIs(t, st.CreateAccount(dup), store.ErrAlreadyExists)

			_, ok, err = st.GetAccountByEmail("missing@example.com")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestJSONStoreReloadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hit.json")
	st, err := store.NewJSONStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Save(store.GuestKey, sampleStats(time.Now().UTC())))

	reopened, err := store.NewJSONStore(path)
	require.NoError(t, err)
	got, ok, err := reopened.Load(store.GuestKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got.History, 1)
}

func TestLoadRepairsTotalSessions(t *testing.T) {
	st, err := store.NewJSONStore(filepath.Join(t.TempDir(), "hit.json"))
	require.NoError(t, err)
	stats := sampleStats(time.Now().UTC())
	stats.TotalSessions = 7
	require.NoError(t, st.Save("user:a", stats))

	got, _, err := st.Load("user:a")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalSessions)
}

func TestNewByEngine(t *testing.T) {
	dir := t.TempDir()
	for _, engine := range []string{store.EngineJSON, store.EngineSQLite, store.EngineBolt} {
		st, err := store.NewByEngine(engine, filepath.Join(dir, "hit."+engine))
		require.NoError(t, err, engine)
		closeStore(t, st)
	}
	_, err := store.NewByEngine("mongo", "x")
	assert.Error(t, err)
}

func TestUserKey(t *testing.T) {
	assert.Equal(t, store.GuestKey, store.UserKey(""))
	assert.Equal(t, store.GuestKey, store.UserKey("guest"))
	assert.Equal(t, "user:user_1", store.UserKey(" user_1 "))
}
