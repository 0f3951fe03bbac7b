package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/models"
	"devpulse/pkg/crypto"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testKey   = "test-encryption-key"
	testToken = "gho_testtoken"
	aliceID   = "2b1c0b57-2f5e-4a4b-9d4e-3f0c2f6d8a11"
)

var syncNow = time.Date(2025, time.June, 2, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	tokens    map[string]string
	stats     map[string]*models.GitHubStats
	usernames map[string]string
}

func newFakeStore(users ...*models.User) *fakeStore {
	s := &fakeStore{
		users:     map[string]*models.User{},
		tokens:    map[string]string{},
		stats:     map[string]*models.GitHubStats{},
		usernames: map[string]string{},
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeStore) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperror.NotFound("User not found")
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperror.NotFound("User not found")
}

func (s *fakeStore) SetGitHubAccount(_ context.Context, id, enc, username, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enc != "" {
		s.tokens[id] = enc
	}
	s.usernames[id] = username
	return nil
}

func (s *fakeStore) GetGitHubToken(_ context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[id], nil
}

func (s *fakeStore) ClearGitHubAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, id)
	delete(s.usernames, id)
	delete(s.stats, id)
	return nil
}

func (s *fakeStore) UpsertGitHubStats(_ context.Context, st models.GitHubStats) (*models.GitHubStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[st.UserID] = &st
	return &st, nil
}

func (s *fakeStore) GetGitHubStats(_ context.Context, userID string) (*models.GitHubStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.stats[userID]; ok {
		return st, nil
	}
	return nil, apperror.NotFound("GitHub stats not found")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

const eventsJSON = `[
  {"type":"PushEvent","created_at":"2025-06-01T10:00:00Z","payload":{"commits":[{"sha":"a"},{"sha":"b"},{"sha":"c"}]}},
  {"type":"PushEvent","created_at":"2025-06-01T11:00:00Z","payload":{"commits":[{"sha":"d"},{"sha":"e"},{"sha":"f"},{"sha":"g"}]}},
  {"type":"PullRequestEvent","created_at":"2025-05-30T09:00:00Z","payload":{}},
  {"type":"IssuesEvent","created_at":"2025-05-30T09:30:00Z","payload":{}},
  {"type":"IssuesEvent","created_at":"2023-01-01T00:00:00Z","payload":{}},
  {"type":"WatchEvent","created_at":"2025-06-01T12:00:00Z","payload":{}}
]`

// fakeGitHub serves the few endpoints the service calls.
func fakeGitHub(t *testing.T, emails string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			writeJSON(w, map[string]string{"message": "Bad credentials"})
			return
		}
		writeJSON(w, map[string]any{"login": "octo", "avatar_url": "https://avatars.example/octo", "name": "Octo Cat"})
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		writeJSON(w, []map[string]any{
			{"name": "a", "stargazers_count": 1, "language": "Go"},
			{"name": "b", "stargazers_count": 9, "language": "Go"},
			{"name": "c", "stargazers_count": 5, "language": "TypeScript"},
		})
	})
	mux.HandleFunc("/users/octo/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(eventsJSON))
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(emails))
	})
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			writeJSON(w, map[string]string{"error": "bad_verification_code"})
			return
		}
		writeJSON(w, map[string]string{"access_token": testToken, "token_type": "bearer"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestService(t *testing.T, store Store, srv *httptest.Server, fallback bool) *Service {
	t.Helper()
	svc := NewService(store, nil, Config{
		ClientID:      "client",
		ClientSecret:  "secret",
		EncryptionKey: testKey,
		EmailFallback: fallback,
		APIBaseURL:    srv.URL,
		TokenURL:      srv.URL + "/login/oauth/access_token",
		AuthURL:       srv.URL + "/login/oauth/authorize",
		RetryInitial:  time.Millisecond,
	})
	svc.now = func() time.Time { return syncNow }
	return svc
}

func connectedStore(t *testing.T) *fakeStore {
	t.Helper()
	store := newFakeStore(&models.User{ID: aliceID, Email: "alice@example.com"})
	enc, err := crypto.Encrypt(testToken, testKey)
	require.NoError(t, err)
	store.tokens[aliceID] = enc
	return store
}

func TestSyncDerivesStatsFromEvents(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	store := connectedStore(t)
	svc := newTestService(t, store, srv, false)

	stats, err := svc.Sync(context.Background(), aliceID)
	require.NoError(t, err)

	assert.Equal(t, 7, stats.TotalCommits)
	assert.Equal(t, 1, stats.TotalPRs)
	assert.Equal(t, 2, stats.TotalIssues)
	assert.Equal(t, 3, stats.TotalRepos)
	assert.Equal(t, "octo", store.usernames[aliceID])

	require.Len(t, stats.ContributionData, ContributionDays)
	last := stats.ContributionData[ContributionDays-1]
	assert.Equal(t, "2025-06-02", last.Date)
	assert.Equal(t, 0, last.Count)
	assert.Equal(t, models.ContributionDay{Date: "2025-06-01", Count: 7}, stats.ContributionData[ContributionDays-2])
	assert.Equal(t, models.ContributionDay{Date: "2025-05-30", Count: 2}, stats.ContributionData[ContributionDays-4])
}

func TestSyncRequiresConnectedAccount(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	svc := newTestService(t, newFakeStore(&models.User{ID: aliceID}), srv, false)

	_, err := svc.Sync(context.Background(), aliceID)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestConnectRejectsInvalidToken(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	store := newFakeStore(&models.User{ID: aliceID})
	svc := newTestService(t, store, srv, false)

	_, err := svc.Connect(context.Background(), aliceID, "wrong")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	assert.Empty(t, store.tokens[aliceID])
}

func TestConnectStoresEncryptedToken(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	store := newFakeStore(&models.User{ID: aliceID})
	svc := newTestService(t, store, srv, false)

	acct, err := svc.Connect(context.Background(), aliceID, testToken)
	require.NoError(t, err)
	assert.Equal(t, "octo", acct.Username)

	enc := store.tokens[aliceID]
	assert.NotEqual(t, testToken, enc)
	plain, err := crypto.Decrypt(enc, testKey)
	require.NoError(t, err)
	assert.Equal(t, testToken, plain)
}

func TestDisconnectClearsStats(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	store := connectedStore(t)
	svc := newTestService(t, store, srv, false)
	_, err := svc.Sync(context.Background(), aliceID)
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(context.Background(), aliceID))
	stats, err := svc.Stats(context.Background(), aliceID)
	require.NoError(t, err)
	assert.Nil(t, stats)
	assert.Empty(t, store.tokens[aliceID])
}

func TestRetryOn429HonorsRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]any{"login": "octo"})
	}))
	defer srv.Close()
	svc := newTestService(t, newFakeStore(&models.User{ID: aliceID}), srv, false)

	acct, err := svc.Connect(context.Background(), aliceID, testToken)
	require.NoError(t, err)
	assert.Equal(t, "octo", acct.Username)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	svc := newTestService(t, newFakeStore(&models.User{ID: aliceID}), srv, false)

	_, err := svc.Connect(context.Background(), aliceID, testToken)
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, int32(defaultMaxRetries+1), atomic.LoadInt32(&calls))
}

func TestCompleteOAuthResolvesUserByState(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	store := newFakeStore(&models.User{ID: aliceID, Email: "alice@example.com"})
	svc := newTestService(t, store, srv, false)

	userID, err := svc.CompleteOAuth(context.Background(), "good-code", aliceID)
	require.NoError(t, err)
	assert.Equal(t, aliceID, userID)
	assert.NotEmpty(t, store.tokens[aliceID])
}

func TestCompleteOAuthEmailFallback(t *testing.T) {
	cases := []struct {
		name     string
		emails   string
		fallback bool
		reason   string
	}{
		{"verified primary", `[{"email":"alice@example.com","primary":true,"verified":true}]`, true, ""},
		{"unverified primary", `[{"email":"alice@example.com","primary":true,"verified":false}]`, true, ReasonUserNotFound},
		{"verified secondary", `[{"email":"alice@example.com","primary":false,"verified":true}]`, true, ReasonUserNotFound},
		{"fallback disabled", `[{"email":"alice@example.com","primary":true,"verified":true}]`, false, ReasonUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakeGitHub(t, tc.emails)
			store := newFakeStore(&models.User{ID: aliceID, Email: "alice@example.com"})
			svc := newTestService(t, store, srv, tc.fallback)

			userID, err := svc.CompleteOAuth(context.Background(), "good-code", "")
			if tc.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, aliceID, userID)
				return
			}
			var cbErr *CallbackError
			require.True(t, errors.As(err, &cbErr))
			assert.Equal(t, tc.reason, cbErr.Reason)
			assert.Empty(t, store.tokens[aliceID])
		})
	}
}

func TestCompleteOAuthFailureReasons(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	svc := newTestService(t, newFakeStore(), srv, false)

	reason := func(err error) string {
		var cbErr *CallbackError
		require.True(t, errors.As(err, &cbErr))
		return cbErr.Reason
	}

	_, err := svc.CompleteOAuth(context.Background(), "", aliceID)
	assert.Equal(t, ReasonNoCode, reason(err))

	_, err = svc.CompleteOAuth(context.Background(), "bad-code", aliceID)
	assert.Equal(t, ReasonOAuthFailed, reason(err))

	unconfigured := NewService(newFakeStore(), nil, Config{})
	_, err = unconfigured.CompleteOAuth(context.Background(), "good-code", aliceID)
	assert.Equal(t, ReasonConfig, reason(err))
}

func TestAuthorizeURLCarriesState(t *testing.T) {
	srv := fakeGitHub(t, `[]`)
	svc := newTestService(t, newFakeStore(), srv, false)

	u, err := svc.AuthorizeURL(aliceID)
	require.NoError(t, err)
	assert.Contains(t, u, "state="+aliceID)
	assert.Contains(t, u, "client_id=client")

	_, err = NewService(newFakeStore(), nil, Config{}).AuthorizeURL(aliceID)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestSummarizeIgnoresEventsOutsideWindow(t *testing.T) {
	var events []*gh.Event
	require.NoError(t, json.Unmarshal([]byte(eventsJSON), &events))

	a := Summarize(events, syncNow)
	assert.Equal(t, 7, a.Commits)
	assert.Equal(t, 2, a.Issues)
	assert.Equal(t, "2024-06-03", a.Contributions[0].Date)

	total := 0
	for _, d := range a.Contributions {
		total += d.Count
	}
	assert.Equal(t, 9, total)
}

func TestSummarizeCountsOnlyListedCommits(t *testing.T) {
	var events []*gh.Event
	require.NoError(t, json.Unmarshal([]byte(`[
  {"type":"PushEvent","created_at":"2025-06-01T10:00:00Z","payload":{"size":3,"commits":[]}},
  {"type":"PushEvent","created_at":"2025-06-01T11:00:00Z","payload":{"size":5}},
  {"type":"PushEvent","created_at":"2025-06-01T12:00:00Z","payload":{"size":9,"commits":[{"sha":"a"}]}}
]`), &events))

	a := Summarize(events, syncNow)
	assert.Equal(t, 1, a.Commits)
}

func TestBuildProfileTopReposAndLanguages(t *testing.T) {
	var repos []*gh.Repository
	langs := []string{"Go", "Go", "Go", "Rust", "Rust", "TypeScript", "", "C", "Zig", "Elm", "Lua", "Nim"}
	for i, lang := range langs {
		repos = append(repos, &gh.Repository{
			Name:            gh.String(string(rune('a' + i))),
			StargazersCount: gh.Int(i),
			Language:        gh.String(lang),
		})
	}
	p := BuildProfile(&gh.User{Login: gh.String("octo")}, repos)

	require.Len(t, p.Repos, 6)
	assert.Equal(t, 11, p.Repos[0].Stars)
	assert.Equal(t, 6, p.Repos[5].Stars)

	require.Len(t, p.Languages, 8)
	assert.Equal(t, LanguageCount{Name: "Go", Count: 3}, p.Languages[0])
	assert.Equal(t, LanguageCount{Name: "Rust", Count: 2}, p.Languages[1])
	assert.Equal(t, "C", p.Languages[2].Name)
}
