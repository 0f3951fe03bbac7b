// Package github connects users to their GitHub account and derives activity stats from it.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"devpulse/internal/apperror"
	"devpulse/internal/cache"
	"devpulse/internal/models"
	"devpulse/pkg/crypto"
	"devpulse/pkg/logger"

	gh "github.com/google/go-github/v62/github"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
)

const (
	pageSize       = 100
	requestTimeout = 15 * time.Second
)

var oauthScopes = []string{"read:user", "user:email", "repo"}

// Store is the persistence the GitHub integration needs.
type Store interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SetGitHubAccount(ctx context.Context, id, encryptedToken, username, avatar string) error
	GetGitHubToken(ctx context.Context, id string) (string, error)
	ClearGitHubAccount(ctx context.Context, id string) error
	UpsertGitHubStats(ctx context.Context, st models.GitHubStats) (*models.GitHubStats, error)
	GetGitHubStats(ctx context.Context, userID string) (*models.GitHubStats, error)
}

type Config struct {
	ClientID      string
	ClientSecret  string
	RedirectURL   string
	EncryptionKey string
	// EmailFallback links an OAuth login to the user owning the same verified
	// primary email when the state does not name a user.
	EmailFallback bool

	// Overrides used against a fake GitHub.
	APIBaseURL   string
	AuthURL      string
	TokenURL     string
	MaxRetries   uint64
	RetryInitial time.Duration
}

type Service struct {
	store      Store
	cache      *cache.Cache
	cfg        Config
	oauth      *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
}

func NewService(store Store, c *cache.Cache, cfg Config) *Service {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInitial == 0 {
		cfg.RetryInitial = 500 * time.Millisecond
	}
	endpoint := oauthgithub.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	return &Service{
		store: store,
		cache: c,
		cfg:   cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       oauthScopes,
		},
		httpClient: &http.Client{
			Transport: newRetryTransport(http.DefaultTransport, cfg.MaxRetries, cfg.RetryInitial),
			Timeout:   requestTimeout,
		},
		now: time.Now,
	}
}

// Configured reports whether OAuth client credentials are set.
func (s *Service) Configured() bool {
	return s.cfg.ClientID != "" && s.cfg.ClientSecret != ""
}

func (s *Service) client(token string) (*gh.Client, error) {
	c := gh.NewClient(s.httpClient).WithAuthToken(token)
	if s.cfg.APIBaseURL != "" {
		base := s.cfg.APIBaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse github base url: %w", err)
		}
		c.BaseURL = u
	}
	return c, nil
}

// userClient decrypts the stored token and returns a client acting as the user.
func (s *Service) userClient(ctx context.Context, userID string) (*gh.Client, error) {
	enc, err := s.store.GetGitHubToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if enc == "" {
		return nil, apperror.Validation("GitHub account is not connected")
	}
	token, err := crypto.Decrypt(enc, s.cfg.EncryptionKey)
	if err != nil {
		return nil, apperror.Internal("Error reading GitHub token", err)
	}
	return s.client(token)
}

func upstream(err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Upstream("GitHub request failed", err)
}

func isUnauthorized(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusUnauthorized
}

type Account struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// Connect validates a personal access token against GitHub and stores it encrypted.
func (s *Service) Connect(ctx context.Context, userID, accessToken string) (*Account, error) {
	c, err := s.client(accessToken)
	if err != nil {
		return nil, err
	}
	u, _, err := c.Users.Get(ctx, "")
	if err != nil {
		if isUnauthorized(err) {
			return nil, apperror.Validation("Invalid GitHub token")
		}
		return nil, upstream(err)
	}
	if err := s.link(ctx, userID, accessToken, u); err != nil {
		return nil, err
	}
	return &Account{Username: u.GetLogin(), Avatar: u.GetAvatarURL()}, nil
}

func (s *Service) link(ctx context.Context, userID, token string, u *gh.User) error {
	enc, err := crypto.Encrypt(token, s.cfg.EncryptionKey)
	if err != nil {
		return apperror.Internal("Error encrypting GitHub token", err)
	}
	if err := s.store.SetGitHubAccount(ctx, userID, enc, u.GetLogin(), u.GetAvatarURL()); err != nil {
		return err
	}
	s.cache.Delete(ctx, cache.GitHubProfileKey(userID))
	logger.AuditLogger.Info("GitHub account connected",
		zap.String("user_id", userID), zap.String("github_login", u.GetLogin()))
	return nil
}

// Sync fetches the profile, repositories and recent events and overwrites the stored stats.
func (s *Service) Sync(ctx context.Context, userID string) (*models.GitHubStats, error) {
	c, err := s.userClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, _, err := c.Users.Get(ctx, "")
	if err != nil {
		return nil, upstream(err)
	}
	repos, err := s.listRepos(ctx, c)
	if err != nil {
		return nil, err
	}
	events, _, err := c.Activity.ListEventsPerformedByUser(ctx, u.GetLogin(), false, &gh.ListOptions{PerPage: pageSize})
	if err != nil {
		return nil, upstream(err)
	}

	activity := Summarize(events, s.now())
	stats, err := s.store.UpsertGitHubStats(ctx, models.GitHubStats{
		UserID:           userID,
		TotalCommits:     activity.Commits,
		TotalRepos:       len(repos),
		TotalPRs:         activity.PullRequests,
		TotalIssues:      activity.Issues,
		ContributionData: activity.Contributions,
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.SetGitHubAccount(ctx, userID, "", u.GetLogin(), u.GetAvatarURL()); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cache.GitHubProfileKey(userID))
	logger.AuditLogger.Info("GitHub stats synced",
		zap.String("user_id", userID), zap.Int("repos", len(repos)), zap.Int("events", len(events)))
	return stats, nil
}

func (s *Service) listRepos(ctx context.Context, c *gh.Client) ([]*gh.Repository, error) {
	repos, _, err := c.Repositories.ListByAuthenticatedUser(ctx, &gh.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: gh.ListOptions{PerPage: pageSize},
	})
	if err != nil {
		return nil, upstream(err)
	}
	return repos, nil
}

// Stats returns the last synced stats, or nil when the user never synced.
func (s *Service) Stats(ctx context.Context, userID string) (*models.GitHubStats, error) {
	st, err := s.store.GetGitHubStats(ctx, userID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

// Profile returns the live GitHub profile with top repositories and languages.
func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	key := cache.GitHubProfileKey(userID)
	var cached Profile
	if s.cache.GetJSON(ctx, key, &cached) {
		return &cached, nil
	}

	c, err := s.userClient(ctx, userID)
	if err != nil {
		return nil, err
	}
	u, _, err := c.Users.Get(ctx, "")
	if err != nil {
		return nil, upstream(err)
	}
	repos, err := s.listRepos(ctx, c)
	if err != nil {
		return nil, err
	}
	p := BuildProfile(u, repos)
	s.cache.SetJSON(ctx, key, p, cache.GitHubProfileTTL)
	return &p, nil
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if err := s.store.ClearGitHubAccount(ctx, userID); err != nil {
		return err
	}
	s.cache.Delete(ctx, cache.GitHubProfileKey(userID))
	logger.AuditLogger.Info("GitHub account disconnected", zap.String("user_id", userID))
	return nil
}

// AuthorizeURL is where the browser goes to grant access. The state carries the caller's id.
func (s *Service) AuthorizeURL(userID string) (string, error) {
	if !s.Configured() {
		return "", apperror.Validation("GitHub OAuth is not configured")
	}
	return s.oauth.AuthCodeURL(userID), nil
}

// Callback failure reasons, reported to the frontend in the redirect.
const (
	ReasonNoCode         = "no_code"
	ReasonConfig         = "config_error"
	ReasonOAuthFailed    = "oauth_failed"
	ReasonGitHubAPIError = "github_api_error"
	ReasonUserNotFound   = "user_not_found"
	ReasonDatabase       = "database_error"
	ReasonServer         = "server_error"
)

type CallbackError struct {
	Reason string
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("github callback %s: %v", e.Reason, e.Err)
	}
	return "github callback " + e.Reason
}

func (e *CallbackError) Unwrap() error { return e.Err }

// CompleteOAuth exchanges the code, resolves which user the GitHub account
// belongs to and links it. It returns the linked user's id.
func (s *Service) CompleteOAuth(ctx context.Context, code, state string) (string, error) {
	if code == "" {
		return "", &CallbackError{Reason: ReasonNoCode}
	}
	if !s.Configured() {
		return "", &CallbackError{Reason: ReasonConfig}
	}

	tok, err := s.oauth.Exchange(context.WithValue(ctx, oauth2.HTTPClient, s.httpClient), code)
	if err != nil || tok.AccessToken == "" {
		return "", &CallbackError{Reason: ReasonOAuthFailed, Err: err}
	}
	c, err := s.client(tok.AccessToken)
	if err != nil {
		return "", &CallbackError{Reason: ReasonServer, Err: err}
	}
	u, _, err := c.Users.Get(ctx, "")
	if err != nil {
		return "", &CallbackError{Reason: ReasonGitHubAPIError, Err: err}
	}

	userID, err := s.resolveUser(ctx, c, state, u)
	if err != nil {
		return "", err
	}
	if err := s.link(ctx, userID, tok.AccessToken, u); err != nil {
		var appErr *apperror.Error
		if errors.As(err, &appErr) && appErr.Kind == apperror.KindInternal {
			return "", &CallbackError{Reason: ReasonServer, Err: err}
		}
		return "", &CallbackError{Reason: ReasonDatabase, Err: err}
	}
	return userID, nil
}

func (s *Service) resolveUser(ctx context.Context, c *gh.Client, state string, u *gh.User) (string, error) {
	if _, err := uuid.Parse(state); err == nil {
		user, err := s.store.GetUserByID(ctx, state)
		if err == nil {
			return user.ID, nil
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			return "", &CallbackError{Reason: ReasonDatabase, Err: err}
		}
	}
	if !s.cfg.EmailFallback {
		return "", &CallbackError{Reason: ReasonUserNotFound}
	}

	email, err := verifiedPrimaryEmail(ctx, c)
	if err != nil {
		return "", &CallbackError{Reason: ReasonGitHubAPIError, Err: err}
	}
	if email == "" {
		return "", &CallbackError{Reason: ReasonUserNotFound}
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", &CallbackError{Reason: ReasonUserNotFound}
		}
		return "", &CallbackError{Reason: ReasonDatabase, Err: err}
	}
	logger.SecurityLogger.Warn("GitHub account linked by email match",
		zap.String("user_id", user.ID),
		zap.String("github_login", u.GetLogin()),
		zap.String("email", email),
		zap.String("state", state))
	return user.ID, nil
}

// verifiedPrimaryEmail returns "" when the account has no verified primary address.
func verifiedPrimaryEmail(ctx context.Context, c *gh.Client) (string, error) {
	emails, _, err := c.Users.ListEmails(ctx, &gh.ListOptions{PerPage: pageSize})
	if err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail(), nil
		}
	}
	return "", nil
}
