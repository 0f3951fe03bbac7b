package repository

import (
	"context"
	"fmt"

	"devpulse/internal/models"
)

const githubStatsColumns = `id, user_id, total_commits, total_repos, total_prs, total_issues,
	contribution_data, last_sync_at, created_at, updated_at`

func scanGitHubStats(row scanner) (*models.GitHubStats, error) {
	var st models.GitHubStats
	err := row.Scan(&st.ID, &st.UserID, &st.TotalCommits, &st.TotalRepos, &st.TotalPRs, &st.TotalIssues,
		&st.ContributionData, &st.LastSyncAt, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertGitHubStats overwrites the user's single stats row.
func (s *Store) UpsertGitHubStats(ctx context.Context, st models.GitHubStats) (*models.GitHubStats, error) {
	now := s.now()
	out, err := scanGitHubStats(s.db.QueryRowContext(ctx, `
		INSERT INTO github_stats (id, user_id, total_commits, total_repos, total_prs, total_issues,
		                          contribution_data, last_sync_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $8)
		ON CONFLICT (user_id) DO UPDATE SET
		    total_commits = EXCLUDED.total_commits,
		    total_repos = EXCLUDED.total_repos,
		    total_prs = EXCLUDED.total_prs,
		    total_issues = EXCLUDED.total_issues,
		    contribution_data = EXCLUDED.contribution_data,
		    last_sync_at = EXCLUDED.last_sync_at,
		    updated_at = EXCLUDED.updated_at
		RETURNING `+githubStatsColumns,
		newID(), st.UserID, st.TotalCommits, st.TotalRepos, st.TotalPRs, st.TotalIssues, st.ContributionData, now))
	if err != nil {
		return nil, fmt.Errorf("upsert github stats: %w", err)
	}
	return out, nil
}

// GetGitHubStats returns NotFound when the user never synced.
func (s *Store) GetGitHubStats(ctx context.Context, userID string) (*models.GitHubStats, error) {
	st, err := scanGitHubStats(s.db.QueryRowContext(ctx,
		`SELECT `+githubStatsColumns+` FROM github_stats WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFound(err, "GitHub stats not found")
	}
	return st, nil
}
