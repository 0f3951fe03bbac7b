package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"devpulse/internal/apperror"
	"devpulse/internal/models"
)

const userColumns = `id, email, name, avatar, github_username, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.GitHubUsername, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a user with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, email, name, passwordHash string) (*models.User, error) {
	now := s.now()
	row := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, email, password, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $5)
		 RETURNING `+userColumns,
		newID(), strings.ToLower(strings.TrimSpace(email)), passwordHash, name, now)
	u, err := scanUser(row)
	if err != nil {
		if apperror.IsUniqueViolation(err) {
			return nil, apperror.Conflict("Email already registered")
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetCredentials returns the user and password hash for a login attempt.
func (s *Store) GetCredentials(ctx context.Context, email string) (*models.User, string, error) {
	var (
		u    models.User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &u.GitHubUsername, &u.CreatedAt, &u.UpdatedAt, &hash)
	if err != nil {
		return nil, "", notFound(err, "User not found")
	}
	return &u, hash, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return u, nil
}

// GetProfile returns the user along with client and project counts.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	var p models.UserProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.name, u.avatar, u.github_username, u.created_at, u.updated_at,
		       (SELECT COUNT(*) FROM clients c WHERE c.user_id = u.id),
		       (SELECT COUNT(*) FROM projects p WHERE p.user_id = u.id)
		FROM users u WHERE u.id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.Avatar, &p.GitHubUsername, &p.CreatedAt, &p.UpdatedAt,
		&p.Count.Clients, &p.Count.Projects)
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return &p, nil
}

// UpdateProfile changes the fields that are non-nil.
func (s *Store) UpdateProfile(ctx context.Context, id string, name, avatar *string) (*models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `
		UPDATE users SET name = COALESCE($2, name), avatar = COALESCE($3, avatar), updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns, id, name, avatar, s.now()))
	if err != nil {
		return nil, notFound(err, "User not found")
	}
	return u, nil
}

func (s *Store) GetPasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	if err := s.db.QueryRowContext(ctx, `SELECT password FROM users WHERE id = $1`, id).Scan(&hash); err != nil {
		return "", notFound(err, "User not found")
	}
	return hash, nil
}

func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password = $2, updated_at = $3 WHERE id = $1`, id, hash, s.now())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res, "User not found")
}

// DeleteUser removes the user; everything they own goes with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return requireAffected(res, "User not found")
}

// SetGitHubAccount stores the encrypted token and the GitHub identity on the user.
// An empty avatar keeps the current one.
func (s *Store) SetGitHubAccount(ctx context.Context, id, encryptedToken, username, avatar string) error {
	var avatarArg any
	if avatar != "" {
		avatarArg = avatar
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET github_token = COALESCE($2, github_token), github_username = $3,
		       avatar = COALESCE($4, avatar), updated_at = $5
		WHERE id = $1`, id, nullString(encryptedToken), username, avatarArg, s.now())
	if err != nil {
		return fmt.Errorf("update github account: %w", err)
	}
	return requireAffected(res, "User not found")
}

// GetGitHubToken returns the encrypted token, or "" when the user never connected.
func (s *Store) GetGitHubToken(ctx context.Context, id string) (string, error) {
	var token sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT github_token FROM users WHERE id = $1`, id).Scan(&token); err != nil {
		return "", notFound(err, "User not found")
	}
	return token.String, nil
}

// ClearGitHubAccount forgets the token and username and deletes the synced stats.
func (s *Store) ClearGitHubAccount(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE users SET github_token = NULL, github_username = NULL, updated_at = $2 WHERE id = $1`, id, s.now())
		if err != nil {
			return fmt.Errorf("clear github account: %w", err)
		}
		if err := requireAffected(res, "User not found"); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM github_stats WHERE user_id = $1`, id); err != nil {
			return fmt.Errorf("delete github stats: %w", err)
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
