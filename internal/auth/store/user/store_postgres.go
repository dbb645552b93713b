package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"usersapi/internal/auth/models"
	id "usersapi/pkg/domain"
	"usersapi/pkg/platform/sentinel"
)

// PostgresStore persists users in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, password_hash, first_name, last_name, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, user *models.User) models.CreateResult {
	if user == nil {
		return models.CreateResult{Outcome: models.Failed, Err: fmt.Errorf("user is required")}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(user.ID),
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return models.CreateResult{Outcome: models.DuplicateKey}
		}
		return models.CreateResult{Outcome: models.Failed, Err: fmt.Errorf("insert user: %w", err)}
	}
	return models.CreateResult{Outcome: models.Created}
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, uuid.UUID(userID))
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) Update(ctx context.Context, user *models.User) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $2, first_name = $3, last_name = $4, updated_at = $5
		WHERE id = $1
	`,
		uuid.UUID(user.ID),
		user.Email,
		user.FirstName,
		user.LastName,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email already in use: %w", sentinel.ErrConflict)
		}
		return fmt.Errorf("update user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID id.UserID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, uuid.UUID(userID))
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %w", sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, email`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	var (
		user   models.User
		userID uuid.UUID
	)
	if err := row.Scan(&userID, &user.Email, &user.PasswordHash, &user.FirstName, &user.LastName, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.ID = id.UserID(userID)
	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
