package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/support-bot/internal/domain"
)

// UserRepository defines persistence access for bot users.
type UserRepository interface {
	// Upsert inserts the user or refreshes the profile of an existing row with
	// the same Telegram id. An existing role is kept unless the incoming role is admin.
	Upsert(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error)
	// LockByID loads the user and, inside a transaction, holds a row lock
	// until commit so the role cannot change underneath the caller.
	LockByID(ctx context.Context, id int64) (*domain.User, error)
	// UpdateRole flips the role only when it is still from. It returns
	// ErrStaleWrite otherwise.
	UpdateRole(ctx context.Context, id int64, from, to domain.Role, at time.Time) error
	SetLanguage(ctx context.Context, id int64, language string, at time.Time) error
	Touch(ctx context.Context, id int64, at time.Time) error
	ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error)
	// AvailableModerators lists moderators without an in-progress ticket.
	AvailableModerators(ctx context.Context, excluding int64) ([]domain.User, error)
}

type userRepository struct {
	q querier
}

const userColumns = `id, telegram_id, username, first_name, last_name, language, role, is_active, created_at, updated_at, last_activity`

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	query := `
        INSERT INTO users (telegram_id, username, first_name, last_name, language, role, is_active, created_at, updated_at, last_activity)
        VALUES ($1,$2,$3,$4,$5,$6,TRUE,$7,$7,$7)
        ON CONFLICT (telegram_id) DO UPDATE SET
            username = EXCLUDED.username,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            role = CASE WHEN EXCLUDED.role = 'admin' THEN 'admin' ELSE users.role END,
            updated_at = EXCLUDED.updated_at,
            last_activity = EXCLUDED.last_activity
        RETURNING ` + userColumns
	stored, err := scanUser(r.q.QueryRow(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.Language,
		user.Role,
		user.LastActivity,
	))
	if err != nil {
		return err
	}
	*user = *stored
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepository) LockByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1 FOR NO KEY UPDATE`, id))
}

func (r *userRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	return scanUser(r.q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE telegram_id=$1`, telegramID))
}

func (r *userRepository) UpdateRole(ctx context.Context, id int64, from, to domain.Role, at time.Time) error {
	const query = `UPDATE users SET role=$1, updated_at=$2 WHERE id=$3 AND role=$4`
	cmd, err := r.q.Exec(ctx, query, to, at, id, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleWrite
	}
	return nil
}

func (r *userRepository) SetLanguage(ctx context.Context, id int64, language string, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE users SET language=$1, updated_at=$2 WHERE id=$3`, language, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) Touch(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE users SET last_activity=$1 WHERE id=$2`, at, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role=$1 AND is_active ORDER BY id`
	rows, err := r.q.Query(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (r *userRepository) AvailableModerators(ctx context.Context, excluding int64) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u
        WHERE u.role='moderator' AND u.is_active AND u.id <> $1
          AND NOT EXISTS (
              SELECT 1 FROM tickets t WHERE t.moderator_id = u.id AND t.status = 'in_progress'
          )
        ORDER BY u.id`
	rows, err := r.q.Query(ctx, query, excluding)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsers(rows)
}

func scanUser(row scanner) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.Language,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastActivity,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}
