package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giacomoarchidi/tutoring-platform/internal/auth"
	"github.com/giacomoarchidi/tutoring-platform/internal/model"
)

// Store implements auth.Store on PostgreSQL. Email uniqueness is enforced
// by the unique index on users.email; user+profile creation runs in one
// transaction.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, email, password_hash, role, is_active, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, auth.ErrNotFound
	}
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// CreateUserWithProfile inserts the user and its profile atomically. A
// concurrent insert of the same email surfaces as auth.ErrDuplicateEmail
// and leaves no partial rows behind.
func (s *Store) CreateUserWithProfile(ctx context.Context, user model.User, profile model.Profile) (model.User, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, user.ID, user.Email, user.PasswordHash, user.Role, user.IsActive)
	if err := row.Scan(&user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return model.User{}, auth.ErrDuplicateEmail
		}
		return model.User{}, err
	}

	if err := insertProfile(ctx, tx, profile); err != nil {
		return model.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.User{}, err
	}
	return user, nil
}

func insertProfile(ctx context.Context, tx pgx.Tx, profile model.Profile) error {
	switch {
	case profile.Student != nil:
		_, err := tx.Exec(ctx, `
			INSERT INTO student_profiles (user_id, first_name, last_name, school_level)
			VALUES ($1, $2, $3, $4)
		`, profile.Student.UserID, profile.Student.FirstName, profile.Student.LastName, profile.Student.SchoolLevel)
		return err
	case profile.Tutor != nil:
		_, err := tx.Exec(ctx, `
			INSERT INTO tutor_profiles (user_id, first_name, last_name, bio, subjects, hourly_rate, is_verified)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, profile.Tutor.UserID, profile.Tutor.FirstName, profile.Tutor.LastName, profile.Tutor.Bio,
			profile.Tutor.Subjects, profile.Tutor.HourlyRate, profile.Tutor.IsVerified)
		return err
	case profile.Parent != nil:
		_, err := tx.Exec(ctx, `
			INSERT INTO parent_profiles (user_id, first_name, last_name, phone)
			VALUES ($1, $2, $3, $4)
		`, profile.Parent.UserID, profile.Parent.FirstName, profile.Parent.LastName, profile.Parent.Phone)
		return err
	default:
		return nil
	}
}

func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID, role model.Role) (model.Profile, error) {
	profile := model.Profile{Role: role}
	switch role {
	case model.RoleStudent:
		student := model.StudentProfile{UserID: userID}
		row := s.pool.QueryRow(ctx, `
			SELECT first_name, last_name, school_level
			FROM student_profiles
			WHERE user_id = $1
		`, userID)
		if err := row.Scan(&student.FirstName, &student.LastName, &student.SchoolLevel); err != nil {
			return model.Profile{}, mapNoRows(err)
		}
		profile.Student = &student
	case model.RoleTutor:
		tutor := model.TutorProfile{UserID: userID}
		row := s.pool.QueryRow(ctx, `
			SELECT first_name, last_name, bio, subjects, hourly_rate, is_verified
			FROM tutor_profiles
			WHERE user_id = $1
		`, userID)
		if err := row.Scan(&tutor.FirstName, &tutor.LastName, &tutor.Bio, &tutor.Subjects, &tutor.HourlyRate, &tutor.IsVerified); err != nil {
			return model.Profile{}, mapNoRows(err)
		}
		profile.Tutor = &tutor
	case model.RoleParent:
		parent := model.ParentProfile{UserID: userID}
		row := s.pool.QueryRow(ctx, `
			SELECT first_name, last_name, phone
			FROM parent_profiles
			WHERE user_id = $1
		`, userID)
		if err := row.Scan(&parent.FirstName, &parent.LastName, &parent.Phone); err != nil {
			return model.Profile{}, mapNoRows(err)
		}
		profile.Parent = &parent
	default:
		return model.Profile{}, fmt.Errorf("role %q has no profile", role)
	}
	return profile, nil
}

func (s *Store) UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1 WHERE id = $2
	`, passwordHash, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET is_active = $1 WHERE id = $2
	`, active, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return auth.ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
