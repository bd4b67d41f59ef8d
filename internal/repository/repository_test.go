package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giacomoarchidi/tutoring-platform/internal/auth"
	"github.com/giacomoarchidi/tutoring-platform/internal/db"
	"github.com/giacomoarchidi/tutoring-platform/internal/model"
)

// Tests in this file need a real PostgreSQL instance and skip without one.
func testStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("TUTORING_TEST_DB")
	if url == "" {
		t.Skip("TUTORING_TEST_DB not set")
	}

	if err := db.Migrate(url); err != nil {
		t.Fatalf("migrate error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := db.NewPool(ctx, url)
	if err != nil {
		t.Fatalf("pool error: %v", err)
	}
	t.Cleanup(pool.Close)

	cleanup(t, pool)
	return NewStore(pool)
}

func cleanup(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(),
		`TRUNCATE users, student_profiles, tutor_profiles, parent_profiles`)
	if err != nil {
		t.Fatalf("cleanup error: %v", err)
	}
}

func newStudent(email string) (model.User, model.Profile) {
	user := model.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "x",
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	profile := model.Profile{
		Role: model.RoleStudent,
		Student: &model.StudentProfile{
			UserID:      user.ID,
			FirstName:   "Ada",
			LastName:    "Lovelace",
			SchoolLevel: "liceo",
		},
	}
	return user, profile
}

func TestCreateAndFetchUser(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	user, profile := newStudent("ada@example.com")
	created, err := store.CreateUserWithProfile(ctx, user, profile)
	if err != nil {
		t.Fatalf("create error: %v", err)
	}
	if created.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}

	byEmail, err := store.GetUserByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("get by email error: %v", err)
	}
	if byEmail.ID != user.ID || byEmail.Role != model.RoleStudent || !byEmail.IsActive {
		t.Fatalf("unexpected user %+v", byEmail)
	}

	byID, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get by id error: %v", err)
	}
	if byID.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", byID)
	}

	if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDuplicateEmailLeavesNoPartialRows(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	first, firstProfile := newStudent("ada@example.com")
	if _, err := store.CreateUserWithProfile(ctx, first, firstProfile); err != nil {
		t.Fatalf("create error: %v", err)
	}

	second, secondProfile := newStudent("ada@example.com")
	if _, err := store.CreateUserWithProfile(ctx, second, secondProfile); !errors.Is(err, auth.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	var users, profiles int
	if err := store.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&users); err != nil {
		t.Fatalf("count error: %v", err)
	}
	if err := store.pool.QueryRow(ctx, `SELECT count(*) FROM student_profiles`).Scan(&profiles); err != nil {
		t.Fatalf("count error: %v", err)
	}
	if users != 1 || profiles != 1 {
		t.Fatalf("expected 1 user and 1 profile, got %d/%d", users, profiles)
	}
}

func TestTutorProfileRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	bio := "PhD in mathematics"
	user := model.User{
		ID:           uuid.New(),
		Email:        "grace@example.com",
		PasswordHash: "x",
		Role:         model.RoleTutor,
		IsActive:     true,
	}
	profile := model.Profile{
		Role: model.RoleTutor,
		Tutor: &model.TutorProfile{
			UserID:     user.ID,
			FirstName:  "Grace",
			LastName:   "Hopper",
			Bio:        &bio,
			Subjects:   []string{"Math", "Physics"},
			HourlyRate: 25.5,
		},
	}
	if _, err := store.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("create error: %v", err)
	}

	fetched, err := store.GetProfile(ctx, user.ID, model.RoleTutor)
	if err != nil {
		t.Fatalf("get profile error: %v", err)
	}
	tutor := fetched.Tutor
	if tutor == nil {
		t.Fatalf("expected tutor profile")
	}
	if tutor.FirstName != "Grace" || tutor.HourlyRate != 25.5 || tutor.IsVerified {
		t.Fatalf("unexpected profile %+v", tutor)
	}
	if len(tutor.Subjects) != 2 || tutor.Subjects[0] != "Math" || tutor.Subjects[1] != "Physics" {
		t.Fatalf("unexpected subjects %v", tutor.Subjects)
	}
	if tutor.Bio == nil || *tutor.Bio != bio {
		t.Fatalf("unexpected bio %v", tutor.Bio)
	}

	if _, err := store.GetProfile(ctx, uuid.New(), model.RoleTutor); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePasswordAndActivation(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	user, profile := newStudent("ada@example.com")
	if _, err := store.CreateUserWithProfile(ctx, user, profile); err != nil {
		t.Fatalf("create error: %v", err)
	}

	if err := store.UpdatePassword(ctx, user.ID, "new-hash"); err != nil {
		t.Fatalf("update password error: %v", err)
	}
	updated, err := store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if updated.PasswordHash != "new-hash" {
		t.Fatalf("unexpected hash %q", updated.PasswordHash)
	}

	if err := store.SetUserActive(ctx, user.ID, false); err != nil {
		t.Fatalf("deactivate error: %v", err)
	}
	updated, err = store.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("get error: %v", err)
	}
	if updated.IsActive {
		t.Fatalf("expected user to be inactive")
	}

	if err := store.UpdatePassword(ctx, uuid.New(), "x"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.SetUserActive(ctx, uuid.New(), true); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManyUsers(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		user, profile := newStudent(fmt.Sprintf("student%d@example.com", i))
		if _, err := store.CreateUserWithProfile(ctx, user, profile); err != nil {
			t.Fatalf("create error: %v", err)
		}
	}
	var count int
	if err := store.pool.QueryRow(ctx, `SELECT count(*) FROM users`).Scan(&count); err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 users, got %d", count)
	}
}
