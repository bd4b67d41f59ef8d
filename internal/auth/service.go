package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giacomoarchidi/tutoring-platform/internal/crypto"
	"github.com/giacomoarchidi/tutoring-platform/internal/model"
)

const defaultHourlyRate = 15.0

// Store is the credential store the service operates on. Implementations
// must enforce email uniqueness at the storage layer and make
// CreateUserWithProfile atomic: either both records persist or neither does.
type Store interface {
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (model.User, error)
	CreateUserWithProfile(ctx context.Context, user model.User, profile model.Profile) (model.User, error)
	GetProfile(ctx context.Context, userID uuid.UUID, role model.Role) (model.Profile, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) error
}

// Service implements registration, login and account management on top of
// the credential store and token issuer. It holds no state of its own.
type Service struct {
	store  Store
	tokens *TokenIssuer
}

func NewService(store Store, tokens *TokenIssuer) *Service {
	return &Service{store: store, tokens: tokens}
}

type RegisterInput struct {
	Email    string
	Password string
	Role     model.Role

	FirstName string
	LastName  string

	// Student only.
	SchoolLevel string

	// Tutor only. Subjects is a single comma-delimited string; HourlyRate
	// zero means "use the default".
	Bio        *string
	Subjects   string
	HourlyRate float64

	// Parent only.
	Phone *string
}

// Register creates a user and its role-specific profile in one transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (model.User, error) {
	_, err := s.store.GetUserByEmail(ctx, input.Email)
	if err == nil {
		return model.User{}, ErrDuplicateEmail
	}
	if !errors.Is(err, ErrNotFound) {
		return model.User{}, err
	}

	hash, err := crypto.HashPassword(input.Password)
	if err != nil {
		return model.User{}, err
	}

	user := model.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		IsActive:     true,
	}

	// The store's unique constraint still catches a concurrent writer that
	// slipped in between the lookup above and this insert.
	return s.store.CreateUserWithProfile(ctx, user, buildProfile(user.ID, input))
}

func buildProfile(userID uuid.UUID, input RegisterInput) model.Profile {
	profile := model.Profile{Role: input.Role}
	switch input.Role {
	case model.RoleStudent:
		profile.Student = &model.StudentProfile{
			UserID:      userID,
			FirstName:   input.FirstName,
			LastName:    input.LastName,
			SchoolLevel: input.SchoolLevel,
		}
	case model.RoleTutor:
		rate := input.HourlyRate
		if rate == 0 {
			rate = defaultHourlyRate
		}
		profile.Tutor = &model.TutorProfile{
			UserID:     userID,
			FirstName:  input.FirstName,
			LastName:   input.LastName,
			Bio:        input.Bio,
			Subjects:   ParseSubjects(input.Subjects),
			HourlyRate: rate,
		}
	case model.RoleParent:
		profile.Parent = &model.ParentProfile{
			UserID:    userID,
			FirstName: input.FirstName,
			LastName:  input.LastName,
			Phone:     input.Phone,
		}
	case model.RoleAdmin:
		// No profile record.
	}
	return profile
}

// ParseSubjects splits a comma-delimited subject list into trimmed,
// non-empty tokens, preserving order.
func ParseSubjects(raw string) []string {
	parts := strings.Split(raw, ",")
	subjects := make([]string, 0, len(parts))
	for _, part := range parts {
		if subject := strings.TrimSpace(part); subject != "" {
			subjects = append(subjects, subject)
		}
	}
	return subjects
}

// Authenticate looks the user up by email and verifies the password.
// Unknown email and wrong password both return (nil, nil): the caller must
// not be able to tell which check failed.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := crypto.CheckPassword(user.PasswordHash, password); err != nil {
		return nil, nil
	}
	return &user, nil
}

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Login authenticates and issues an access token. The active check happens
// here, once, not on later authenticated requests.
func (s *Service) Login(ctx context.Context, email, password string) (Token, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Token{}, err
	}
	if user == nil {
		return Token{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return Token{}, ErrAccountDisabled
	}

	signed, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return Token{}, err
	}
	return Token{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL() / time.Second),
	}, nil
}

// ProfileView merges base identity fields with the role-specific profile
// fields. Fields for other roles stay empty and are omitted on the wire.
type ProfileView struct {
	ID        uuid.UUID  `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`

	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	SchoolLevel string `json:"school_level,omitempty"`

	Bio        *string  `json:"bio,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	HourlyRate *float64 `json:"hourly_rate,omitempty"`
	IsVerified *bool    `json:"is_verified,omitempty"`

	Phone *string `json:"phone,omitempty"`
}

func (s *Service) GetProfile(ctx context.Context, userID uuid.UUID) (ProfileView, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return ProfileView{}, err
	}

	view := ProfileView{
		ID:        user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt,
	}
	if !user.Role.HasProfile() {
		return view, nil
	}

	profile, err := s.store.GetProfile(ctx, user.ID, user.Role)
	if err != nil {
		return ProfileView{}, err
	}
	switch {
	case profile.Student != nil:
		view.FirstName = profile.Student.FirstName
		view.LastName = profile.Student.LastName
		view.SchoolLevel = profile.Student.SchoolLevel
	case profile.Tutor != nil:
		view.FirstName = profile.Tutor.FirstName
		view.LastName = profile.Tutor.LastName
		view.Bio = profile.Tutor.Bio
		view.Subjects = profile.Tutor.Subjects
		rate := profile.Tutor.HourlyRate
		view.HourlyRate = &rate
		verified := profile.Tutor.IsVerified
		view.IsVerified = &verified
	case profile.Parent != nil:
		view.FirstName = profile.Parent.FirstName
		view.LastName = profile.Parent.LastName
		view.Phone = profile.Parent.Phone
	}
	return view, nil
}

// ChangePassword re-hashes and persists the new password after verifying
// the current one. Returns false when the user is unknown or the current
// password does not match.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, newPassword string) (bool, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := crypto.CheckPassword(user.PasswordHash, current); err != nil {
		return false, nil
	}

	hash, err := crypto.HashPassword(newPassword)
	if err != nil {
		return false, err
	}
	if err := s.store.UpdatePassword(ctx, userID, hash); err != nil {
		return false, err
	}
	return true, nil
}

// Deactivate marks the account inactive. Returns false when the user is
// unknown. Tokens already issued stay valid until their expiry.
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) (bool, error) {
	if err := s.store.SetUserActive(ctx, userID, false); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
