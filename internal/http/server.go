package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/giacomoarchidi/tutoring-platform/internal/auth"
	"github.com/giacomoarchidi/tutoring-platform/internal/config"
	"github.com/giacomoarchidi/tutoring-platform/internal/model"
	"github.com/giacomoarchidi/tutoring-platform/internal/video"
)

const serviceVersion = "0.1.0"

type Server struct {
	cfg     config.Config
	service *auth.Service
	tokens  *auth.TokenIssuer
	video   *video.Issuer
	limiter *loginLimiter
	logger  zerolog.Logger
}

func NewServer(cfg config.Config, service *auth.Service, tokens *auth.TokenIssuer, videoIssuer *video.Issuer, redisClient *redis.Client, logger zerolog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		service: service,
		tokens:  tokens,
		video:   videoIssuer,
		limiter: newLoginLimiter(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow),
		logger:  logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	r.Use(s.requestLogger)

	r.Get("/", s.handleRoot)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.With(s.authMiddleware).Get("/me", s.handleGetMe)
			r.With(s.authMiddleware).Post("/change-password", s.handleChangePassword)
			r.With(s.authMiddleware).Post("/deactivate", s.handleDeactivate)
		})
		r.With(s.authMiddleware).Get("/users/{userID}", s.handleGetUser)
		r.With(s.authMiddleware).Post("/video/token", s.handleVideoToken)
	})

	return r
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message":     "Tutoring Platform API",
		"version":     serviceVersion,
		"environment": s.cfg.Env,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`

	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	SchoolLevel string `json:"school_level"`

	Bio        *string `json:"bio,omitempty"`
	Subjects   string  `json:"subjects"`
	HourlyRate float64 `json:"hourly_rate"`

	Phone *string `json:"phone,omitempty"`
}

type userSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	role := model.Role(strings.TrimSpace(strings.ToLower(req.Role)))
	if req.Email == "" || req.Password == "" || !role.Valid() {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if role.HasProfile() && (strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "") {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if role == model.RoleStudent && strings.TrimSpace(req.SchoolLevel) == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if req.HourlyRate < 0 {
		writeError(w, http.StatusBadRequest, "invalid_hourly_rate")
		return
	}

	user, err := s.service.Register(r.Context(), auth.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Role:        role,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		SchoolLevel: strings.TrimSpace(req.SchoolLevel),
		Bio:         req.Bio,
		Subjects:    req.Subjects,
		HourlyRate:  req.HourlyRate,
		Phone:       req.Phone,
	})
	if err != nil {
		if errors.Is(err, auth.ErrDuplicateEmail) {
			writeError(w, http.StatusBadRequest, "email_already_registered")
			return
		}
		s.logger.Error().Err(err).Msg("register failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	registrations.WithLabelValues(string(user.Role)).Inc()
	writeJSON(w, http.StatusCreated, userSummary{
		ID:       user.ID.String(),
		Email:    user.Email,
		Role:     string(user.Role),
		IsActive: user.IsActive,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	if !s.limiter.Allow(r.Context(), req.Email, clientIP(r)) {
		loginAttempts.WithLabelValues("rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "too_many_attempts")
		return
	}

	token, err := s.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			loginAttempts.WithLabelValues("invalid_credentials").Inc()
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
		case errors.Is(err, auth.ErrAccountDisabled):
			loginAttempts.WithLabelValues("account_disabled").Inc()
			writeError(w, http.StatusBadRequest, "account_disabled")
		default:
			s.logger.Error().Err(err).Msg("login failed")
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	loginAttempts.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, token)
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}
	s.writeProfile(w, r, userID)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	rawID := chi.URLParam(r, "userID")
	userID, err := uuid.Parse(rawID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_user_id")
		return
	}
	if claims.Role != string(model.RoleAdmin) && claims.Subject != userID.String() {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	s.writeProfile(w, r, userID)
}

func (s *Server) writeProfile(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	profile, err := s.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user_not_found")
			return
		}
		s.logger.Error().Err(err).Msg("get profile failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	ok, err := s.service.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		s.logger.Error().Err(err).Msg("change password failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_current_password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token")
		return
	}

	ok, err := s.service.Deactivate(r.Context(), userID)
	if err != nil {
		s.logger.Error().Err(err).Msg("deactivate failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

type videoTokenRequest struct {
	Channel string `json:"channel"`
}

type videoTokenResponse struct {
	Token     string `json:"token"`
	AppID     string `json:"app_id"`
	Channel   string `json:"channel"`
	ExpiresAt int64  `json:"expires_at"`
}

func (s *Server) handleVideoToken(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}

	var req videoTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Channel = strings.TrimSpace(req.Channel)
	if req.Channel == "" {
		writeError(w, http.StatusBadRequest, "missing_channel")
		return
	}

	token, expiresAt, err := s.video.Issue(req.Channel, claims.Subject)
	if err != nil {
		if errors.Is(err, video.ErrNotConfigured) {
			writeError(w, http.StatusServiceUnavailable, "video_not_configured")
			return
		}
		s.logger.Error().Err(err).Msg("video token failed")
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, videoTokenResponse{
		Token:     token,
		AppID:     s.cfg.VideoAppID,
		Channel:   req.Channel,
		ExpiresAt: expiresAt,
	})
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
