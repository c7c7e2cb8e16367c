package service

import (
	"errors"
	"time"

	"github.com/qoe-boost/backend/internal/auth"
	"github.com/qoe-boost/backend/internal/models"
	"github.com/qoe-boost/backend/internal/storage"
	"github.com/qoe-boost/backend/internal/utils/email"
	"github.com/sirupsen/logrus"
)

// ErrUnauthorized is returned for any authentication failure. Unknown
// username, wrong password, and invalid/expired tokens are deliberately
// indistinguishable through this error.
var ErrUnauthorized = errors.New("invalid credentials")

// CarrierRegistry resolves provider codes to display names
type CarrierRegistry interface {
	DisplayName(code string) (string, bool)
}

// Service handles business logic
type Service struct {
	store    storage.Store
	tokens   *auth.TokenService
	log      *logrus.Logger
	mailer   *email.Sender   // optional, nil when SMTP is not configured
	registry CarrierRegistry // optional, nil when no carrier feed is configured
}

// NewService initializes a new service
func NewService(store storage.Store, tokens *auth.TokenService, log *logrus.Logger) *Service {
	return &Service{store: store, tokens: tokens, log: log}
}

// WithMailer enables welcome emails on registration
func (s *Service) WithMailer(mailer *email.Sender) *Service {
	s.mailer = mailer
	return s
}

// WithCarrierRegistry enables provider display names in recommendations
func (s *Service) WithCarrierRegistry(registry CarrierRegistry) *Service {
	s.registry = registry
	return s
}

// StorageMode reports which backing store the process is running on
func (s *Service) StorageMode() storage.Mode {
	return s.store.Mode()
}

// PingStorage checks the backing store health
func (s *Service) PingStorage() error {
	return s.store.Ping()
}

// TokenTTL returns the configured access-token lifetime
func (s *Service) TokenTTL() time.Duration {
	return s.tokens.TTL()
}

// Register creates a new user with a hashed password. Duplicate usernames or
// emails surface as storage.ErrConflict.
func (s *Service) Register(username, emailAddr, password, provider string) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     username,
		Email:        emailAddr,
		PasswordHash: hash,
		Provider:     provider,
	}
	if err := s.store.CreateUser(user); err != nil {
		return nil, err
	}

	if s.mailer != nil {
		go s.mailer.SendWelcome(user.Email, user.Username)
	}

	s.log.Infof("User registered: %s", user.Username)
	return user, nil
}

// Login authenticates a user and returns a bearer token bound to the
// username. A missing user and a wrong password both return ErrUnauthorized.
func (s *Service) Login(username, password string, now time.Time) (string, error) {
	user, err := s.store.FindUserByUsername(username)
	if err != nil {
		return "", ErrUnauthorized
	}
	if !auth.VerifyPassword(password, user.PasswordHash) {
		return "", ErrUnauthorized
	}

	token, err := s.tokens.Issue(user.Username, now)
	if err != nil {
		return "", err
	}

	s.log.Infof("User logged in: %s", user.Username)
	return token, nil
}

// Authenticate resolves a bearer token to a live user record. A token that
// validates cryptographically still fails if the user no longer exists or has
// been deactivated.
func (s *Service) Authenticate(token string, now time.Time) (*models.User, error) {
	subject, ok := s.tokens.Validate(token, now)
	if !ok {
		return nil, ErrUnauthorized
	}
	user, err := s.store.FindUserByUsername(subject)
	if err != nil || !user.IsActive {
		return nil, ErrUnauthorized
	}
	return user, nil
}

// SubmitFeedback stores a feedback record. A userID of 0 marks an anonymous
// submission, accepted only on the in-memory fallback path.
func (s *Service) SubmitFeedback(userID int64, rating int, category, content string) (*models.Feedback, error) {
	fb := &models.Feedback{
		UserID:   userID,
		Rating:   rating,
		Category: category,
		Content:  content,
	}
	if err := s.store.CreateFeedback(fb); err != nil {
		return nil, err
	}
	s.log.Infof("Feedback %d submitted (user %d)", fb.ID, fb.UserID)
	return fb, nil
}

// ListFeedback returns feedback in insertion order, scoped to userID when > 0
func (s *Service) ListFeedback(userID int64, offset, limit int) ([]models.Feedback, error) {
	return s.store.ListFeedback(userID, offset, limit)
}

// SubmitNetworkLog stores a network measurement record
func (s *Service) SubmitNetworkLog(userID int64, location, provider string, latencyMs, downloadMbps, uploadMbps float64, networkType string) (*models.NetworkLog, error) {
	nl := &models.NetworkLog{
		UserID:       userID,
		Location:     location,
		Provider:     provider,
		LatencyMs:    latencyMs,
		DownloadMbps: downloadMbps,
		UploadMbps:   uploadMbps,
		NetworkType:  networkType,
	}
	if err := s.store.CreateNetworkLog(nl); err != nil {
		return nil, err
	}
	s.log.Infof("Network log %d submitted (user %d, %s/%s)", nl.ID, nl.UserID, nl.Location, nl.Provider)
	return nl, nil
}

// ListNetworkLogs returns logs in insertion order, scoped to userID when > 0
func (s *Service) ListNetworkLogs(userID int64, offset, limit int) ([]models.NetworkLog, error) {
	return s.store.ListNetworkLogs(userID, offset, limit)
}

// Digest logs a periodic storage summary; wired to the cron scheduler in main
func (s *Service) Digest() {
	users, feedback, logs, err := s.store.Counts()
	if err != nil {
		s.log.Errorf("Storage digest failed: %v", err)
		return
	}
	s.log.WithFields(logrus.Fields{
		"mode":         s.store.Mode(),
		"users":        users,
		"feedback":     feedback,
		"network_logs": logs,
	}).Info("Storage digest")
}
