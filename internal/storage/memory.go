package storage

import (
	"strings"
	"sync"
	"time"

	"github.com/qoe-boost/backend/internal/models"
)

// MemoryStore is the in-process fallback store used when the durable backend
// is unreachable at startup. Identifiers are assigned from 1 per collection and
// listing preserves insertion order. All data is lost on process restart.
//
// Each collection is guarded by its own mutex so that identifier assignment
// and uniqueness checks are atomic with the insert. Reads copy the slice under
// the lock and therefore see a consistent snapshot.
type MemoryStore struct {
	usersMu    sync.Mutex
	users      []models.User
	byUsername map[string]int // index into users
	byEmail    map[string]int
	nextUserID int64

	feedbackMu sync.Mutex
	feedback   []models.Feedback
	nextFbID   int64

	logsMu    sync.Mutex
	logs      []models.NetworkLog
	nextLogID int64
}

// NewMemoryStore initializes an empty fallback store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byUsername: make(map[string]int),
		byEmail:    make(map[string]int),
		nextUserID: 1,
		nextFbID:   1,
		nextLogID:  1,
	}
}

// Mode reports the volatile storage mode
func (s *MemoryStore) Mode() Mode {
	return ModeMemory
}

// Ping always succeeds for the in-process store
func (s *MemoryStore) Ping() error {
	return nil
}

// CreateUser inserts a user; the uniqueness check and the insert happen under
// the same lock so concurrent registrations cannot produce duplicates.
func (s *MemoryStore) CreateUser(user *models.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	if _, ok := s.byUsername[user.Username]; ok {
		return ErrConflict
	}
	if _, ok := s.byEmail[strings.ToLower(user.Email)]; ok {
		return ErrConflict
	}

	user.ID = s.nextUserID
	s.nextUserID++
	user.IsActive = true
	user.CreatedAt = time.Now().UTC()

	s.users = append(s.users, *user)
	s.byUsername[user.Username] = len(s.users) - 1
	s.byEmail[strings.ToLower(user.Email)] = len(s.users) - 1
	return nil
}

// FindUserByUsername retrieves a user by username (case-sensitive)
func (s *MemoryStore) FindUserByUsername(username string) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	idx, ok := s.byUsername[username]
	if !ok {
		return nil, ErrNotFound
	}
	u := s.users[idx]
	return &u, nil
}

// FindUserByEmail retrieves a user by email (case-insensitive)
func (s *MemoryStore) FindUserByEmail(email string) (*models.User, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	idx, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	u := s.users[idx]
	return &u, nil
}

func (s *MemoryStore) userExists(userID int64) bool {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	for i := range s.users {
		if s.users[i].ID == userID {
			return true
		}
	}
	return false
}

// CreateFeedback inserts a feedback record. The user-existence check is
// advisory: it runs outside the feedback lock and is skipped for anonymous
// records (user ID 0).
func (s *MemoryStore) CreateFeedback(fb *models.Feedback) error {
	if fb.UserID > 0 && !s.userExists(fb.UserID) {
		return ErrNotFound
	}

	s.feedbackMu.Lock()
	defer s.feedbackMu.Unlock()

	fb.ID = s.nextFbID
	s.nextFbID++
	fb.CreatedAt = time.Now().UTC()
	s.feedback = append(s.feedback, *fb)
	return nil
}

// ListFeedback returns feedback in insertion order, optionally scoped to a user
func (s *MemoryStore) ListFeedback(userID int64, offset, limit int) ([]models.Feedback, error) {
	s.feedbackMu.Lock()
	matched := make([]models.Feedback, 0, len(s.feedback))
	for _, fb := range s.feedback {
		if userID > 0 && fb.UserID != userID {
			continue
		}
		matched = append(matched, fb)
	}
	s.feedbackMu.Unlock()

	lo, hi := pageBounds(len(matched), offset, limit)
	return matched[lo:hi], nil
}

// CreateNetworkLog inserts a network measurement with an advisory user check
func (s *MemoryStore) CreateNetworkLog(nl *models.NetworkLog) error {
	if nl.UserID > 0 && !s.userExists(nl.UserID) {
		return ErrNotFound
	}

	s.logsMu.Lock()
	defer s.logsMu.Unlock()

	nl.ID = s.nextLogID
	s.nextLogID++
	nl.CreatedAt = time.Now().UTC()
	s.logs = append(s.logs, *nl)
	return nil
}

// ListNetworkLogs returns logs in insertion order, optionally scoped to a user
func (s *MemoryStore) ListNetworkLogs(userID int64, offset, limit int) ([]models.NetworkLog, error) {
	s.logsMu.Lock()
	matched := make([]models.NetworkLog, 0, len(s.logs))
	for _, nl := range s.logs {
		if userID > 0 && nl.UserID != userID {
			continue
		}
		matched = append(matched, nl)
	}
	s.logsMu.Unlock()

	lo, hi := pageBounds(len(matched), offset, limit)
	return matched[lo:hi], nil
}

// ListNetworkLogsByLocation returns all logs matching a location exactly
func (s *MemoryStore) ListNetworkLogsByLocation(location string) ([]models.NetworkLog, error) {
	s.logsMu.Lock()
	defer s.logsMu.Unlock()

	matched := []models.NetworkLog{}
	for _, nl := range s.logs {
		if nl.Location == location {
			matched = append(matched, nl)
		}
	}
	return matched, nil
}

// Counts reports record counts per collection
func (s *MemoryStore) Counts() (users, feedback, networkLogs int64, err error) {
	s.usersMu.Lock()
	users = int64(len(s.users))
	s.usersMu.Unlock()

	s.feedbackMu.Lock()
	feedback = int64(len(s.feedback))
	s.feedbackMu.Unlock()

	s.logsMu.Lock()
	networkLogs = int64(len(s.logs))
	s.logsMu.Unlock()
	return users, feedback, networkLogs, nil
}

// Close is a no-op for the in-process store
func (s *MemoryStore) Close() error {
	return nil
}

// pageBounds clamps offset/limit against n and returns a slice range. A
// non-positive limit yields an empty range, matching LIMIT 0 in the durable
// store.
func pageBounds(n, offset, limit int) (lo, hi int) {
	if offset < 0 {
		offset = 0
	}
	if offset > n {
		offset = n
	}
	if limit <= 0 {
		return offset, offset
	}
	end := offset + limit
	if end > n {
		end = n
	}
	return offset, end
}
