package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/qoe-boost/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(username, email string) *models.User {
	return &models.User{Username: username, Email: email, PasswordHash: "x"}
}

func TestMemoryStoreCreateUser(t *testing.T) {
	s := NewMemoryStore()

	u := newUser("alice", "alice@example.com")
	require.NoError(t, s.CreateUser(u))
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, u.IsActive)
	assert.False(t, u.CreatedAt.IsZero())

	u2 := newUser("bob", "bob@example.com")
	require.NoError(t, s.CreateUser(u2))
	assert.Equal(t, int64(2), u2.ID)

	found, err := s.FindUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)

	found, err = s.FindUserByEmail("BOB@example.com")
	require.NoError(t, err)
	assert.Equal(t, u2.ID, found.ID)

	_, err = s.FindUserByUsername("Alice") // usernames are case-sensitive
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUserConflicts(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(newUser("alice", "alice@example.com")))

	err := s.CreateUser(newUser("alice", "other@example.com"))
	assert.ErrorIs(t, err, ErrConflict)

	err = s.CreateUser(newUser("carol", "alice@example.com"))
	assert.ErrorIs(t, err, ErrConflict)

	// Email uniqueness is case-insensitive in both storage modes.
	err = s.CreateUser(newUser("dave", "Alice@Example.com"))
	assert.ErrorIs(t, err, ErrConflict)
}

func TestMemoryStoreConcurrentRegistration(t *testing.T) {
	s := NewMemoryStore()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateUser(newUser("alice", fmt.Sprintf("alice%d@example.com", i)))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrConflict)
		}
	}
	assert.Equal(t, 1, succeeded)

	users, _, _, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
}

func TestMemoryStoreFeedbackReferentialCheck(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(newUser("alice", "alice@example.com")))

	fb := &models.Feedback{UserID: 1, Rating: 4, Category: "coverage", Content: "ok"}
	require.NoError(t, s.CreateFeedback(fb))
	assert.Equal(t, int64(1), fb.ID)

	// Unknown owner is rejected, anonymous (0) is accepted.
	err := s.CreateFeedback(&models.Feedback{UserID: 99, Rating: 1, Content: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.CreateFeedback(&models.Feedback{UserID: 0, Rating: 5, Content: "anon"}))
}

func TestMemoryStoreListFeedbackPagination(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(newUser("alice", "alice@example.com")))

	for i := 0; i < 10; i++ {
		require.NoError(t, s.CreateFeedback(&models.Feedback{
			UserID: 1, Rating: 3, Content: fmt.Sprintf("note %d", i),
		}))
	}

	page, err := s.ListFeedback(0, 0, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(1), page[0].ID)
	assert.Equal(t, int64(4), page[3].ID)

	page, err = s.ListFeedback(0, 4, 4)
	require.NoError(t, err)
	require.Len(t, page, 4)
	assert.Equal(t, int64(5), page[0].ID)

	// Last partial page, then a page past the end.
	page, err = s.ListFeedback(0, 8, 4)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	page, err = s.ListFeedback(0, 20, 4)
	require.NoError(t, err)
	assert.Empty(t, page)

	// A non-positive limit yields no records, matching LIMIT 0 in Postgres.
	page, err = s.ListFeedback(0, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStoreListScopedByUser(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(newUser("alice", "alice@example.com")))
	require.NoError(t, s.CreateUser(newUser("bob", "bob@example.com")))

	require.NoError(t, s.CreateNetworkLog(&models.NetworkLog{UserID: 1, Location: "riga", Provider: "a"}))
	require.NoError(t, s.CreateNetworkLog(&models.NetworkLog{UserID: 2, Location: "riga", Provider: "b"}))
	require.NoError(t, s.CreateNetworkLog(&models.NetworkLog{UserID: 1, Location: "oslo", Provider: "a"}))

	logs, err := s.ListNetworkLogs(1, 0, 10)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, nl := range logs {
		assert.Equal(t, int64(1), nl.UserID)
	}

	all, err := s.ListNetworkLogs(0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	riga, err := s.ListNetworkLogsByLocation("riga")
	require.NoError(t, err)
	require.Len(t, riga, 2)
	assert.Equal(t, int64(1), riga[0].ID) // insertion order preserved

	none, err := s.ListNetworkLogsByLocation("unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryStoreCounts(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(newUser("alice", "alice@example.com")))
	require.NoError(t, s.CreateFeedback(&models.Feedback{UserID: 1, Rating: 5, Content: "hi"}))
	require.NoError(t, s.CreateNetworkLog(&models.NetworkLog{UserID: 1, Location: "riga", Provider: "a"}))
	require.NoError(t, s.CreateNetworkLog(&models.NetworkLog{UserID: 1, Location: "riga", Provider: "a"}))

	users, feedback, logs, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), feedback)
	assert.Equal(t, int64(2), logs)
	assert.Equal(t, ModeMemory, s.Mode())
	assert.NoError(t, s.Ping())
}
