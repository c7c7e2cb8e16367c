package storage

import (
	"database/sql"
	"errors"

	"github.com/qoe-boost/backend/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConflict indicates a uniqueness violation (duplicate username or email)
	ErrConflict = errors.New("record already exists")
	// ErrNotFound indicates a referenced record does not exist
	ErrNotFound = errors.New("record not found")
)

// Mode identifies which backing store the gateway is running on.
// It is decided exactly once at startup and never changes afterwards.
type Mode string

const (
	// ModeDurable means records are persisted in Postgres
	ModeDurable Mode = "durable"
	// ModeMemory means records live in a volatile in-process store
	ModeMemory Mode = "memory"
)

// Store provides record-oriented persistence for users, feedback and network logs.
// Both backing implementations behave identically from the caller's perspective,
// except that the in-memory store loses data on restart and performs only
// advisory referential checks.
type Store interface {
	Mode() Mode
	Ping() error

	// CreateUser enforces uniqueness of the username (case-sensitive) and
	// the email (case-insensitive) atomically with the insert.
	CreateUser(user *models.User) error
	FindUserByUsername(username string) (*models.User, error)
	// FindUserByEmail matches the email case-insensitively.
	FindUserByEmail(email string) (*models.User, error)

	CreateFeedback(fb *models.Feedback) error
	// ListFeedback returns feedback in insertion order. A userID of 0 lists
	// records for all users. A limit of 0 or less yields no records.
	ListFeedback(userID int64, offset, limit int) ([]models.Feedback, error)

	CreateNetworkLog(nl *models.NetworkLog) error
	ListNetworkLogs(userID int64, offset, limit int) ([]models.NetworkLog, error)
	// ListNetworkLogsByLocation returns all logs whose location matches exactly.
	ListNetworkLogsByLocation(location string) ([]models.NetworkLog, error)

	// Counts reports the number of records per collection.
	Counts() (users, feedback, networkLogs int64, err error)

	Close() error
}

// Open probes the durable backend once and returns the store the process will
// use for its whole lifetime. An unreachable database is not an error: the
// gateway degrades to the in-memory store and logs the switch.
func Open(dsn string, log *logrus.Logger) Store {
	if dsn == "" {
		log.Warn("No database DSN configured, using in-memory store")
		return NewMemoryStore()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Warnf("Failed to open database, using in-memory store: %v", err)
		return NewMemoryStore()
	}
	if err := db.Ping(); err != nil {
		db.Close()
		log.Warnf("Database unreachable, using in-memory store: %v", err)
		return NewMemoryStore()
	}

	pg := NewPostgresStore(db)
	if err := pg.EnsureSchema(); err != nil {
		db.Close()
		log.Warnf("Failed to ensure schema, using in-memory store: %v", err)
		return NewMemoryStore()
	}

	log.Info("Connected to durable store")
	return pg
}
