package storage

import (
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/qoe-boost/backend/internal/models"
)

// Postgres error codes for unique and foreign-key violations
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresStore provides durable persistence backed by Postgres
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore initializes a durable store over an open connection
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the record tables if they do not exist yet
func (s *PostgresStore) EnsureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			provider TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		// Emails are unique case-insensitively, matching the in-memory store.
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_lower_idx ON users (LOWER(email))`,
		`CREATE TABLE IF NOT EXISTS feedback (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			rating INT NOT NULL,
			category TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS network_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id),
			location TEXT NOT NULL,
			provider TEXT NOT NULL,
			latency_ms DOUBLE PRECISION NOT NULL,
			download_mbps DOUBLE PRECISION NOT NULL,
			upload_mbps DOUBLE PRECISION NOT NULL,
			network_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// Mode reports the durable storage mode
func (s *PostgresStore) Mode() Mode {
	return ModeDurable
}

// Ping verifies the database connection is still alive
func (s *PostgresStore) Ping() error {
	return s.db.Ping()
}

// CreateUser inserts a new user, mapping unique violations to ErrConflict
func (s *PostgresStore) CreateUser(user *models.User) error {
	query := `
		INSERT INTO users (username, email, password_hash, provider, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, is_active, created_at`
	err := s.db.QueryRow(query, user.Username, user.Email, user.PasswordHash, user.Provider).
		Scan(&user.ID, &user.IsActive, &user.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// FindUserByUsername retrieves a user by username
func (s *PostgresStore) FindUserByUsername(username string) (*models.User, error) {
	return s.findUser("username = $1", username)
}

// FindUserByEmail retrieves a user by email (case-insensitive)
func (s *PostgresStore) FindUserByEmail(email string) (*models.User, error) {
	return s.findUser("LOWER(email) = LOWER($1)", email)
}

func (s *PostgresStore) findUser(where string, arg interface{}) (*models.User, error) {
	user := &models.User{}
	query := `
		SELECT id, username, email, password_hash, provider, is_active, created_at
		FROM users
		WHERE ` + where
	err := s.db.QueryRow(query, arg).
		Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.Provider, &user.IsActive, &user.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// CreateFeedback inserts a feedback record owned by an existing user
func (s *PostgresStore) CreateFeedback(fb *models.Feedback) error {
	query := `
		INSERT INTO feedback (user_id, rating, category, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`
	err := s.db.QueryRow(query, fb.UserID, fb.Rating, fb.Category, fb.Content).
		Scan(&fb.ID, &fb.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListFeedback returns feedback in insertion order, optionally scoped to a user
func (s *PostgresStore) ListFeedback(userID int64, offset, limit int) ([]models.Feedback, error) {
	query := `
		SELECT id, user_id, rating, category, content, created_at
		FROM feedback`
	args := []interface{}{}
	if userID > 0 {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	items := []models.Feedback{}
	for rows.Next() {
		var fb models.Feedback
		if err := rows.Scan(&fb.ID, &fb.UserID, &fb.Rating, &fb.Category, &fb.Content, &fb.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		items = append(items, fb)
	}
	return items, rows.Err()
}

// CreateNetworkLog inserts a network measurement owned by an existing user
func (s *PostgresStore) CreateNetworkLog(nl *models.NetworkLog) error {
	query := `
		INSERT INTO network_logs (user_id, location, provider, latency_ms, download_mbps, upload_mbps, network_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	err := s.db.QueryRow(query, nl.UserID, nl.Location, nl.Provider, nl.LatencyMs, nl.DownloadMbps, nl.UploadMbps, nl.NetworkType).
		Scan(&nl.ID, &nl.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pgForeignKeyViolation {
			return ErrNotFound
		}
		return fmt.Errorf("failed to create network log: %w", err)
	}
	return nil
}

// ListNetworkLogs returns logs in insertion order, optionally scoped to a user
func (s *PostgresStore) ListNetworkLogs(userID int64, offset, limit int) ([]models.NetworkLog, error) {
	query := `
		SELECT id, user_id, location, provider, latency_ms, download_mbps, upload_mbps, network_type, created_at
		FROM network_logs`
	args := []interface{}{}
	if userID > 0 {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list network logs: %w", err)
	}
	defer rows.Close()
	return scanNetworkLogs(rows)
}

// ListNetworkLogsByLocation returns all logs matching a location exactly
func (s *PostgresStore) ListNetworkLogsByLocation(location string) ([]models.NetworkLog, error) {
	query := `
		SELECT id, user_id, location, provider, latency_ms, download_mbps, upload_mbps, network_type, created_at
		FROM network_logs
		WHERE location = $1
		ORDER BY id`
	rows, err := s.db.Query(query, location)
	if err != nil {
		return nil, fmt.Errorf("failed to list network logs: %w", err)
	}
	defer rows.Close()
	return scanNetworkLogs(rows)
}

func scanNetworkLogs(rows *sql.Rows) ([]models.NetworkLog, error) {
	items := []models.NetworkLog{}
	for rows.Next() {
		var nl models.NetworkLog
		if err := rows.Scan(&nl.ID, &nl.UserID, &nl.Location, &nl.Provider,
			&nl.LatencyMs, &nl.DownloadMbps, &nl.UploadMbps, &nl.NetworkType, &nl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan network log: %w", err)
		}
		items = append(items, nl)
	}
	return items, rows.Err()
}

// Counts reports record counts per collection
func (s *PostgresStore) Counts() (users, feedback, networkLogs int64, err error) {
	row := s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM feedback),
			(SELECT COUNT(*) FROM network_logs)`)
	if err = row.Scan(&users, &feedback, &networkLogs); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count records: %w", err)
	}
	return users, feedback, networkLogs, nil
}

// Close releases the underlying connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
