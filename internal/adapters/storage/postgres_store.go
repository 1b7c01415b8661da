package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.AssessmentStore = (*PostgresStore)(nil)

// ErrNotFound is returned when a stored assessment does not exist
var ErrNotFound = ports.ErrNotFound

// PostgresStore implements ports.AssessmentStore for PostgreSQL
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL storage instance
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Writes are one row per page load; a small pool is plenty
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates database tables if they don't exist
// In production, use proper migration tools
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	schema := `
	-- ============================================================================
	-- ANALYSIS_SESSIONS TABLE
	-- ============================================================================
	-- One row per page load. signals holds the final SignalResult map as JSONB:
	-- results are always read with their session and are detector specific.
	CREATE TABLE IF NOT EXISTS analysis_sessions (
		id UUID PRIMARY KEY,
		tab_id VARCHAR(64) NOT NULL,
		url TEXT NOT NULL,
		domain VARCHAR(253),
		protocol VARCHAR(10),
		signals JSONB,
		risk_level VARCHAR(10) NOT NULL,
		started_at TIMESTAMP NOT NULL
	);

	-- ============================================================================
	-- RISK_ASSESSMENTS TABLE
	-- ============================================================================
	-- Assessments are never updated: a re-analysis creates a new session and a new row.
	CREATE TABLE IF NOT EXISTS risk_assessments (
		id UUID PRIMARY KEY,
		session_id UUID REFERENCES analysis_sessions(id) ON DELETE CASCADE,
		url TEXT,
		risk_score DECIMAL(5,4) NOT NULL,
		risk_level VARCHAR(10) NOT NULL,
		explanation TEXT,
		reasons JSONB,
		contributing JSONB,
		confidence DECIMAL(3,2),
		remote_blended BOOLEAN DEFAULT FALSE,
		incomplete BOOLEAN DEFAULT FALSE,
		assessed_at TIMESTAMP DEFAULT NOW()
	);

	-- Backs RecentHighRisk
	CREATE INDEX IF NOT EXISTS idx_assessments_risk ON risk_assessments(risk_level, assessed_at DESC);
	-- FK lookup
	CREATE INDEX IF NOT EXISTS idx_assessments_session ON risk_assessments(session_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveAssessment stores the session and its assessment in one transaction
func (s *PostgresStore) SaveAssessment(ctx context.Context, session domain.AnalysisSession, assessment *domain.RiskAssessment) error {
	signalsJSON, err := json.Marshal(session.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}
	reasonsJSON, err := json.Marshal(assessment.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}
	contributingJSON, err := json.Marshal(assessment.Contributing)
	if err != nil {
		return fmt.Errorf("failed to marshal contributing signals: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sessionQuery := `
		INSERT INTO analysis_sessions (id, tab_id, url, domain, protocol, signals, risk_level, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET signals = EXCLUDED.signals, risk_level = EXCLUDED.risk_level
	`
	_, err = tx.ExecContext(ctx, sessionQuery,
		session.ID, session.TabID, session.URL, session.Domain, session.Protocol,
		signalsJSON, session.RiskLevel, session.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	assessmentQuery := `
		INSERT INTO risk_assessments (id, session_id, url, risk_score, risk_level, explanation,
			reasons, contributing, confidence, remote_blended, incomplete, assessed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, assessmentQuery,
		assessment.ID, session.ID, assessment.URL, assessment.RiskScore, assessment.RiskLevel,
		assessment.Explanation, reasonsJSON, contributingJSON, assessment.Confidence,
		assessment.Blended, assessment.Incomplete, assessment.AssessedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store assessment: %w", err)
	}

	return tx.Commit()
}

const assessmentColumns = `id, session_id, url, risk_score, risk_level, explanation,
	reasons, contributing, confidence, remote_blended, incomplete, assessed_at`

// GetAssessment retrieves an assessment by ID
func (s *PostgresStore) GetAssessment(ctx context.Context, id uuid.UUID) (*domain.RiskAssessment, error) {
	query := `SELECT ` + assessmentColumns + ` FROM risk_assessments WHERE id = $1`

	a, err := scanAssessment(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RecentHighRisk retrieves the latest high-risk assessments
func (s *PostgresStore) RecentHighRisk(ctx context.Context, limit int) ([]domain.RiskAssessment, error) {
	query := `
		SELECT ` + assessmentColumns + `
		FROM risk_assessments
		WHERE risk_level = $1
		ORDER BY assessed_at DESC
		LIMIT $2
	`
	rows, err := s.db.QueryContext(ctx, query, domain.RiskHigh, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assessments := make([]domain.RiskAssessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		assessments = append(assessments, *a)
	}

	return assessments, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (*domain.RiskAssessment, error) {
	var a domain.RiskAssessment
	var url, explanation sql.NullString
	var reasonsJSON, contributingJSON []byte

	err := row.Scan(
		&a.ID, &a.SessionID, &url, &a.RiskScore, &a.RiskLevel, &explanation,
		&reasonsJSON, &contributingJSON, &a.Confidence, &a.Blended, &a.Incomplete, &a.AssessedAt,
	)
	if err != nil {
		return nil, err
	}
	a.URL = url.String
	a.Explanation = explanation.String

	a.Reasons = make([]string, 0)
	if len(reasonsJSON) > 0 {
		if err := json.Unmarshal(reasonsJSON, &a.Reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
		}
	}
	a.Contributing = make([]domain.SignalName, 0)
	if len(contributingJSON) > 0 {
		if err := json.Unmarshal(contributingJSON, &a.Contributing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal contributing signals: %w", err)
		}
	}
	return &a, nil
}
