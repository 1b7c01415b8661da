package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/scamshield/scam-detector/internal/domain"
)

// postgresDSN returns TEST_DATABASE_URL when set, otherwise starts a throwaway container
func postgresDSN(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		return dsn
	}
	if testing.Short() {
		t.Skip("postgres container skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("scamshield"),
		postgres.WithUsername("scamshield"),
		postgres.WithPassword("scamshield"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("warning: failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

func storedAssessment(session domain.AnalysisSession, level domain.RiskLevel, score float64, at time.Time) *domain.RiskAssessment {
	return &domain.RiskAssessment{
		ID:           uuid.New(),
		SessionID:    session.ID,
		URL:          session.URL,
		RiskScore:    score,
		RiskLevel:    level,
		Explanation:  "Assessment for " + session.URL,
		Reasons:      []string{"lookalike"},
		Contributing: []domain.SignalName{domain.SignalWebsiteSecurity},
		Confidence:   0.6,
		AssessedAt:   at.UTC().Truncate(time.Millisecond),
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	ctx := context.Background()
	store, err := NewPostgresStore(postgresDSN(t))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.InitSchema(ctx))
	require.NoError(t, store.InitSchema(ctx), "schema creation is idempotent")

	session := domain.NewAnalysisSession("tab-it", domain.PageContext{URL: "http://hdfc8ank.com", Domain: "hdfc8ank.com", Protocol: "http:"})
	session = session.WithRiskLevel(domain.RiskHigh)

	now := time.Now()
	older := storedAssessment(session, domain.RiskHigh, 0.95, now.Add(-time.Minute))
	newer := storedAssessment(session, domain.RiskHigh, 0.91, now)
	medium := storedAssessment(session, domain.RiskMedium, 0.5, now.Add(time.Minute))
	incomplete := storedAssessment(session, domain.RiskLow, 0, now)
	incomplete.Incomplete = true
	incomplete.Reasons = []string{}
	incomplete.Contributing = []domain.SignalName{}

	for _, a := range []*domain.RiskAssessment{older, newer, medium, incomplete} {
		require.NoError(t, store.SaveAssessment(ctx, session, a))
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := store.GetAssessment(ctx, older.ID)
		require.NoError(t, err)
		assert.Equal(t, older.SessionID, got.SessionID)
		assert.Equal(t, older.Reasons, got.Reasons)
		assert.Equal(t, older.Contributing, got.Contributing)
		assert.Equal(t, older.Explanation, got.Explanation)
		assert.InDelta(t, 0.95, got.RiskScore, 1e-4)
		assert.WithinDuration(t, older.AssessedAt, got.AssessedAt, time.Millisecond)
	})

	t.Run("incomplete flag and empty lists", func(t *testing.T) {
		got, err := store.GetAssessment(ctx, incomplete.ID)
		require.NoError(t, err)
		assert.True(t, got.Incomplete)
		assert.Empty(t, got.Reasons)
		assert.NotNil(t, got.Contributing)
	})

	t.Run("recent high risk is newest first and filtered", func(t *testing.T) {
		recent, err := store.RecentHighRisk(ctx, 10)
		require.NoError(t, err)
		pos := make(map[uuid.UUID]int, len(recent))
		for i, a := range recent {
			assert.Equal(t, domain.RiskHigh, a.RiskLevel)
			pos[a.ID] = i
		}
		require.Contains(t, pos, newer.ID)
		require.Contains(t, pos, older.ID)
		assert.Less(t, pos[newer.ID], pos[older.ID])
		assert.NotContains(t, pos, medium.ID)

		limited, err := store.RecentHighRisk(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.GetAssessment(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// fakeRow hands fixed column values to Scan
type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("expected %d destinations, got %d", len(r.values), len(dest))
	}
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.values[i]))
	}
	return nil
}

func assessmentRow(url, explanation sql.NullString, reasons, contributing []byte, incomplete bool) fakeRow {
	return fakeRow{values: []any{
		uuid.MustParse("7b0c6c1e-6a3f-4b3c-9d0e-0f8a5f6b2c11"),
		uuid.MustParse("1d2e3f40-5a6b-4c7d-8e9f-0a1b2c3d4e5f"),
		url,
		0.87,
		domain.RiskHigh,
		explanation,
		reasons,
		contributing,
		0.6,
		true,
		incomplete,
		time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
}

func TestScanAssessment(t *testing.T) {
	tests := []struct {
		name             string
		row              fakeRow
		wantErr          bool
		wantURL          string
		wantExplanation  string
		wantReasons      []string
		wantContributing []domain.SignalName
	}{
		{
			name: "Full row",
			row: assessmentRow(
				sql.NullString{String: "http://hdfc8ank.com", Valid: true},
				sql.NullString{String: "High risk.", Valid: true},
				[]byte(`["Domain imitates hdfcbank.com"]`),
				[]byte(`["websiteSecurity","otpMisuse"]`),
				false,
			),
			wantURL:          "http://hdfc8ank.com",
			wantExplanation:  "High risk.",
			wantReasons:      []string{"Domain imitates hdfcbank.com"},
			wantContributing: []domain.SignalName{domain.SignalWebsiteSecurity, domain.SignalOTPMisuse},
		},
		{
			name:             "NULL columns become empty values",
			row:              assessmentRow(sql.NullString{}, sql.NullString{}, nil, nil, true),
			wantReasons:      []string{},
			wantContributing: []domain.SignalName{},
		},
		{
			name:    "Malformed reasons",
			row:     assessmentRow(sql.NullString{}, sql.NullString{}, []byte(`{"not":"a list"}`), nil, false),
			wantErr: true,
		},
		{
			name:    "Malformed contributing signals",
			row:     assessmentRow(sql.NullString{}, sql.NullString{}, nil, []byte(`[1,`), false),
			wantErr: true,
		},
		{
			name:    "Scan error",
			row:     fakeRow{err: sql.ErrNoRows},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scanAssessment(tt.row)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, got.URL)
			assert.Equal(t, tt.wantExplanation, got.Explanation)
			assert.Equal(t, tt.wantReasons, got.Reasons)
			assert.Equal(t, tt.wantContributing, got.Contributing)
			assert.Equal(t, domain.RiskHigh, got.RiskLevel)
			assert.InDelta(t, 0.87, got.RiskScore, 1e-9)
			assert.True(t, got.Blended)
		})
	}

	t.Run("no rows surfaces as sql.ErrNoRows", func(t *testing.T) {
		_, err := scanAssessment(fakeRow{err: sql.ErrNoRows})
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
