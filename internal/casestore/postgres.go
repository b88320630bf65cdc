package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prime-cvd-server/internal/domain"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL case store.
// It expects the database and schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL case store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Save stores or updates a case snapshot.
func (s *PostgresStore) Save(ctx context.Context, c *domain.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now()

	// Use upsert (INSERT ... ON CONFLICT)
	query := `
		INSERT INTO cases (
			id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			age = EXCLUDED.age,
			sex = EXCLUDED.sex,
			diabetes = EXCLUDED.diabetes,
			smoker = EXCLUDED.smoker,
			cad = EXCLUDED.cad,
			stroke = EXCLUDED.stroke,
			pad = EXCLUDED.pad,
			ldl = EXCLUDED.ldl,
			systolic_bp = EXCLUDED.systolic_bp,
			hdl = EXCLUDED.hdl,
			total_cholesterol = EXCLUDED.total_cholesterol,
			egfr = EXCLUDED.egfr,
			crp = EXCLUDED.crp,
			hba1c = EXCLUDED.hba1c,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		c.ID,
		c.Name,
		c.Demographics.Age,
		string(c.Demographics.Sex),
		c.RiskFactors.Diabetes,
		c.RiskFactors.Smoker,
		c.RiskFactors.CAD,
		c.RiskFactors.Stroke,
		c.RiskFactors.PAD,
		c.Biomarkers.LDL,
		c.Biomarkers.SystolicBP,
		c.Biomarkers.HDL,
		c.Biomarkers.TotalCholesterol,
		c.Biomarkers.EGFR,
		c.Biomarkers.CRP,
		c.Biomarkers.HbA1c,
		now,
		now,
	).Scan(&c.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to save case: %w", err)
	}

	c.UpdatedAt = now
	return nil
}

// Get retrieves a case by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Case, error) {
	query := `
		SELECT id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		FROM cases
		WHERE id = $1
		LIMIT 1
	`

	c, err := scanCase(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return c, nil
}

// List returns saved cases with pagination, most recent first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	query := `
		SELECT id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		FROM cases
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	defer rows.Close()

	var result []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, c)
	}

	return result, rows.Err()
}

// Count returns the total number of saved cases.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cases: %w", err)
	}
	return count, nil
}

// Delete removes a case by ID.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete case: %w", err)
	}
	return nil
}

// ExportJSON exports all cases to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list cases: %w", err)
	}

	export := &CaseExport{
		Version:    "1.0",
		ExportedAt: time.Now(),
		Count:      len(all),
		Cases:      all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports cases from a JSON reader.
// Entries whose ID already exists in the store are skipped, not overwritten.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export CaseExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, c := range export.Cases {
		// Check if exists
		existing, err := s.Get(ctx, c.ID)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}

		if existing != nil {
			skipped++
			continue
		}

		// Import
		if err := s.Save(ctx, c); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
