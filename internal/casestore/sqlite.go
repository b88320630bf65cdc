package casestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/prime-cvd-server/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite case store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	// Create schema
	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanCase scans a row into a Case struct.
func scanCase(s scanner) (*domain.Case, error) {
	c := &domain.Case{}
	var sex string

	err := s.Scan(
		&c.ID, &c.Name, &c.Demographics.Age, &sex,
		&c.RiskFactors.Diabetes, &c.RiskFactors.Smoker,
		&c.RiskFactors.CAD, &c.RiskFactors.Stroke, &c.RiskFactors.PAD,
		&c.Biomarkers.LDL, &c.Biomarkers.SystolicBP, &c.Biomarkers.HDL,
		&c.Biomarkers.TotalCholesterol, &c.Biomarkers.EGFR,
		&c.Biomarkers.CRP, &c.Biomarkers.HbA1c,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Demographics.Sex = domain.Sex(sex)
	return c, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS cases (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		age REAL NOT NULL,
		sex TEXT NOT NULL,
		diabetes INTEGER NOT NULL DEFAULT 0,
		smoker INTEGER NOT NULL DEFAULT 0,
		cad INTEGER NOT NULL DEFAULT 0,
		stroke INTEGER NOT NULL DEFAULT 0,
		pad INTEGER NOT NULL DEFAULT 0,
		ldl REAL NOT NULL DEFAULT 0,
		systolic_bp REAL NOT NULL DEFAULT 0,
		hdl REAL NOT NULL DEFAULT 0,
		total_cholesterol REAL NOT NULL DEFAULT 0,
		egfr REAL NOT NULL DEFAULT 0,
		crp REAL NOT NULL DEFAULT 0,
		hba1c REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_cases_name ON cases(name);
	CREATE INDEX IF NOT EXISTS idx_cases_created_at ON cases(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates a case snapshot.
func (s *SQLiteStore) Save(ctx context.Context, c *domain.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}

	now := time.Now()

	// Check if exists
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT created_at FROM cases WHERE id = ?", c.ID,
	).Scan(&createdAt)

	if err == nil {
		// Update existing
		c.CreatedAt = createdAt
		c.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE cases SET
				name = ?,
				age = ?,
				sex = ?,
				diabetes = ?,
				smoker = ?,
				cad = ?,
				stroke = ?,
				pad = ?,
				ldl = ?,
				systolic_bp = ?,
				hdl = ?,
				total_cholesterol = ?,
				egfr = ?,
				crp = ?,
				hba1c = ?,
				updated_at = ?
			WHERE id = ?
		`,
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
			c.ID,
		)
		return err
	}

	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	// Insert new
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases (
			id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
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
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	return nil
}

// Get retrieves a case by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*domain.Case, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		FROM cases
		WHERE id = ?
		LIMIT 1
	`, id)

	c, err := scanCase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return c, nil
}

// List returns saved cases with pagination, most recent first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*domain.Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, age, sex,
			diabetes, smoker, cad, stroke, pad,
			ldl, systolic_bp, hdl, total_cholesterol, egfr, crp, hba1c,
			created_at, updated_at
		FROM cases
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cases").Scan(&count)
	return count, err
}

// Delete removes a case by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM cases WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports all cases to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
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
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
