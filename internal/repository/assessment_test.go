package repository

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prime-cvd-server/internal/database"
	"github.com/prime-cvd-server/internal/domain"
)

// generateTestPassword creates a secure random password for test databases
func generateTestPassword() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a default test password if random generation fails
		return "test_fallback_password_123"
	}
	return "test_" + hex.EncodeToString(bytes)
}

func setupTestDB(t *testing.T) (*database.DB, func()) {
	ctx := context.Background()

	// Generate secure random password for test database
	testPassword := generateTestPassword()

	// Start PostgreSQL container
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("cvd_test"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword(testPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	// Get connection details
	host, err := pgContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	// Create database connection
	config := database.Config{
		Host:        host,
		Port:        port.Int(),
		Database:    "cvd_test",
		Username:    "testuser",
		Password:    testPassword,
		MaxConns:    10,
		MinConns:    2,
		MaxConnLife: time.Hour,
		MaxConnIdle: time.Minute * 30,
		SSLMode:     "disable",
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := database.NewConnection(ctx, config, logger)
	if err != nil {
		t.Fatalf("Failed to create database connection: %v", err)
	}

	// Run migrations
	databaseURL := "postgres://testuser:" + testPassword + "@" + host + ":" + port.Port() + "/cvd_test?sslmode=disable"
	migrationRunner, err := database.NewMigrationRunner(databaseURL, logger)
	if err != nil {
		t.Fatalf("Failed to create migration runner: %v", err)
	}

	if err := migrationRunner.Up(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		migrationRunner.Close()
		db.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	return db, cleanup
}

// testRecord builds a complete audit row with a populated result payload.
func testRecord(caseID string, tier domain.RiskTier, projected float64) *domain.AssessmentRecord {
	profile := &domain.PatientProfile{
		Age:              65,
		Sex:              domain.MALE,
		Diabetes:         true,
		Smoker:           true,
		SystolicBP:       140,
		LDL:              3.5,
		TotalCholesterol: 5.2,
		HDL:              1.1,
		EGFR:             90,
		CRP:              2.0,
	}
	plan := &domain.TherapyPlan{
		StatinIntensity: domain.STATIN_HIGH,
		Ezetimibe:       true,
	}
	result := &domain.AssessmentResult{
		ID:           uuid.New().String(),
		BaselineRisk: &domain.RiskResult{Percent: 24.9, Horizon: domain.TEN_YEAR, Variant: domain.LOG_CRP},
		HorizonRisk:  &domain.RiskResult{Percent: 24.9, Horizon: domain.TEN_YEAR, Variant: domain.LOG_CRP},
		Treatment: &domain.TreatmentEffectResult{
			TotalRRR:          0.41,
			EffectiveRRR:      0.3886,
			BaselineRisk:      24.9,
			ProjectedRisk:     projected,
			AbsoluteReduction: 24.9 - projected,
			ActiveTherapies:   []string{"statin_high", "ezetimibe"},
		},
		Tier:          tier,
		TierLabel:     "High Risk",
		Guidance:      []string{"High-intensity statin recommended"},
		EngineVersion: "1.0.0",
		CalculatedAt:  time.Now().UTC(),
	}

	req := &domain.AssessmentRequest{
		Profile: profile,
		Plan:    plan,
		Horizon: domain.TEN_YEAR,
		Variant: domain.LOG_CRP,
	}
	return domain.NewAssessmentRecord(caseID, req, result)
}

func TestAssessmentRepository_Create(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	record := testRecord("case-1", domain.HIGH_RISK, 15.2)

	ctx := context.Background()
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Failed to create assessment record: %v", err)
	}

	// Verify the record was created and round-trips
	retrieved, err := repo.GetByID(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve assessment record: %v", err)
	}

	if retrieved.ID != record.ID {
		t.Errorf("Expected ID %s, got %s", record.ID, retrieved.ID)
	}
	if retrieved.CaseID != "case-1" {
		t.Errorf("Expected case ID case-1, got %s", retrieved.CaseID)
	}
	if retrieved.Tier != domain.HIGH_RISK {
		t.Errorf("Expected tier %s, got %s", domain.HIGH_RISK, retrieved.Tier)
	}
	if retrieved.ModelVariant != domain.LOG_CRP {
		t.Errorf("Expected variant %s, got %s", domain.LOG_CRP, retrieved.ModelVariant)
	}
	if retrieved.BaselineRisk != 24.9 {
		t.Errorf("Expected baseline risk 24.9, got %f", retrieved.BaselineRisk)
	}
	if retrieved.ProjectedRisk == nil || *retrieved.ProjectedRisk != 15.2 {
		t.Errorf("Expected projected risk 15.2, got %v", retrieved.ProjectedRisk)
	}
	if retrieved.Profile == nil || retrieved.Profile.EGFR != 90 {
		t.Errorf("Expected profile EGFR 90 after JSON round-trip, got %+v", retrieved.Profile)
	}
	if retrieved.Plan == nil || retrieved.Plan.StatinIntensity != domain.STATIN_HIGH {
		t.Errorf("Expected high-intensity statin in plan, got %+v", retrieved.Plan)
	}
	if retrieved.Result == nil || retrieved.Result.Treatment == nil {
		t.Fatalf("Expected full result payload, got %+v", retrieved.Result)
	}
	if retrieved.Result.Treatment.EffectiveRRR != 0.3886 {
		t.Errorf("Expected effective RRR 0.3886, got %f", retrieved.Result.Treatment.EffectiveRRR)
	}
}

func TestAssessmentRepository_GetByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	_, err := repo.GetByID(context.Background(), uuid.New().String())
	if err == nil {
		t.Fatal("Expected error for missing assessment, got nil")
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestAssessmentRepository_ListRecent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	// Create records with staggered timestamps under two cases
	var ids []string
	for i := 0; i < 3; i++ {
		caseID := "case-a"
		if i == 2 {
			caseID = "case-b"
		}
		record := testRecord(caseID, domain.HIGH_RISK, 15.0+float64(i))
		record.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create assessment record %d: %v", i, err)
		}
		ids = append(ids, record.ID)
	}

	// Most recent first, limited
	records, err := repo.ListRecent(ctx, 2, 0)
	if err != nil {
		t.Fatalf("Failed to list recent assessments: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].ID != ids[2] {
		t.Errorf("Expected newest record %s first, got %s", ids[2], records[0].ID)
	}

	// Filtered by case
	caseRecords, err := repo.ListByCase(ctx, "case-a", 10, 0)
	if err != nil {
		t.Fatalf("Failed to list assessments by case: %v", err)
	}
	if len(caseRecords) != 2 {
		t.Errorf("Expected 2 records for case-a, got %d", len(caseRecords))
	}
	for _, record := range caseRecords {
		if record.CaseID != "case-a" {
			t.Errorf("Expected case ID case-a, got %s", record.CaseID)
		}
	}
}

func TestAssessmentRepository_CountByTier(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	repo := NewAssessmentRepository(db.Pool, logger)

	ctx := context.Background()
	tiers := []domain.RiskTier{domain.HIGH_RISK, domain.HIGH_RISK, domain.MODERATE_RISK}
	for i, tier := range tiers {
		record := testRecord("", tier, 12.0)
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("Failed to create assessment record %d: %v", i, err)
		}
	}

	counts, err := repo.CountByTier(ctx)
	if err != nil {
		t.Fatalf("Failed to count assessments by tier: %v", err)
	}

	if counts[domain.HIGH_RISK] != 2 {
		t.Errorf("Expected 2 high-risk assessments, got %d", counts[domain.HIGH_RISK])
	}
	if counts[domain.MODERATE_RISK] != 1 {
		t.Errorf("Expected 1 moderate-risk assessment, got %d", counts[domain.MODERATE_RISK])
	}
}
