package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prime-cvd-server/internal/domain"
	"github.com/prime-cvd-server/pkg/external"
)

// MockPubMedAPI mocks the PubMed client
type MockPubMedAPI struct {
	mock.Mock
}

var _ external.PubMedAPI = (*MockPubMedAPI)(nil)

func (m *MockPubMedAPI) GetCitation(ctx context.Context, pmid string) (*domain.Citation, error) {
	args := m.Called(ctx, pmid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Citation), args.Error(1)
}

func (m *MockPubMedAPI) GetCitations(ctx context.Context, pmids []string) (map[string]*domain.Citation, error) {
	args := m.Called(ctx, pmids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*domain.Citation), args.Error(1)
}

func createTestCitation(pmid string) *domain.Citation {
	return &domain.Citation{
		PMID:    pmid,
		Title:   "Efficacy and safety of more intensive lowering of LDL cholesterol",
		Authors: "Baigent C, Blackwell L",
		Journal: "Lancet",
		Year:    2010,
		URL:     "https://pubmed.ncbi.nlm.nih.gov/" + pmid + "/",
	}
}

func createTestCitationService(t *testing.T, pubmed external.PubMedAPI) *CitationService {
	t.Helper()

	svc, err := NewCitationService(CitationServiceConfig{}, pubmed, nil, createTestLogger())
	require.NoError(t, err)
	return svc
}

func TestCitationService_Resolve(t *testing.T) {
	t.Run("Repeated_Lookup_Hits_Memory_Cache", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "21067804").Return(createTestCitation("21067804"), nil)

		svc := createTestCitationService(t, mockPubMed)

		first, err := svc.Resolve(context.Background(), "21067804")
		require.NoError(t, err)
		second, err := svc.Resolve(context.Background(), "21067804")
		require.NoError(t, err)

		assert.Same(t, first, second)
		mockPubMed.AssertNumberOfCalls(t, "GetCitation", 1)

		stats := svc.GetCacheStats()
		assert.Equal(t, int64(2), stats.TotalRequests)
		assert.Equal(t, int64(1), stats.MemoryHits)
		assert.Equal(t, int64(1), stats.MemoryMisses)
		assert.Equal(t, int64(1), stats.ExternalCalls)
		assert.Equal(t, int64(0), stats.ErrorCount)
	})

	t.Run("PMID_Prefix_And_Whitespace_Normalized", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "25773607").Return(createTestCitation("25773607"), nil)

		svc := createTestCitationService(t, mockPubMed)

		citation, err := svc.Resolve(context.Background(), "  pmid: 25773607 ")

		require.NoError(t, err)
		assert.Equal(t, "25773607", citation.PMID)
		mockPubMed.AssertExpectations(t)
	})

	t.Run("Empty_PMID", func(t *testing.T) {
		svc := createTestCitationService(t, &MockPubMedAPI{})

		_, err := svc.Resolve(context.Background(), "   ")

		assert.ErrorIs(t, err, domain.ErrMissingInput)
		assert.Equal(t, int64(1), svc.GetCacheStats().ErrorCount)
	})

	t.Run("No_Citation_Source_Configured", func(t *testing.T) {
		svc := createTestCitationService(t, nil)

		_, err := svc.Resolve(context.Background(), "21067804")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no citation source configured")
	})

	t.Run("External_Failure_Is_Wrapped", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "21067804").
			Return(nil, fmt.Errorf("PubMed summary returned status 502"))

		svc := createTestCitationService(t, mockPubMed)

		_, err := svc.Resolve(context.Background(), "21067804")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "21067804")
		assert.Contains(t, err.Error(), "status 502")
		assert.Equal(t, int64(1), svc.GetCacheStats().ErrorCount)
	})

	t.Run("Failures_Are_Not_Cached", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "21067804").
			Return(nil, fmt.Errorf("transient failure")).Once()
		mockPubMed.On("GetCitation", mock.Anything, "21067804").
			Return(createTestCitation("21067804"), nil).Once()

		svc := createTestCitationService(t, mockPubMed)

		_, err := svc.Resolve(context.Background(), "21067804")
		require.Error(t, err)

		citation, err := svc.Resolve(context.Background(), "21067804")
		require.NoError(t, err)
		assert.Equal(t, "Lancet", citation.Journal)
		mockPubMed.AssertNumberOfCalls(t, "GetCitation", 2)
	})
}

func TestCitationService_ResolveBatch(t *testing.T) {
	t.Run("Partial_Success_Returns_What_Resolved", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "21067804").Return(createTestCitation("21067804"), nil)
		mockPubMed.On("GetCitation", mock.Anything, "25773607").
			Return(nil, fmt.Errorf("PMID 25773607 not found in PubMed"))

		svc := createTestCitationService(t, mockPubMed)

		results, err := svc.ResolveBatch(context.Background(), []string{"21067804", "25773607"})

		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, "21067804", results["21067804"].PMID)
		assert.NotContains(t, results, "25773607")
	})

	t.Run("Empty_Batch", func(t *testing.T) {
		svc := createTestCitationService(t, &MockPubMedAPI{})

		results, err := svc.ResolveBatch(context.Background(), nil)

		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Batch_Reuses_Cache_Across_Calls", func(t *testing.T) {
		mockPubMed := &MockPubMedAPI{}
		mockPubMed.On("GetCitation", mock.Anything, "21067804").Return(createTestCitation("21067804"), nil)

		svc := createTestCitationService(t, mockPubMed)

		_, err := svc.ResolveBatch(context.Background(), []string{"21067804"})
		require.NoError(t, err)
		_, err = svc.ResolveBatch(context.Background(), []string{"21067804"})
		require.NoError(t, err)

		mockPubMed.AssertNumberOfCalls(t, "GetCitation", 1)
	})
}

func TestCitationService_InvalidateCache(t *testing.T) {
	mockPubMed := &MockPubMedAPI{}
	mockPubMed.On("GetCitation", mock.Anything, "21067804").Return(createTestCitation("21067804"), nil)

	svc := createTestCitationService(t, mockPubMed)

	_, err := svc.Resolve(context.Background(), "21067804")
	require.NoError(t, err)

	err = svc.InvalidateCache(context.Background(), "21067804")
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "21067804")
	require.NoError(t, err)

	mockPubMed.AssertNumberOfCalls(t, "GetCitation", 2)
}

func TestCitationService_ImplementsCitationResolver(t *testing.T) {
	var _ domain.CitationResolver = (*CitationService)(nil)
}
