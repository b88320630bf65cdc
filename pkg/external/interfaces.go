// Package external contains the clients for the literature services the
// engine cites, with caching and failure isolation around them.
package external

import (
	"context"

	"github.com/prime-cvd-server/internal/domain"
)

// PubMedAPI is the citation metadata source. Implementations must tolerate
// concurrent callers.
type PubMedAPI interface {
	// GetCitation fetches the citation metadata for a single PMID.
	GetCitation(ctx context.Context, pmid string) (*domain.Citation, error)

	// GetCitations fetches metadata for several PMIDs in one call. PMIDs the
	// service does not know are absent from the returned map.
	GetCitations(ctx context.Context, pmids []string) (map[string]*domain.Citation, error)
}

// Compile-time interface checks.
var (
	_ PubMedAPI = (*PubMedClient)(nil)
	_ PubMedAPI = (*ResilientPubMedClient)(nil)
)
