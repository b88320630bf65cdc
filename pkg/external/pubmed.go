package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/prime-cvd-server/internal/domain"
)

// PubMedClient fetches citation metadata from NCBI PubMed via E-utilities
type PubMedClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	email      string // Required by NCBI for large-scale queries
}

// NewPubMedClient creates a new PubMed API client
func NewPubMedClient(config domain.PubMedConfig) *PubMedClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if config.RateLimit == 0 {
		config.RateLimit = 3 // 3 requests per second (with API key)
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	return &PubMedClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		email:   config.Email,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// PubMedSummaryResponse represents the XML response from PubMed summary
type PubMedSummaryResponse struct {
	XMLName         xml.Name          `xml:"eSummaryResult"`
	DocumentSummary []DocumentSummary `xml:"DocSum"`
}

// DocumentSummary represents a single publication summary from PubMed
type DocumentSummary struct {
	UID   string `xml:"Id"`
	Items []Item `xml:"Item"`
}

// Item represents individual fields in the document summary
type Item struct {
	Name  string `xml:"Name,attr"`
	Type  string `xml:"Type,attr"`
	Value string `xml:",innerxml"`
}

// subItemPattern extracts the values of nested list items, e.g. the individual
// authors inside an AuthorList item.
var subItemPattern = regexp.MustCompile(`<Item[^>]*>([^<]*)</Item>`)

// GetCitation fetches the citation metadata for a single PMID.
func (p *PubMedClient) GetCitation(ctx context.Context, pmid string) (*domain.Citation, error) {
	pmid = strings.TrimSpace(pmid)
	if pmid == "" {
		return nil, fmt.Errorf("pmid cannot be empty")
	}

	summaries, err := p.fetchSummaries(ctx, []string{pmid})
	if err != nil {
		return nil, err
	}
	if len(summaries) == 0 {
		return nil, fmt.Errorf("PMID %s not found in PubMed", pmid)
	}

	return p.convertToCitation(summaries[0]), nil
}

// GetCitations fetches metadata for several PMIDs in one esummary call.
// PMIDs absent from the response are absent from the returned map.
func (p *PubMedClient) GetCitations(ctx context.Context, pmids []string) (map[string]*domain.Citation, error) {
	cleaned := make([]string, 0, len(pmids))
	for _, pmid := range pmids {
		if trimmed := strings.TrimSpace(pmid); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return make(map[string]*domain.Citation), nil
	}

	summaries, err := p.fetchSummaries(ctx, cleaned)
	if err != nil {
		return nil, err
	}

	citations := make(map[string]*domain.Citation, len(summaries))
	for _, summary := range summaries {
		citation := p.convertToCitation(summary)
		citations[citation.PMID] = citation
	}

	return citations, nil
}

// fetchSummaries calls the esummary endpoint for the given PMIDs
func (p *PubMedClient) fetchSummaries(ctx context.Context, pmids []string) ([]DocumentSummary, error) {
	// Rate limiting
	if err := p.rateLimit.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}

	summaryURL := fmt.Sprintf("%sesummary.fcgi", p.baseURL)

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}

	if p.apiKey != "" {
		params.Set("api_key", p.apiKey)
	}
	if p.email != "" {
		params.Set("email", p.email)
	}

	fullURL := fmt.Sprintf("%s?%s", summaryURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create summary request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("PubMed summary returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary response: %w", err)
	}

	var summaryResponse PubMedSummaryResponse
	if err := xml.Unmarshal(body, &summaryResponse); err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}

	return summaryResponse.DocumentSummary, nil
}

// convertToCitation converts a PubMed summary to a domain citation
func (p *PubMedClient) convertToCitation(summary DocumentSummary) *domain.Citation {
	citation := &domain.Citation{
		PMID: summary.UID,
		URL:  fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", summary.UID),
	}

	// Extract fields from items
	for _, item := range summary.Items {
		switch item.Name {
		case "Title":
			citation.Title = p.cleanXMLValue(item.Value)
		case "AuthorList":
			citation.Authors = p.parseAuthors(item.Value)
		case "Source":
			citation.Journal = p.cleanXMLValue(item.Value)
		case "PubDate":
			if year, err := p.extractYear(item.Value); err == nil {
				citation.Year = year
			}
		}
	}

	return citation
}

// parseAuthors flattens the nested AuthorList items into one display string
func (p *PubMedClient) parseAuthors(authorXML string) string {
	matches := subItemPattern.FindAllStringSubmatch(authorXML, -1)

	var authors []string
	for _, match := range matches {
		if trimmed := strings.TrimSpace(match[1]); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}

	if len(authors) == 0 {
		// Flat fallback for responses without nested items
		if trimmed := strings.TrimSpace(p.cleanXMLValue(authorXML)); trimmed != "" {
			return trimmed
		}
		return ""
	}

	return strings.Join(authors, ", ")
}

// extractYear extracts publication year from date string
func (p *PubMedClient) extractYear(dateStr string) (int, error) {
	dateStr = p.cleanXMLValue(dateStr)

	// Look for 4-digit year pattern
	for _, part := range strings.Fields(dateStr) {
		if len(part) == 4 {
			if year, err := strconv.Atoi(part); err == nil && year > 1900 && year <= time.Now().Year() {
				return year, nil
			}
		}
	}

	return 0, fmt.Errorf("could not extract year from: %s", dateStr)
}

// cleanXMLValue removes XML tags and cleans up text
func (p *PubMedClient) cleanXMLValue(value string) string {
	cleaners := []string{
		"<b>", "</b>",
		"<i>", "</i>",
		"<em>", "</em>",
		"<strong>", "</strong>",
	}

	result := value
	for _, cleaner := range cleaners {
		result = strings.ReplaceAll(result, cleaner, "")
	}

	return strings.TrimSpace(result)
}
