package external

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/trialmatch-engine/internal/domain"
)

// LiteratureClient handles interactions with NCBI PubMed via E-utilities.
type LiteratureClient struct {
	baseURL    string
	apiKey     string
	email      string // Required by NCBI for large-scale queries
	httpClient *http.Client
	rateLimit  time.Duration
}

// NewLiteratureClient creates a new PubMed E-utilities client.
func NewLiteratureClient(config domain.LiteratureConfig) *LiteratureClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/"
	}
	if config.RateLimit <= 0 {
		config.RateLimit = 3 // 3 requests per second without an API key
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &LiteratureClient{
		baseURL: config.BaseURL,
		apiKey:  config.APIKey,
		email:   config.Email,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: time.Second / time.Duration(config.RateLimit),
	}
}

// searchResponse represents the XML response from esearch.
type searchResponse struct {
	XMLName xml.Name `xml:"eSearchResult"`
	Count   int      `xml:"Count"`
	IDList  struct {
		IDs []string `xml:"Id"`
	} `xml:"IdList"`
}

// summaryResponse represents the XML response from esummary.
type summaryResponse struct {
	XMLName   xml.Name     `xml:"eSummaryResult"`
	Summaries []docSummary `xml:"DocSum"`
}

type docSummary struct {
	UID   string    `xml:"Id"`
	Items []docItem `xml:"Item"`
}

type docItem struct {
	Name  string    `xml:"Name,attr"`
	Type  string    `xml:"Type,attr"`
	Value string    `xml:",chardata"`
	Items []docItem `xml:"Item"`
}

// SearchArticles finds recent literature for a condition. Implements
// domain.LiteratureSearcher.
func (c *LiteratureClient) SearchArticles(ctx context.Context, condition string, limit int) ([]domain.Article, error) {
	if limit <= 0 {
		limit = 10
	}

	pmids, err := c.searchPMIDs(ctx, condition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search literature: %w", err)
	}
	if len(pmids) == 0 {
		return nil, nil
	}

	summaries, err := c.fetchSummaries(ctx, pmids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article summaries: %w", err)
	}

	return convertArticles(summaries), nil
}

func (c *LiteratureClient) searchPMIDs(ctx context.Context, condition string, limit int) ([]string, error) {
	// Cooperative pacing against NCBI's request budget.
	select {
	case <-time.After(c.rateLimit):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	query := fmt.Sprintf("%s AND (\"clinical trial\"[pt] OR \"eligibility\"[tiab])", condition)

	params := url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmode": {"xml"},
		"retmax":  {strconv.Itoa(limit)},
		"sort":    {"pub_date"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	if c.email != "" {
		params.Set("email", c.email)
	}

	body, err := c.get(ctx, "esearch.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return resp.IDList.IDs, nil
}

func (c *LiteratureClient) fetchSummaries(ctx context.Context, pmids []string) ([]docSummary, error) {
	select {
	case <-time.After(c.rateLimit):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(pmids, ",")},
		"retmode": {"xml"},
	}
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	body, err := c.get(ctx, "esummary.fcgi", params)
	if err != nil {
		return nil, err
	}

	var resp summaryResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	return resp.Summaries, nil
}

func (c *LiteratureClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	fullURL := fmt.Sprintf("%s%s?%s", c.baseURL, endpoint, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("literature service returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

func convertArticles(summaries []docSummary) []domain.Article {
	var articles []domain.Article
	for _, summary := range summaries {
		article := domain.Article{PMID: summary.UID}
		for _, item := range summary.Items {
			switch item.Name {
			case "Title":
				article.Title = strings.TrimSpace(item.Value)
			case "Source":
				article.Journal = strings.TrimSpace(item.Value)
			case "PubDate":
				article.Year = extractYear(item.Value)
			case "AuthorList":
				for _, author := range item.Items {
					if name := strings.TrimSpace(author.Value); name != "" {
						article.Authors = append(article.Authors, name)
					}
				}
			}
		}
		articles = append(articles, article)
	}
	return articles
}

// extractYear pulls a plausible 4-digit year out of a PubMed date string.
func extractYear(dateStr string) int {
	for _, part := range strings.Fields(dateStr) {
		if len(part) == 4 {
			if year, err := strconv.Atoi(part); err == nil && year > 1900 && year <= time.Now().Year() {
				return year
			}
		}
	}
	return 0
}
