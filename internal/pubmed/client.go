// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pubmed

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lxmgqq/Pediatric-Expert-Database/internal/crawl"
	"github.com/lxmgqq/Pediatric-Expert-Database/internal/httputil"
	"github.com/lxmgqq/Pediatric-Expert-Database/pkg/types"
)

const (
	// DefaultBaseURL is the base URL for NCBI E-utilities.
	DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

	// DefaultRateLimit is the request rate without an API key. With a key
	// NCBI allows 10 requests per second.
	DefaultRateLimit = 3.0

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultBatchSize caps PMIDs per term-fetch batch.
	DefaultBatchSize = 500

	toolName = "expert-db"
)

// Details is the per-record enrichment payload: the abstract, the article's
// own keyword list, and one affiliation entry per listed author.
type Details struct {
	Abstract string
	Keywords []string
	Authors  []types.AffiliationEntry
}

// Client talks to the E-utilities endpoints with token-bucket rate limiting
// and transient-failure retries.
type Client struct {
	cfg        types.PubMedConfig
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Compile-time check that Client satisfies the crawl listing contract.
var _ crawl.Source = (*Client)(nil)

// New creates a client. pageSize is the listing page size the crawl planner
// uses; it must match the planner's configuration.
func New(cfg types.PubMedConfig, pageSize int) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
		if cfg.APIKey != "" {
			cfg.RateLimit = 10.0
		}
	}
	if cfg.Burst == 0 {
		cfg.Burst = int(cfg.RateLimit)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if pageSize <= 0 {
		pageSize = 200
	}

	return &Client{
		cfg:        cfg,
		pageSize:   pageSize,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

// Count returns the total number of results for query within iv.
func (c *Client) Count(ctx context.Context, query string, iv crawl.Interval) (int, error) {
	params := c.searchParams(query, iv)
	params.Set("retmax", "0")

	var res eSearchResult
	if err := c.get(ctx, "esearch.fcgi", params, &res); err != nil {
		return 0, fmt.Errorf("esearch count: %w", err)
	}
	return res.Count, nil
}

// Page returns one 1-based page of listing records for query within iv.
func (c *Client) Page(ctx context.Context, query string, iv crawl.Interval, page int) ([]types.Record, error) {
	params := c.searchParams(query, iv)
	params.Set("retstart", strconv.Itoa((page-1)*c.pageSize))
	params.Set("retmax", strconv.Itoa(c.pageSize))

	var res eSearchResult
	if err := c.get(ctx, "esearch.fcgi", params, &res); err != nil {
		return nil, fmt.Errorf("esearch page %d: %w", page, err)
	}
	if len(res.IDList.IDs) == 0 {
		return nil, nil
	}

	set, err := c.fetchArticles(ctx, res.IDList.IDs)
	if err != nil {
		return nil, fmt.Errorf("efetch page %d: %w", page, err)
	}

	records := make([]types.Record, 0, len(set.Articles))
	for _, art := range set.Articles {
		records = append(records, listingRecord(art))
	}
	return records, nil
}

// Details fetches the enrichment payload for a single record.
func (c *Client) Details(ctx context.Context, pmid string) (Details, error) {
	set, err := c.fetchArticles(ctx, []string{pmid})
	if err != nil {
		return Details{}, fmt.Errorf("efetch %s: %w", pmid, err)
	}
	if len(set.Articles) == 0 {
		return Details{}, fmt.Errorf("efetch %s: article not found", pmid)
	}

	cit := set.Articles[0].MedlineCitation
	d := Details{Abstract: abstractText(cit.Article.Abstract)}
	if cit.KeywordList != nil {
		for _, kw := range cit.KeywordList.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				d.Keywords = append(d.Keywords, kw)
			}
		}
	}
	if cit.Article.AuthorList != nil {
		for _, a := range cit.Article.AuthorList.Authors {
			name := displayName(a)
			if name == "" {
				continue
			}
			d.Authors = append(d.Authors, types.AffiliationEntry{
				Author:      name,
				Affiliation: joinAffiliations(a.Affiliations),
				PMID:        pmid,
			})
		}
	}
	return d, nil
}

// FetchTerms returns the MeSH descriptor list for each PMID, batching
// requests at the configured cap with a pacing delay between batches. Major
// topics carry a trailing asterisk. PMIDs without headings map to an empty,
// non-nil list so callers can tell "fetched, none" from "not fetched".
func (c *Client) FetchTerms(ctx context.Context, pmids []string) (map[string][]string, error) {
	terms := make(map[string][]string, len(pmids))

	for start := 0; start < len(pmids); start += c.cfg.BatchSize {
		end := start + c.cfg.BatchSize
		if end > len(pmids) {
			end = len(pmids)
		}
		if start > 0 && c.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
				return terms, ctx.Err()
			case <-time.After(c.cfg.BatchDelay):
			}
		}

		set, err := c.fetchArticles(ctx, pmids[start:end])
		if err != nil {
			return terms, fmt.Errorf("efetch mesh batch at %d: %w", start, err)
		}
		for _, art := range set.Articles {
			cit := art.MedlineCitation
			list := []string{}
			if cit.MeshHeadingList != nil {
				for _, h := range cit.MeshHeadingList.Headings {
					term := strings.TrimSpace(h.Descriptor.Name)
					if term == "" {
						continue
					}
					if h.Descriptor.MajorTopicYN == "Y" {
						term += "*"
					}
					list = append(list, term)
				}
			}
			terms[cit.PMID] = list
		}
	}
	return terms, nil
}

// --- request plumbing ---

func (c *Client) searchParams(query string, iv crawl.Interval) url.Values {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", query)
	params.Set("datetype", "pdat")
	params.Set("mindate", iv.Start.Format("2006/01/02"))
	params.Set("maxdate", iv.End.Format("2006/01/02"))
	return params
}

func (c *Client) fetchArticles(ctx context.Context, pmids []string) (*articleSet, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")

	var set articleSet
	if err := c.get(ctx, "efetch.fcgi", params, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// get performs one rate-limited, retried GET and decodes the XML body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params.Set("tool", toolName)
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	if c.cfg.Email != "" {
		params.Set("email", c.cfg.Email)
	}

	u := fmt.Sprintf("%s/%s?%s", strings.TrimRight(c.cfg.BaseURL, "/"), endpoint, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if err := xml.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", endpoint, err)
	}
	return nil
}

// --- mapping ---

// listingRecord maps an article to the crawl-stage fields only; abstracts
// and term sets are left for the enrichment stages.
func listingRecord(art pubmedArticle) types.Record {
	cit := art.MedlineCitation
	return types.Record{
		PMID:    cit.PMID,
		Title:   strings.TrimSpace(cit.Article.ArticleTitle),
		Authors: authorString(cit.Article.AuthorList),
		Journal: journalName(cit.Article.Journal),
		Date:    citationDate(cit.Article.Journal.JournalIssue.PubDate),
	}
}

func journalName(j journal) string {
	if j.ISOAbbreviation != "" {
		return j.ISOAbbreviation
	}
	return j.Title
}

// citationDate renders the partial publication date as "2006 Jan" or "2006",
// the same partial form the listing pages show.
func citationDate(pd pubDate) string {
	if pd.Year != "" {
		if m := strings.TrimSpace(pd.Month); m != "" {
			return pd.Year + " " + m
		}
		return pd.Year
	}
	// MedlineDate is free-form, e.g. "2015 Jan-Feb" or "Winter 2016".
	fields := strings.Fields(pd.MedlineDate)
	for _, f := range fields {
		if len(f) == 4 {
			if _, err := strconv.Atoi(f); err == nil {
				return f
			}
		}
	}
	return ""
}

// authorString renders the docsum-style author line, "Smith J, Jones AB".
func authorString(list *authorList) string {
	if list == nil {
		return ""
	}
	parts := make([]string, 0, len(list.Authors))
	for _, a := range list.Authors {
		if name := shortName(a); name != "" {
			parts = append(parts, name)
		}
	}
	return strings.Join(parts, ", ")
}

func shortName(a authorData) string {
	if a.CollectiveName != "" {
		return strings.TrimSpace(a.CollectiveName)
	}
	if a.LastName == "" {
		return ""
	}
	if a.Initials != "" {
		return a.LastName + " " + a.Initials
	}
	return a.LastName
}

// displayName renders the full author name used as the identity key in the
// roster, "John A Smith".
func displayName(a authorData) string {
	if a.CollectiveName != "" {
		return strings.TrimSpace(a.CollectiveName)
	}
	if a.LastName == "" {
		return ""
	}
	if a.ForeName != "" {
		return a.ForeName + " " + a.LastName
	}
	return a.LastName
}

func joinAffiliations(infos []affiliationInfo) string {
	var parts []string
	for _, info := range infos {
		if aff := strings.TrimSpace(info.Affiliation); aff != "" {
			parts = append(parts, aff)
		}
	}
	return strings.Join(parts, "; ")
}

// abstractText flattens a structured abstract into one string, prefixing
// labelled sections the way the article page renders them.
func abstractText(a *abstract) string {
	if a == nil {
		return ""
	}
	var parts []string
	for _, s := range a.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
