// Package listing implements the paginated mod-listing scraper: a
// GraphQL query against the upstream catalog returning one page of mod
// summaries plus an end-of-list signal.
package listing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PageSize is the fixed page size for listing requests.
const PageSize = 20

const (
	defaultEndpoint = "https://api-router.nexusmods.com/graphql"
	userAgent       = "mod-mapper/0.1"
)

const modsListingQuery = `
query ModsListing($count: Int!, $offset: Int!, $gameDomainName: String!, $includeTranslations: Boolean!, $updatedAtSort: String!) {
  mods(
    count: $count
    offset: $offset
    filter: { gameDomainName: $gameDomainName }
    postFilter: { tag: { value: "translation", op: $includeTranslations } }
    sort: { updatedAt: { direction: $updatedAtSort } }
  ) {
    totalCount
    nodes {
      modId
      name
      summary
      createdAt
      updatedAt
      modCategory { categoryId name }
      uploader { memberId name }
      thumbnailUrl
    }
  }
}`

// Mod is one listed mod summary.
type Mod struct {
	NexusModID   int
	Name         string
	AuthorName   string
	AuthorID     int
	CategoryName *string
	CategoryID   *int
	Description  *string
	ThumbnailURL *string
	FirstUpload  time.Time
	LastUpdate   time.Time
}

// Scraper fetches paginated mod listings via the GraphQL listing endpoint.
type Scraper struct {
	httpClient *http.Client
	endpoint   string
}

// Config configures a Scraper.
type Config struct {
	HTTPClient *http.Client
	Endpoint   string // overridable for tests
}

// New builds a Scraper.
func New(cfg Config) *Scraper {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	return &Scraper{httpClient: httpClient, endpoint: endpoint}
}

type graphQLRequest struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

type graphQLResponse struct {
	Data   *modsListingData `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type modsListingData struct {
	Mods struct {
		TotalCount int `json:"totalCount"`
		Nodes      []struct {
			ModID        int     `json:"modId"`
			Name         string  `json:"name"`
			Summary      *string `json:"summary"`
			CreatedAt    string  `json:"createdAt"`
			UpdatedAt    string  `json:"updatedAt"`
			ModCategory  *struct {
				CategoryID int    `json:"categoryId"`
				Name       string `json:"name"`
			} `json:"modCategory"`
			Uploader struct {
				MemberID int    `json:"memberId"`
				Name     string `json:"name"`
			} `json:"uploader"`
			ThumbnailURL *string `json:"thumbnailUrl"`
		} `json:"nodes"`
	} `json:"mods"`
}

// ListPage fetches one page of mods for game, honoring includeTranslations
// as a post-filter. Returns the page of mods and whether a further page
// exists, derived from totalCount vs offset+len.
func (s *Scraper) ListPage(ctx context.Context, game string, page int, includeTranslations bool) ([]Mod, bool, error) {
	offset := (page - 1) * PageSize

	body := graphQLRequest{
		Query:         modsListingQuery,
		OperationName: "ModsListing",
		Variables: map[string]interface{}{
			"count":               PageSize,
			"offset":              offset,
			"gameDomainName":      game,
			"includeTranslations": includeTranslations,
			"updatedAtSort":       "ASC",
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, fmt.Errorf("listing: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("listing: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("listing: request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("listing: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("listing: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(raw, &gqlResp); err != nil {
		return nil, false, fmt.Errorf("listing: decode response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return nil, false, fmt.Errorf("listing: graphql error: %s", gqlResp.Errors[0].Message)
	}
	if gqlResp.Data == nil {
		return nil, false, fmt.Errorf("listing: empty response data")
	}

	nodes := gqlResp.Data.Mods.Nodes
	mods := make([]Mod, 0, len(nodes))
	for _, n := range nodes {
		created, err := time.Parse(time.RFC3339, n.CreatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("listing: parse createdAt %q: %w", n.CreatedAt, err)
		}
		updated, err := time.Parse(time.RFC3339, n.UpdatedAt)
		if err != nil {
			return nil, false, fmt.Errorf("listing: parse updatedAt %q: %w", n.UpdatedAt, err)
		}

		m := Mod{
			NexusModID:   n.ModID,
			Name:         n.Name,
			Description:  n.Summary,
			AuthorName:   n.Uploader.Name,
			AuthorID:     n.Uploader.MemberID,
			ThumbnailURL: n.ThumbnailURL,
			FirstUpload:  created,
			LastUpdate:   updated,
		}
		if n.ModCategory != nil {
			m.CategoryName = &n.ModCategory.Name
			m.CategoryID = &n.ModCategory.CategoryID
		}
		mods = append(mods, m)
	}

	hasNextPage := offset+len(nodes) < gqlResp.Data.Mods.TotalCount
	return mods, hasNextPage, nil
}
