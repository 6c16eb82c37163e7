// Package hostapi enriches newly adopted registry entries with metadata
// from the repository's hosting provider.
//
// Enrichment is strictly best-effort: a provider that is unknown,
// unreachable, or rate-limited simply answers "absent" and the adopt phase
// carries on without metadata.
package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Metadata is the optional information a hosting provider knows about a
// repository.
type Metadata struct {
	Description string
	Tags        []string
}

// Enricher looks up repository metadata on a hosting provider.
type Enricher interface {
	// Lookup returns metadata for host/owner/name, or ok=false when the
	// provider is unrecognized or the lookup failed for any reason.
	Lookup(ctx context.Context, host, owner, name string) (*Metadata, bool)
}

// NopEnricher always answers absent. Used when enrichment is disabled.
type NopEnricher struct{}

func (NopEnricher) Lookup(context.Context, string, string, string) (*Metadata, bool) {
	return nil, false
}

// GitHub is an Enricher backed by the GitHub REST API. It only answers for
// the github.com host; other hosts are absent.
type GitHub struct {
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string

	// Token is an optional bearer token for higher rate limits.
	Token string

	client *http.Client
}

// NewGitHub returns a GitHub enricher with a short request timeout; a slow
// metadata lookup must never stall an adopt phase.
func NewGitHub(token string) *GitHub {
	return &GitHub{
		BaseURL: "https://api.github.com",
		Token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Lookup fetches description and topics for a github.com repository.
func (g *GitHub) Lookup(ctx context.Context, host, owner, name string) (*Metadata, bool) {
	if host != "github.com" {
		return nil, false
	}

	url := fmt.Sprintf("%s/repos/%s/%s", g.BaseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false
	}

	var body struct {
		Description string   `json:"description"`
		Topics      []string `json:"topics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, false
	}

	return &Metadata{Description: body.Description, Tags: body.Topics}, true
}
