// Copyright (c) 2025 loonghao
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const githubAPIURL = "https://api.github.com"

// VersionClient fetches remote version indexes. One client is shared by all
// declarative providers; GitHub auth is picked up from GITHUB_TOKEN to avoid
// rate limiting.
type VersionClient struct {
	client  *retryablehttp.Client
	baseURL string
	token   string
}

// NewVersionClient builds a client with retrying transport. Retries cover
// connection failures and HTTP 5xx; 4xx surface immediately.
func NewVersionClient() *VersionClient {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.RetryMax = 3
	rc.Logger = nil

	return &VersionClient{
		client:  rc,
		baseURL: githubAPIURL,
		token:   os.Getenv("GITHUB_TOKEN"),
	}
}

// get performs one GET and returns the body on 200.
func (c *VersionClient) get(ctx context.Context, url string, header http.Header) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// indexEntry is one record of a dist-style index.json (the Node.js shape:
// version, date, lts flag-or-name, optional prerelease marker).
type indexEntry struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	LTS     any    `json:"lts"`
}

// trimVersion strips the vendor tag prefix, then any remaining "v".
func trimVersion(raw, prefix string) string {
	if prefix != "" {
		raw = strings.TrimPrefix(raw, prefix)
	}
	return strings.TrimPrefix(raw, "v")
}

// FetchIndexJSON fetches a vendor dist index and normalizes it. Versions
// keep their numeric form; vendor tag prefixes are stripped.
func (c *VersionClient) FetchIndexJSON(ctx context.Context, src VersionSource) ([]VersionInfo, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("index-json source requires a url")
	}

	body, err := c.get(ctx, src.URL, nil)
	if err != nil {
		return nil, err
	}

	var entries []indexEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("parse index %s: %w", src.URL, err)
	}

	out := make([]VersionInfo, 0, len(entries))
	for _, e := range entries {
		version := trimVersion(e.Version, src.TrimPrefix)
		info := VersionInfo{
			Version:    version,
			Prerelease: strings.ContainsAny(version, "-"),
		}
		switch lts := e.LTS.(type) {
		case bool:
			info.LTS = lts
		case string:
			info.LTS = lts != ""
			info.Metadata = map[string]string{"lts_name": lts}
		}
		if e.Date != "" {
			if t, err := time.Parse("2006-01-02", e.Date); err == nil {
				info.ReleaseDate = t
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// githubRelease is the subset of the GitHub release payload we read.
type githubRelease struct {
	TagName     string `json:"tag_name"`
	Draft       bool   `json:"draft"`
	Prerelease  bool   `json:"prerelease"`
	PublishedAt string `json:"published_at"`
}

// FetchGitHubReleases fetches all releases for an "owner/repo" slug. Drafts
// are dropped; prereleases are kept and flagged so the resolver can filter.
func (c *VersionClient) FetchGitHubReleases(ctx context.Context, src VersionSource) ([]VersionInfo, error) {
	repo := src.Repo
	parts := strings.Split(repo, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("github-releases source requires an owner/repo slug, got %q", repo)
	}

	url := fmt.Sprintf("%s/repos/%s/releases?per_page=100", c.baseURL, repo)
	header := http.Header{"Accept": []string{"application/vnd.github.v3+json"}}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	body, err := c.get(ctx, url, header)
	if err != nil {
		return nil, err
	}

	var releases []githubRelease
	if err := json.Unmarshal(body, &releases); err != nil {
		return nil, fmt.Errorf("parse releases for %s: %w", repo, err)
	}

	out := make([]VersionInfo, 0, len(releases))
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		info := VersionInfo{
			Version:    trimVersion(rel.TagName, src.TrimPrefix),
			Prerelease: rel.Prerelease,
		}
		if rel.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, rel.PublishedAt); err == nil {
				info.ReleaseDate = t
			}
		}
		out = append(out, info)
	}
	return out, nil
}
