package medinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"healthguard/internal/logging"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint; it needs no API key.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// SearchResult is a single web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher looks up a query on the web.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// DuckDuckGo searches the DuckDuckGo HTML interface and scrapes the results.
type DuckDuckGo struct {
	BaseURL    string
	MaxResults int
	Timeout    time.Duration
	Client     *http.Client
}

// NewDuckDuckGo creates a searcher. Zero values fall back to defaults.
func NewDuckDuckGo(baseURL string, maxResults int, timeout time.Duration) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &DuckDuckGo{
		BaseURL:    baseURL,
		MaxResults: maxResults,
		Timeout:    timeout,
		Client:     http.DefaultClient,
	}
}

// Search runs query and returns at most MaxResults hits.
func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s?q=%s", d.BaseURL, url.QueryEscape(query))

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	results, err := parseResults(string(body), d.MaxResults)
	if err != nil {
		return nil, err
	}
	logging.ToolsDebug("medinfo: search %q returned %d results", query, len(results))
	return results, nil
}

// parseResults extracts hits from DuckDuckGo HTML. Result blocks are divs
// whose class holds both "result" and "results_links".
func parseResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attr(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				if r := extractResult(n); r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) SearchResult {
	var r SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attr(n, "class")
			switch {
			case strings.Contains(class, "result__a"):
				r.URL = attr(n, "href")
				r.Title = textContent(n)
			case strings.Contains(class, "result__snippet"):
				r.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	r.URL = unwrapRedirect(r.URL)
	return r
}

// unwrapRedirect turns //duckduckgo.com/l/?uddg=<escaped>&rut=... into the target URL.
func unwrapRedirect(link string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(link, prefix) {
		return link
	}
	rest := strings.TrimPrefix(link, prefix)
	if idx := strings.Index(rest, "&"); idx > 0 {
		rest = rest[:idx]
	}
	decoded, err := url.QueryUnescape(rest)
	if err != nil {
		return link
	}
	return decoded
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}
