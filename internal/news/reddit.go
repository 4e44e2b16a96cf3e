package news

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/types"
)

const (
	DefaultRedditURL = "https://www.reddit.com"
	redditPageLimit  = 100
)

var DefaultSubreddits = []string{"wallstreetbets", "stocks", "investing"}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
	URL         string  `json:"url"`
	Permalink   string  `json:"permalink"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
}

// Reddit searches subreddits through the public JSON search endpoint.
type Reddit struct {
	http       *resty.Client
	subreddits []string
}

var _ interfaces.Collector = (*Reddit)(nil)

// NewReddit builds a collector against baseURL (DefaultRedditURL when
// empty).
func NewReddit(baseURL string, subreddits []string, timeout time.Duration) *Reddit {
	if baseURL == "" {
		baseURL = DefaultRedditURL
	}
	if len(subreddits) == 0 {
		subreddits = DefaultSubreddits
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("User-Agent", "sentitrade/1.0").
		SetHeader("Accept", "application/json")
	return &Reddit{http: c, subreddits: subreddits}
}

func (r *Reddit) Name() string { return "reddit" }

// Collect searches for "$TICKER" and "TICKER", half the limit each, and
// drops duplicate posts by URL.
func (r *Reddit) Collect(ctx context.Context, ticker string, limit int) ([]types.TextItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	queries := []string{"$" + ticker, ticker}
	perQuery := limit / len(queries)
	if perQuery < 1 {
		perQuery = 1
	}

	seen := make(map[string]struct{})
	var items []types.TextItem
	var lastErr error
	for _, q := range queries {
		posts, err := r.search(ctx, q, perQuery)
		if err != nil {
			lastErr = err
			logger.Warn(ctx, "Reddit search failed", "query", q, "error", err)
			continue
		}
		for _, p := range posts {
			key := p.URL
			if key == "" {
				key = p.Permalink
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			items = append(items, p.textItem())
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *Reddit) search(ctx context.Context, query string, limit int) ([]redditPost, error) {
	var posts []redditPost
	for _, sub := range r.subreddits {
		if len(posts) >= limit {
			break
		}
		var listing redditListing
		resp, err := r.http.R().
			SetContext(ctx).
			SetPathParam("sub", sub).
			SetQueryParams(map[string]string{
				"q":           query,
				"restrict_sr": "1",
				"sort":        "hot",
				"limit":       strconv.Itoa(min(limit, redditPageLimit)),
			}).
			SetResult(&listing).
			ForceContentType("application/json").
			Get("/r/{sub}/search.json")
		if err != nil {
			return posts, err
		}
		if resp.IsError() {
			return posts, fmt.Errorf("reddit http %d for r/%s", resp.StatusCode(), sub)
		}
		for _, c := range listing.Data.Children {
			p := c.Data
			if p.Subreddit == "" {
				p.Subreddit = sub
			}
			posts = append(posts, p)
			if len(posts) >= limit {
				break
			}
		}
	}
	return posts, nil
}

func (p redditPost) textItem() types.TextItem {
	author := p.Author
	if author == "" {
		author = "unknown"
	}
	text := strings.TrimSpace(p.Title + " " + p.Selftext)
	return types.TextItem{
		Text:   text,
		Source: "reddit",
		Metadata: map[string]string{
			"subreddit": p.Subreddit,
			"url":       p.URL,
			"author":    author,
			"upvotes":   strconv.Itoa(p.Score),
			"comments":  strconv.Itoa(p.NumComments),
			"timestamp": time.Unix(int64(p.CreatedUTC), 0).UTC().Format(time.RFC3339),
			"mentions":  strings.Join(ExtractMentions(text), ","),
		},
	}
}
