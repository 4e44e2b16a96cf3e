package news

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"sentiment-trading/internal/interfaces"
	"sentiment-trading/internal/logger"
	"sentiment-trading/internal/types"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// minContentLength is the listing summary length below which the article
// page is fetched for its body.
const minContentLength = 100

// Scraper collects headlines and article text from finance news sites.
type Scraper struct {
	sources []NewsSource
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

var _ interfaces.Collector = (*Scraper)(nil)

// NewsSource defines a news source configuration
type NewsSource struct {
	Name       string
	BaseURL    string
	SearchPath string // e.g., "/quote/{symbol}/news"
	Selectors  ArticleSelectors
	RateLimit  time.Duration
}

// ArticleSelectors defines CSS selectors for extracting article data
type ArticleSelectors struct {
	ArticleContainer string
	Title            string
	URL              string
	Content          string
	PublishedAt      string
}

// NewScraper creates a news scraper. With no sources the default finance
// sites are used.
func NewScraper(timeout time.Duration, sources ...NewsSource) *Scraper {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &Scraper{sources: sources, timeout: timeout, sleep: sleepCtx}
}

// DefaultSources returns the finance news sites scraped by default.
func DefaultSources() []NewsSource {
	return []NewsSource{
		{
			Name:       "YahooFinance",
			BaseURL:    "https://finance.yahoo.com",
			SearchPath: "/quote/{SYMBOL}/news",
			Selectors: ArticleSelectors{
				ArticleContainer: "li.stream-item, div.stream-item",
				Title:            "h3",
				URL:              "a",
				Content:          "p",
				PublishedAt:      "div.publishing",
			},
			RateLimit: 2 * time.Second,
		},
		{
			Name:       "MarketWatch",
			BaseURL:    "https://www.marketwatch.com",
			SearchPath: "/investing/stock/{symbol}",
			Selectors: ArticleSelectors{
				ArticleContainer: "div.article__content",
				Title:            "h3.article__headline a",
				URL:              "h3.article__headline a",
				Content:          "p.article__summary",
				PublishedAt:      "span.article__timestamp",
			},
			RateLimit: 2 * time.Second,
		},
	}
}

func (s *Scraper) Name() string { return "news" }

// Collect scrapes every source for ticker, splitting limit evenly across
// them. A failing source is logged and skipped.
func (s *Scraper) Collect(ctx context.Context, ticker string, limit int) ([]types.TextItem, error) {
	if limit <= 0 || len(s.sources) == 0 {
		return nil, nil
	}
	logger.Info(ctx, "Starting news scraping", "ticker", ticker, "sources", len(s.sources))

	perSource := limit / len(s.sources)
	if perSource < 1 {
		perSource = 1
	}

	var items []types.TextItem
	for i, source := range s.sources {
		if err := ctx.Err(); err != nil {
			return items, err
		}
		got, err := s.scrapeSource(ctx, source, ticker, perSource)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to scrape source", err, "source", source.Name, "ticker", ticker)
			continue
		}
		items = append(items, got...)

		if i < len(s.sources)-1 {
			if err := s.sleep(ctx, source.RateLimit); err != nil {
				return items, err
			}
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	logger.Info(ctx, "News scraping completed", "ticker", ticker, "articles", len(items))
	return items, nil
}

type article struct {
	title, url, content, publishedAt string
}

func (s *Scraper) newCollector(domains ...string) *colly.Collector {
	c := colly.NewCollector(
		colly.AllowedDomains(domains...),
		colly.MaxDepth(1),
		colly.Async(false),
	)
	c.SetRequestTimeout(s.timeout)
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("User-Agent", userAgent)
	})
	return c
}

func (s *Scraper) scrapeSource(ctx context.Context, source NewsSource, ticker string, limit int) ([]types.TextItem, error) {
	var found []article
	c := s.newCollector(getDomain(source.BaseURL))

	c.OnHTML(source.Selectors.ArticleContainer, func(e *colly.HTMLElement) {
		if len(found) >= limit {
			return
		}
		title := strings.TrimSpace(e.ChildText(source.Selectors.Title))
		link := e.ChildAttr(source.Selectors.URL, "href")
		if title == "" || link == "" {
			return
		}
		found = append(found, article{
			title:       title,
			url:         absoluteURL(source.BaseURL, link),
			content:     strings.TrimSpace(e.ChildText(source.Selectors.Content)),
			publishedAt: strings.TrimSpace(e.ChildText(source.Selectors.PublishedAt)),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		logger.Warn(ctx, "Scraping error", "source", source.Name, "url", r.Request.URL.String(), "error", err)
	})

	searchURL := source.BaseURL + expandPath(source.SearchPath, ticker)
	if err := c.Visit(searchURL); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", searchURL, err)
	}
	c.Wait()

	items := make([]types.TextItem, 0, len(found))
	for _, a := range found {
		if len(a.content) < minContentLength {
			if body := s.fetchArticleText(ctx, a.url); body != "" {
				a.content = body
			}
		}
		text := strings.TrimSpace(a.title + " " + a.content)
		items = append(items, types.TextItem{
			Text:   text,
			Source: "news",
			Metadata: map[string]string{
				"outlet":       source.Name,
				"url":          a.url,
				"published_at": a.publishedAt,
				"mentions":     strings.Join(ExtractMentions(text), ","),
			},
		})
	}
	return items, nil
}

// fetchArticleText downloads an article page and extracts its body text.
// Failures yield "".
func (s *Scraper) fetchArticleText(ctx context.Context, articleURL string) string {
	c := s.newCollector()
	var text string
	c.OnResponse(func(r *colly.Response) {
		t, err := ArticleText(bytes.NewReader(r.Body))
		if err != nil {
			logger.Debug(ctx, "Failed to parse article", "url", articleURL, "error", err)
			return
		}
		text = t
	})
	if err := c.Visit(articleURL); err != nil {
		logger.Debug(ctx, "Failed to fetch article content", "url", articleURL, "error", err)
		return ""
	}
	c.Wait()
	return text
}

func expandPath(path, ticker string) string {
	return strings.NewReplacer(
		"{symbol}", url.PathEscape(strings.ToLower(ticker)),
		"{SYMBOL}", url.PathEscape(strings.ToUpper(ticker)),
	).Replace(path)
}

func absoluteURL(base, link string) string {
	if strings.HasPrefix(link, "http") {
		return link
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return base + link
	}
	return b.ResolveReference(ref).String()
}

// getDomain extracts domain from URL
func getDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
