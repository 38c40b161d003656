package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/promoscout/internal/logger"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
}

// DefaultUserAgent is the desktop Chrome user agent presented by every
// fetcher and browser driver.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultAcceptLanguage matches the tr-TR locale the browser drivers use.
const DefaultAcceptLanguage = "tr-TR,tr;q=0.9,en;q=0.8"

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
		Timeout:        15 * time.Second,
	}
}

// StaticFetcher fetches with Colly.
type StaticFetcher struct {
	config StaticConfig
}

// NewStatic creates a static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	def := DefaultStaticConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = def.AcceptLanguage
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	return &StaticFetcher{config: cfg}
}

// Fetch requests targetURL once. Error statuses are parsed rather than
// rejected so challenge pages (usually 403 or 503) can be recognized. A
// detected challenge is returned as ErrAntiBot or ErrCaptchaChallenge along
// with the content.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string) (Content, error) {
	log := logger.Component("preflight")
	start := time.Now()
	result := Content{URL: targetURL, FetchedAt: start}

	c := colly.NewCollector(
		colly.UserAgent(f.config.UserAgent),
		colly.StdlibContext(ctx),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(f.config.Timeout)

	var fetchErr error
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept-Language", f.config.AcceptLanguage)
	})
	c.OnResponse(func(r *colly.Response) {
		result.FinalURL = r.Request.URL.String()
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.HTML = string(r.Body)
		log.Debug("response received", "status", r.StatusCode, "body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}
	result.Duration = time.Since(start)
	if fetchErr != nil {
		return result, fetchErr
	}

	if result.HTML != "" {
		if err := parseContent(&result); err != nil {
			return result, fmt.Errorf("failed to parse content: %w", err)
		}
	}

	result.Challenge = DetectChallenge(result.Title, result.HTML)
	if err := result.Challenge.Err(); err != nil {
		log.Warn("challenge page served", "url", targetURL, "challenge", result.Challenge, "status", result.StatusCode)
		return result, fmt.Errorf("%w: %s", err, result.Challenge)
	}
	if result.StatusCode >= 500 {
		return result, fmt.Errorf("%w: status %d", ErrUnavailable, result.StatusCode)
	}

	if result.FinalURL != "" && result.FinalURL != targetURL {
		log.Debug("preflight redirected", "from", targetURL, "to", result.FinalURL)
	}
	log.Debug("preflight complete", "url", targetURL, "status", result.StatusCode, "duration", result.Duration)
	return result, nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}

// parseContent fills the title and links, resolved against the URL the
// response came from.
func parseContent(content *Content) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content.HTML))
	if err != nil {
		return err
	}

	content.Title = strings.TrimSpace(doc.Find("title").First().Text())

	ref := content.FinalURL
	if ref == "" {
		ref = content.URL
	}
	base, _ := url.Parse(ref)
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		link, err := url.Parse(href)
		if err != nil {
			return
		}
		if !link.IsAbs() && base != nil {
			link = base.ResolveReference(link)
		}
		content.Links = append(content.Links, link.String())
	})
	return nil
}
