// Package fetcher performs the static preflight request made before a
// browser is launched: it checks the storefront is reachable and reports
// anti-bot challenge pages. Challenges are only reported, never solved.
package fetcher

import (
	"context"
	"errors"
	"time"
)

// Fetcher retrieves a page without running its scripts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Content, error)

	// Type returns a string identifying the fetcher (e.g. "static").
	Type() string
}

// Content is what a preflight fetch saw.
type Content struct {
	URL         string
	FinalURL    string // after redirects
	StatusCode  int
	ContentType string
	Title       string
	HTML        string
	Links       []string
	Challenge   Challenge
	FetchedAt   time.Time
	Duration    time.Duration
}

// Challenge names an interstitial that blocks automated visitors.
type Challenge string

const (
	ChallengeNone       Challenge = ""
	ChallengeCloudflare Challenge = "cloudflare"
	ChallengeTurnstile  Challenge = "cloudflare-turnstile"
	ChallengeHCaptcha   Challenge = "hcaptcha"
	ChallengeReCaptcha  Challenge = "recaptcha"
	ChallengeAntiBot    Challenge = "anti-bot"
)

// Err returns the sentinel matching the challenge, or nil.
func (c Challenge) Err() error {
	switch c {
	case ChallengeNone:
		return nil
	case ChallengeHCaptcha, ChallengeReCaptcha, ChallengeTurnstile:
		return ErrCaptchaChallenge
	default:
		return ErrAntiBot
	}
}

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, fetcher.ErrCaptchaChallenge).
var (
	// ErrCaptchaChallenge indicates the site serves an interactive CAPTCHA.
	ErrCaptchaChallenge = errors.New("captcha challenge detected")
	// ErrAntiBot indicates the site's anti-bot protection blocked the request.
	ErrAntiBot = errors.New("anti-bot protection detected")
	// ErrUnavailable indicates the site answered with a server error.
	ErrUnavailable = errors.New("site unavailable")
)
