package fetcher

import "strings"

// DetectChallenge inspects a page title and body for known challenge
// interstitials.
func DetectChallenge(title, html string) Challenge {
	title = strings.ToLower(title)
	html = strings.ToLower(html)

	switch {
	case containsAny(title, "just a moment", "attention required"),
		containsAny(html, "cf-challenge", "cf_chl_opt"):
		return ChallengeCloudflare
	case containsAny(html, "challenges.cloudflare.com/turnstile", "cf-turnstile"):
		return ChallengeTurnstile
	case containsAny(html, "hcaptcha.com", "h-captcha"):
		return ChallengeHCaptcha
	case containsAny(html, "google.com/recaptcha", "g-recaptcha"):
		return ChallengeReCaptcha
	case containsAny(title, "access denied", "blocked", "bot detection"),
		containsAny(html, "robot or human"):
		return ChallengeAntiBot
	}
	return ChallengeNone
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
