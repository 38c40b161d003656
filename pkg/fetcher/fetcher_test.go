package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

func TestDetectChallenge(t *testing.T) {
	tests := []struct {
		name  string
		title string
		html  string
		want  Challenge
	}{
		{"plain page", "Mütevazı Peynircilik", "<p>Hoş geldiniz</p>", ChallengeNone},
		{"cloudflare title", "Just a moment...", "", ChallengeCloudflare},
		{"cloudflare script", "", `<script>window._cf_chl_opt={}</script>`, ChallengeCloudflare},
		{"turnstile", "", `<div class="cf-turnstile"></div>`, ChallengeTurnstile},
		{"hcaptcha", "", `<div class="h-captcha"></div>`, ChallengeHCaptcha},
		{"recaptcha", "", `<div class="g-recaptcha"></div>`, ChallengeReCaptcha},
		{"access denied", "Access Denied", "", ChallengeAntiBot},
		{"robot check", "", "Are you a robot or human?", ChallengeAntiBot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectChallenge(tt.title, tt.html); got != tt.want {
				t.Errorf("DetectChallenge() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestChallenge_Err(t *testing.T) {
	if err := ChallengeNone.Err(); err != nil {
		t.Errorf("ChallengeNone.Err() = %v, expected nil", err)
	}
	for c, want := range map[Challenge]error{
		ChallengeReCaptcha:  ErrCaptchaChallenge,
		ChallengeTurnstile:  ErrCaptchaChallenge,
		ChallengeCloudflare: ErrAntiBot,
	} {
		if err := c.Err(); !errors.Is(err, want) {
			t.Errorf("%s.Err() = %v, expected %v", c, err, want)
		}
	}
}

func serve(status int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.UserAgent() != DefaultUserAgent || r.Header.Get("Accept-Language") != DefaultAcceptLanguage {
			http.Error(w, "unexpected client headers", http.StatusBadRequest)
			return
		}
		if r.URL.Path == "/" && r.URL.Query().Has("ref") {
			http.Redirect(w, r, "/anasayfa/", http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestStaticFetch(t *testing.T) {
	srv := serve(http.StatusOK, `<html><head><title> Kampanyalar </title></head>
<body><a href="/giris">Giriş</a><a href="#top">top</a></body></html>`)
	defer srv.Close()

	content, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if content.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", content.StatusCode)
	}
	if content.Title != "Kampanyalar" {
		t.Errorf("Title = %q, expected trimmed Kampanyalar", content.Title)
	}
	if want := []string{srv.URL + "/giris"}; !slices.Equal(content.Links, want) {
		t.Errorf("Links = %v, expected %v", content.Links, want)
	}
	if content.Challenge != ChallengeNone {
		t.Errorf("Challenge = %q, expected none", content.Challenge)
	}
}

func TestStaticFetch_FollowsRedirect(t *testing.T) {
	srv := serve(http.StatusOK, `<html><head><title>Ana Sayfa</title></head><body><a href="kampanyalar">k</a></body></html>`)
	defer srv.Close()

	content, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL+"/?ref=ad")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if content.FinalURL != srv.URL+"/anasayfa/" {
		t.Errorf("FinalURL = %q, expected the redirect target", content.FinalURL)
	}
	if want := []string{srv.URL + "/anasayfa/kampanyalar"}; !slices.Equal(content.Links, want) {
		t.Errorf("Links = %v, expected %v resolved against the final URL", content.Links, want)
	}
}

func TestStaticFetch_Challenge(t *testing.T) {
	srv := serve(http.StatusForbidden, `<html><head><title>Just a moment...</title></head><body></body></html>`)
	defer srv.Close()

	content, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrAntiBot) {
		t.Fatalf("Fetch() error = %v, expected ErrAntiBot", err)
	}
	if content.StatusCode != http.StatusForbidden || content.Challenge != ChallengeCloudflare {
		t.Errorf("content = %d/%q, expected 403/cloudflare", content.StatusCode, content.Challenge)
	}
}

func TestStaticFetch_ServerError(t *testing.T) {
	srv := serve(http.StatusServiceUnavailable, `<html><body>maintenance</body></html>`)
	defer srv.Close()

	_, err := NewStatic(StaticConfig{}).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Fetch() error = %v, expected ErrUnavailable", err)
	}
}

func TestStaticFetch_Unreachable(t *testing.T) {
	srv := serve(http.StatusOK, "")
	url := srv.URL
	srv.Close()

	if _, err := NewStatic(StaticConfig{}).Fetch(context.Background(), url); err == nil {
		t.Error("Fetch() of a closed server should fail")
	}
}

func TestStaticFetcher_Type(t *testing.T) {
	if got := NewStatic(StaticConfig{}).Type(); got != "static" {
		t.Errorf("Type() = %q, expected static", got)
	}
}
