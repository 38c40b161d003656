package flow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/jmylchreest/promoscout/pkg/pacing"
	"github.com/jmylchreest/promoscout/pkg/page"
	"github.com/jmylchreest/promoscout/pkg/page/htmlpage"
	"github.com/jmylchreest/promoscout/pkg/site"
)

const base = "https://shop.test"

const homePage = `<html><body><div class="header"><a href="/giris">Giriş Yap</a></div></body></html>`

const loginPage = `<html><body><form action="/hesabim">
<input type="email" name="email">
<input type="password" name="password">
<button type="submit">Giriş</button>
</form></body></html>`

const accountPage = `<html><body><nav><a href="/kampanyalar">Kampanyalar</a></nav></body></html>`

const promosPage = `<html><body><div class="campaign"></div></body></html>`

var creds = Credentials{Identifier: "cheese@example.com", Secret: "s3cret"}

func testProfile() site.Profile {
	p := site.Default()
	p.BaseURL = base
	return p
}

func testOpts() []Option {
	return []Option{WithPacer(pacing.New(pacing.WithScale(0)))}
}

func shop(overrides map[string]string) map[string]string {
	docs := map[string]string{
		base:                  homePage,
		base + "/giris":       loginPage,
		base + "/hesabim":     accountPage,
		base + "/kampanyalar": promosPage,
	}
	for k, v := range overrides {
		if v == "" {
			delete(docs, k)
			continue
		}
		docs[k] = v
	}
	return docs
}

func TestAuthenticate(t *testing.T) {
	pg := htmlpage.New(shop(nil))
	s, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)

	require.NoError(t, err)
	require.True(t, s.Authenticated())
	require.Equal(t, "login", s.Origin())
	require.Equal(t, base+"/hesabim", pg.URL())

	var values []string
	for _, a := range pg.Actions() {
		if a.Op == htmlpage.OpFill {
			values = append(values, a.Value)
		}
	}
	require.Equal(t, []string{creds.Identifier, creds.Secret}, values)
}

func TestAuthenticate_TriggerNotFound(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{
		base: `<html><body><p>maintenance</p></body></html>`,
	}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.ErrorIs(t, err, ErrAuthTriggerNotFound)
}

func TestAuthenticate_TriggerByFallbackText(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{
		base: `<html><body><section><a class="x" href="/giris">Hemen giriş yap</a></section></body></html>`,
	}))
	s, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.NoError(t, err)
	require.True(t, s.Authenticated())
}

func TestAuthenticate_GenericFieldDegrade(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{
		base + "/giris": `<html><body><form action="/hesabim">
<input type="tel" name="user_phone">
<input type="password" name="password">
<button type="submit">Giriş</button>
</form></body></html>`,
	}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.NoError(t, err)

	var waited []string
	for _, a := range pg.Actions() {
		if a.Op == htmlpage.OpWaitVisible && a.Timeout == 1500*time.Millisecond {
			waited = append(waited, a.Target)
		}
	}
	require.Contains(t, waited, "css=input[type='email'], input[name*='user']")
}

func TestAuthenticate_GenericFieldMissing(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{
		base + "/giris": `<html><body><form action="/hesabim"><button>Giriş</button></form></body></html>`,
	}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.ErrorIs(t, err, ErrInteraction)
	require.True(t, page.IsTimeout(err))
}

func TestAuthenticate_EnterWhenSubmitMissing(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{
		base + "/giris": `<html><body><form action="/hesabim">
<input type="email" name="email">
<input type="password" name="password">
<button type="button" class="go">Devam</button>
</form></body></html>`,
	}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.NoError(t, err)
	require.Equal(t, base+"/hesabim", pg.URL())

	var pressed []string
	for _, a := range pg.Actions() {
		if a.Op == htmlpage.OpPress {
			pressed = append(pressed, a.Value)
		}
	}
	require.Equal(t, []string{"Enter"}, pressed)
}

func TestAuthenticate_NavigationFailure(t *testing.T) {
	pg := htmlpage.New(shop(map[string]string{base: ""}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.ErrorIs(t, err, ErrNavigationFailed)
	require.ErrorIs(t, err, htmlpage.ErrNoDocument)
}

func TestAuthenticate_ClickFailure(t *testing.T) {
	broken := errors.New("node is not clickable")
	pg := htmlpage.New(shop(nil), htmlpage.WithFault(func(op htmlpage.Op, n *html.Node) error {
		if op == htmlpage.OpClick && n != nil && n.Data == "a" {
			return broken
		}
		return nil
	}))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(context.Background(), pg, creds)
	require.ErrorIs(t, err, ErrInteraction)
	require.ErrorIs(t, err, broken)
}

func TestAuthenticate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pg := htmlpage.New(shop(nil))
	_, err := NewAuthenticator(testProfile(), testOpts()...).Authenticate(ctx, pg, creds)
	require.ErrorIs(t, err, context.Canceled)
}

func loggedIn(t *testing.T, docs map[string]string, opts ...htmlpage.Option) *htmlpage.Page {
	t.Helper()
	pg := htmlpage.New(docs, opts...)
	require.NoError(t, pg.Goto(context.Background(), base+"/hesabim", page.LoadDOMContentLoaded))
	return pg
}

func TestNavigate_RequiresSession(t *testing.T) {
	pg := loggedIn(t, shop(nil))
	_, err := NewNavigator(testProfile(), testOpts()...).Navigate(context.Background(), pg, Session{})
	require.ErrorIs(t, err, ErrSessionStateInvalid)
	require.Equal(t, base+"/hesabim", pg.URL())
}

func TestNavigate_Routes(t *testing.T) {
	menuPage := `<html><body>
<div class="menu"><span>Ürünler</span>
  <div class="dropdown"><a href="/firsatlar">Kampanya Fırsatları</a></div>
</div></body></html>`

	tests := []struct {
		name    string
		account string
		want    Route
		wantURL string
	}{
		{
			name:    "direct link",
			account: accountPage,
			want:    RouteDirectLink,
			wantURL: base + "/kampanyalar",
		},
		{
			name:    "hover menu",
			account: menuPage,
			want:    RouteHoverMenu,
			wantURL: base + "/firsatlar",
		},
		{
			name:    "direct url",
			account: `<html><body><p>Welcome</p></body></html>`,
			want:    RouteDirectURL,
			wantURL: base + "/kampanyalar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := loggedIn(t, shop(map[string]string{
				base + "/hesabim":   tt.account,
				base + "/firsatlar": promosPage,
			}))
			route, err := NewNavigator(testProfile(), testOpts()...).Navigate(context.Background(), pg, Replayed("test"))
			require.NoError(t, err)
			require.Equal(t, tt.want, route)
			require.Equal(t, tt.wantURL, pg.URL())
		})
	}
}

func TestNavigate_ClickFailureFallsThrough(t *testing.T) {
	pg := loggedIn(t, shop(nil), htmlpage.WithFault(func(op htmlpage.Op, n *html.Node) error {
		if op == htmlpage.OpClick {
			return errors.New("intercepted by overlay")
		}
		return nil
	}))
	route, err := NewNavigator(testProfile(), testOpts()...).Navigate(context.Background(), pg, Replayed("test"))
	require.NoError(t, err)
	require.Equal(t, RouteDirectURL, route)
}

func TestNavigate_AllRoutesFail(t *testing.T) {
	pg := loggedIn(t, shop(map[string]string{
		base + "/hesabim":     `<html><body></body></html>`,
		base + "/kampanyalar": "",
	}))
	_, err := NewNavigator(testProfile(), testOpts()...).Navigate(context.Background(), pg, Replayed("test"))
	require.ErrorIs(t, err, ErrNavigationFailed)
}

func TestCredentials_Redacted(t *testing.T) {
	out := fmt.Sprintf("%v %+v %#v %s", creds, creds, creds, creds)
	require.NotContains(t, out, creds.Secret)
	require.NotContains(t, out, creds.Identifier)

	buf := &bytes.Buffer{}
	slog.New(slog.NewJSONHandler(buf, nil)).Info("login", "creds", creds)
	require.NotContains(t, buf.String(), creds.Secret)
	require.NotContains(t, buf.String(), creds.Identifier)
}

func TestCredentials_Empty(t *testing.T) {
	require.True(t, Credentials{Identifier: "a"}.Empty())
	require.False(t, creds.Empty())
}
