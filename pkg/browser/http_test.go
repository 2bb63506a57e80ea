package browser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/browser/browsertest"
)

func newHTTPSession(t *testing.T) *browser.Session {
	t.Helper()

	launcher := browser.NewLauncherWithBackend(browser.NewHTTPBackend(2*time.Second, nil), nil)
	require.NoError(t, launcher.Start(context.Background()))
	t.Cleanup(func() { _ = launcher.Stop() })

	session, err := launcher.Open(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestHTTPBackend_LoginAndReadMetric(t *testing.T) {
	site := browsertest.NewSite(t, browsertest.SiteOptions{
		User:     "alice",
		Password: "s3cret",
		Metrics:  map[string]string{"opt1": "4.25"},
	})
	ctx := context.Background()
	s := newHTTPSession(t)

	require.NoError(t, s.Navigate(ctx, site.EntryURL(), time.Second))
	require.NoError(t, s.WaitFor(ctx, browsertest.LoginTriggerSelector, time.Second))
	require.NoError(t, s.Fill(ctx, browsertest.UsernameSelector, "alice"))
	require.NoError(t, s.Fill(ctx, browsertest.PasswordSelector, "s3cret"))
	require.NoError(t, s.Click(ctx, browsertest.SubmitSelector))
	require.NoError(t, s.WaitFor(ctx, browsertest.PostLoginSelector, time.Second))
	assert.Equal(t, site.URL+"/home", s.URL())
	assert.Equal(t, 1, site.Logins())

	require.NoError(t, s.Navigate(ctx, site.URL+"/design?option=opt1", time.Second))
	text, err := s.Text(ctx, browsertest.MetricSelector)
	require.NoError(t, err)
	assert.Equal(t, "4.25", text)
}

func TestHTTPBackend_WrongPasswordStaysOnLoginPage(t *testing.T) {
	site := browsertest.NewSite(t, browsertest.SiteOptions{User: "alice", Password: "s3cret"})
	ctx := context.Background()
	s := newHTTPSession(t)

	require.NoError(t, s.Navigate(ctx, site.EntryURL(), time.Second))
	require.NoError(t, s.Fill(ctx, browsertest.UsernameSelector, "alice"))
	require.NoError(t, s.Fill(ctx, browsertest.PasswordSelector, "wrong"))
	require.NoError(t, s.Click(ctx, browsertest.SubmitSelector))

	err := s.WaitFor(ctx, browsertest.PostLoginSelector, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	assert.Equal(t, 0, site.Logins())
}

func TestHTTPBackend_SessionsDoNotShareCookies(t *testing.T) {
	site := browsertest.NewSite(t, browsertest.SiteOptions{
		User:     "alice",
		Password: "s3cret",
		Metrics:  map[string]string{"opt1": "1"},
	})
	ctx := context.Background()

	first := newHTTPSession(t)
	require.NoError(t, first.Navigate(ctx, site.EntryURL(), time.Second))
	require.NoError(t, first.Fill(ctx, browsertest.UsernameSelector, "alice"))
	require.NoError(t, first.Fill(ctx, browsertest.PasswordSelector, "s3cret"))
	require.NoError(t, first.Click(ctx, browsertest.SubmitSelector))

	second := newHTTPSession(t)
	require.NoError(t, second.Navigate(ctx, site.URL+"/design?option=opt1", time.Second))

	// The second session is redirected to the login page
	assert.Equal(t, site.EntryURL(), second.URL())
	_, err := second.Text(ctx, browsertest.MetricSelector)
	assert.ErrorIs(t, err, browser.ErrNotFound)
}

func TestHTTPBackend_NavigationTimeout(t *testing.T) {
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()
	defer close(release)

	s := newHTTPSession(t)
	err := s.Navigate(context.Background(), slow.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrTimeout)
}

func TestHTTPBackend_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s := newHTTPSession(t)
	err := s.Navigate(context.Background(), srv.URL, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPBackend_FillRejectsNonFormElements(t *testing.T) {
	site := browsertest.NewSite(t, browsertest.SiteOptions{})
	ctx := context.Background()
	s := newHTTPSession(t)

	require.NoError(t, s.Navigate(ctx, site.EntryURL(), time.Second))
	err := s.Fill(ctx, browsertest.LoginTriggerSelector, "x")
	assert.Error(t, err)
}
