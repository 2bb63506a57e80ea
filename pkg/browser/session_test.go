package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/browser/browsertest"
)

func TestSession_CloseIsIdempotent(t *testing.T) {
	page := browsertest.NewFakePage()
	s := browser.NewSession("s1", page)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.Equal(t, 1, page.CloseCalls())
	assert.Equal(t, browser.StateClosed, s.State())
}

func TestSession_ClosedSessionRejectsOperations(t *testing.T) {
	page := browsertest.NewFakePage()
	page.Elements["#x"] = "1"
	s := browser.NewSession("s1", page)
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Navigate(ctx, "http://example.test", time.Second), browser.ErrSessionClosed)
	assert.ErrorIs(t, s.WaitFor(ctx, "#x", time.Second), browser.ErrSessionClosed)
	assert.ErrorIs(t, s.Fill(ctx, "#x", "v"), browser.ErrSessionClosed)
	assert.ErrorIs(t, s.Click(ctx, "#x"), browser.ErrSessionClosed)
	_, err := s.Text(ctx, "#x")
	assert.ErrorIs(t, err, browser.ErrSessionClosed)
	assert.Empty(t, page.Visited())
}

func TestSession_StateTransitions(t *testing.T) {
	s := browser.NewSession("s1", browsertest.NewFakePage())
	assert.Equal(t, browser.StateUnauthenticated, s.State())

	s.MarkAuthenticated()
	assert.Equal(t, browser.StateAuthenticated, s.State())

	require.NoError(t, s.Close())
	s.MarkAuthenticated()
	assert.Equal(t, browser.StateClosed, s.State(), "closed is final")
}

func TestSession_CancelledContext(t *testing.T) {
	page := browsertest.NewFakePage()
	s := browser.NewSession("s1", page)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Navigate(ctx, "http://example.test", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, page.Visited())
}

func TestLauncher_OpenRequiresStart(t *testing.T) {
	launcher := browser.NewLauncherWithBackend(&browsertest.FakeBackend{}, nil)

	_, err := launcher.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrSessionOpen)
	assert.ErrorIs(t, err, browser.ErrNotStarted)
}

func TestLauncher_OpenWrapsBackendErrors(t *testing.T) {
	backend := &browsertest.FakeBackend{
		NewPageFunc: func(n int) (browser.Page, error) {
			return nil, errors.New("chromium crashed")
		},
	}
	launcher := browser.NewLauncherWithBackend(backend, nil)
	require.NoError(t, launcher.Start(context.Background()))

	_, err := launcher.Open(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, browser.ErrSessionOpen)
	assert.Contains(t, err.Error(), "chromium crashed")
}

func TestLauncher_StopClosesLeakedSessions(t *testing.T) {
	pages := []*browsertest.FakePage{browsertest.NewFakePage(), browsertest.NewFakePage()}
	backend := &browsertest.FakeBackend{
		NewPageFunc: func(n int) (browser.Page, error) { return pages[n], nil },
	}
	launcher := browser.NewLauncherWithBackend(backend, nil)
	require.NoError(t, launcher.Start(context.Background()))

	closed, err := launcher.Open(context.Background())
	require.NoError(t, err)
	_, err = launcher.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, closed.Close())

	require.NoError(t, launcher.Stop())
	assert.True(t, backend.Stopped())
	assert.Equal(t, 1, pages[0].CloseCalls())
	assert.Equal(t, 1, pages[1].CloseCalls())
}

func TestNewLauncher_UnknownBackend(t *testing.T) {
	_, err := browser.NewLauncher(browser.Options{Backend: "lynx"}, nil)
	assert.Error(t, err)
}
