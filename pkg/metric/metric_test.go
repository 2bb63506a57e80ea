package metric

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/designeval/pkg/browser"
	"github.com/entrhq/designeval/pkg/browser/browsertest"
	"github.com/entrhq/designeval/pkg/option"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		text    string
		want    float64
		wantErr bool
	}{
		{text: "4.25", want: 4.25},
		{text: "  7.8\n", want: 7.8},
		{text: "-3", want: -3},
		{text: "1,234.5", want: 1234.5},
		{text: "12.5 %", want: 12.5},
		{text: "1e3", want: 1000},
		{text: "", wantErr: true},
		{text: "   ", wantErr: true},
		{text: "n/a", wantErr: true},
		{text: "NaN", wantErr: true},
		{text: "Inf", wantErr: true},
		{text: "4.2.1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := ParseMetric(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNewExtractor_Validation(t *testing.T) {
	_, err := NewExtractor(Config{URLTemplate: "https://x.test/design", Selector: "#m"})
	assert.Error(t, err)

	_, err = NewExtractor(Config{URLTemplate: "https://x.test/design?option={option}"})
	assert.Error(t, err)
}

func TestExtractor_URLFor(t *testing.T) {
	e, err := NewExtractor(Config{URLTemplate: "https://x.test/design?option={option}", Selector: "#m"})
	require.NoError(t, err)

	assert.Equal(t, "https://x.test/design?option=opt1", e.URLFor("opt1"))
	assert.Equal(t, "https://x.test/design?option=a+b%26c", e.URLFor("a b&c"))
	assert.Equal(t, "https://x.test/design?option=opt1", e.URLFor(" opt1 "))
	assert.Equal(t, e.URLFor("opt1"), e.URLFor("opt1"), "deterministic")
}

func newFakeExtractor(t *testing.T) (*Extractor, *browsertest.FakePage, *browser.Session) {
	t.Helper()
	e, err := NewExtractor(Config{
		URLTemplate: "https://x.test/design?option={option}",
		Selector:    "#metric",
		Timeout:     time.Second,
	})
	require.NoError(t, err)

	page := browsertest.NewFakePage()
	return e, page, browser.NewSession("s1", page)
}

func TestExtract_Success(t *testing.T) {
	e, page, session := newFakeExtractor(t)
	page.PageElements["https://x.test/design?option=opt1"] = map[string]string{"#metric": " 3.1 "}

	v, err := e.Extract(context.Background(), option.DesignOption{ID: "opt1"}, session)
	require.NoError(t, err)
	assert.Equal(t, 3.1, v)
	assert.Equal(t, []string{"https://x.test/design?option=opt1"}, page.Visited())
}

func TestExtract_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(page *browsertest.FakePage)
		wantKind error
	}{
		{
			name:     "element missing",
			setup:    func(page *browsertest.FakePage) {},
			wantKind: ErrElementTimeout,
		},
		{
			name: "navigation error",
			setup: func(page *browsertest.FakePage) {
				page.GotoErr = errors.New("connection reset")
			},
			wantKind: ErrElementTimeout,
		},
		{
			name: "not a number",
			setup: func(page *browsertest.FakePage) {
				page.PageElements["https://x.test/design?option=opt1"] = map[string]string{"#metric": "pending"}
			},
			wantKind: ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, page, session := newFakeExtractor(t)
			tt.setup(page)

			_, err := e.Extract(context.Background(), option.DesignOption{ID: "opt1"}, session)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)

			var rowErr *RowError
			require.ErrorAs(t, err, &rowErr)
			assert.Equal(t, "opt1", rowErr.Option)
		})
	}
}

func TestExtract_AgainstSite(t *testing.T) {
	site := browsertest.NewSite(t, browsertest.SiteOptions{
		User:     "alice",
		Password: "s3cret",
		Metrics:  map[string]string{"opt1": "2.5", "opt2": "broken"},
	})
	ctx := context.Background()

	launcher := browser.NewLauncherWithBackend(browser.NewHTTPBackend(time.Second, nil), nil)
	require.NoError(t, launcher.Start(ctx))
	defer launcher.Stop()

	session, err := launcher.Open(ctx)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Navigate(ctx, site.EntryURL(), time.Second))
	require.NoError(t, session.Fill(ctx, browsertest.UsernameSelector, "alice"))
	require.NoError(t, session.Fill(ctx, browsertest.PasswordSelector, "s3cret"))
	require.NoError(t, session.Click(ctx, browsertest.SubmitSelector))

	e, err := NewExtractor(Config{
		URLTemplate: site.OptionURLTemplate(),
		Selector:    browsertest.MetricSelector,
		Timeout:     time.Second,
	})
	require.NoError(t, err)

	v, err := e.Extract(ctx, option.DesignOption{ID: "opt1"}, session)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)

	_, err = e.Extract(ctx, option.DesignOption{ID: "opt2"}, session)
	assert.ErrorIs(t, err, ErrParse)

	_, err = e.Extract(ctx, option.DesignOption{ID: "opt3"}, session)
	assert.ErrorIs(t, err, ErrElementTimeout)

	// A row failure does not affect the session
	v, err = e.Extract(ctx, option.DesignOption{ID: "opt1"}, session)
	require.NoError(t, err)
	assert.Equal(t, 2.5, v)
}
