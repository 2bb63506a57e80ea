package browsertest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Selectors used by the pages served by Site.
const (
	LoginTriggerSelector = "#loginButton"
	UsernameSelector     = "#acct_name"
	PasswordSelector     = "#passwdInput"
	SubmitSelector       = "#loginbutton"
	PostLoginSelector    = ".btn-dec-rpt"
	MetricSelector       = "#performanceQualityMetric"
)

// SiteOptions configures a Site.
type SiteOptions struct {
	User     string
	Password string

	// Metrics maps option identifiers to the metric text shown on their page.
	// Options without an entry get a page without the metric element.
	Metrics map[string]string

	// HideLoginMarker serves a home page without the post-login marker.
	HideLoginMarker bool
}

// Site is a login-protected website with one page per design option.
type Site struct {
	*httptest.Server

	opts SiteOptions

	mu       sync.Mutex
	sessions map[string]bool
	logins   int
	requests map[string]int
}

// NewSite starts a site; it is closed when the test ends.
func NewSite(t testing.TB, opts SiteOptions) *Site {
	t.Helper()

	s := &Site{
		opts:     opts,
		sessions: make(map[string]bool),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleEntry)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/home", s.handleHome)
	mux.HandleFunc("/design", s.handleDesign)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Server.Close)
	return s
}

// EntryURL is the login page.
func (s *Site) EntryURL() string {
	return s.URL + "/"
}

// OptionURLTemplate is the per-option page URL with an {option} placeholder.
func (s *Site) OptionURLTemplate() string {
	return s.URL + "/design?option={option}"
}

// Logins returns the number of successful logins.
func (s *Site) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// Requests returns the number of authenticated page loads for an option.
func (s *Site) Requests(option string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[option]
}

const loginPage = `<html><head><title>Sign in</title></head><body>
<a id="loginButton" href="/">Log in</a>
<form action="/login" method="post">
	<input type="text" id="acct_name" name="user">
	<input type="password" id="passwdInput" name="password">
	<button type="submit" id="loginbutton">Sign in</button>
</form>
</body></html>`

func (s *Site) handleEntry(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, loginPage)
}

func (s *Site) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostFormValue("user") != s.opts.User || r.PostFormValue("password") != s.opts.Password {
		fmt.Fprint(w, loginPage)
		return
	}

	s.mu.Lock()
	s.logins++
	token := fmt.Sprintf("session-%d", s.logins)
	s.sessions[token] = true
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "sid", Value: token, Path: "/"})
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (s *Site) authenticated(r *http.Request) bool {
	c, err := r.Cookie("sid")
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c.Value]
}

func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if s.opts.HideLoginMarker {
		fmt.Fprint(w, `<html><body><p>Welcome</p></body></html>`)
		return
	}
	fmt.Fprint(w, `<html><body><a class="tn btn-dec-rpt fw-bold text-white btn-primary" href="/reports">Decisions &amp; Reports</a></body></html>`)
}

func (s *Site) handleDesign(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	option := r.URL.Query().Get("option")
	s.mu.Lock()
	s.requests[option]++
	s.mu.Unlock()

	text, ok := s.opts.Metrics[option]
	if !ok {
		fmt.Fprintf(w, `<html><body><h1>%s</h1><p>No rating available</p></body></html>`, html.EscapeString(option))
		return
	}
	fmt.Fprintf(w, `<html><body><h1>%s</h1><table><tr><td>P/Q ratio</td><td><span id="performanceQualityMetric">%s</span></td></tr></table></body></html>`,
		html.EscapeString(option), html.EscapeString(text))
}
