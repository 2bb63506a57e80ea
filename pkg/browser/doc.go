// Package browser provides the browser sessions used to evaluate design
// options against the target application.
//
// # Architecture
//
// The package is built around three concepts:
//
// 1. Page: one browser tab behind a small interface (navigate, wait, fill,
// click, read text). Two backends implement it: Playwright (a real Chromium
// per session) and a JavaScript-free HTTP backend for server-rendered pages.
// 2. Session: owns exactly one Page for the lifetime of a dataset partition
// and tracks whether it has been authenticated.
// 3. Launcher: starts the backend once per run and opens isolated sessions.
//
// # Session Lifecycle
//
//  1. Open: Launcher.Open creates a fresh browser, context and page
//  2. Use: the authenticator and metric extractor drive the session
//  3. Close: Session.Close releases every resource; it is idempotent so it
//     can be deferred right after Open
//
// Sessions never share a browser profile, cookies or storage.
//
// # Example Usage
//
//	launcher, err := browser.NewLauncher(browser.Options{Headless: true}, logger)
//	if err := launcher.Start(ctx); err != nil { ... }
//	defer launcher.Stop()
//
//	session, err := launcher.Open(ctx)
//	if err != nil { ... }
//	defer session.Close()
//
//	err = session.Navigate(ctx, "https://example.com", 10*time.Second)
//	text, err := session.Text(ctx, "#metric")
package browser
