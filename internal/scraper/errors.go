package scraper

import "errors"

// ErrAuthentication is returned when a login attempt does not yield an
// authenticated session.
var ErrAuthentication = errors.New("authentication failed")

// ErrScraping wraps failures parsing or fetching upstream HTML.
var ErrScraping = errors.New("scraping failed")

// ErrNotAuthenticated is returned by article operations attempted on a
// session that has not logged in.
var ErrNotAuthenticated = errors.New("session is not authenticated")
