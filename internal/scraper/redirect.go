package scraper

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxRedirectHops caps the registry's own redirect loop.
const maxRedirectHops = 5

// sanitizeLocation fixes the myMoment server bug where redirect Location
// headers contain literal backslashes instead of forward slashes, e.g.
// "https://host:443\accounts/login/" instead of
// "https://host:443/accounts/login/".
func sanitizeLocation(raw string) string {
	return strings.ReplaceAll(raw, `\`, "/")
}

// resolveRedirect resolves a (possibly relative, possibly malformed)
// Location header against the current request URL.
func resolveRedirect(current *url.URL, location string) (*url.URL, error) {
	sanitized := sanitizeLocation(location)
	ref, err := url.Parse(sanitized)
	if err != nil {
		return nil, fmt.Errorf("parse redirect location %q: %w", location, err)
	}
	return current.ResolveReference(ref), nil
}

// followRedirects performs the client's own redirect loop instead of
// relying on net/http's CheckRedirect, because sanitizing the Location
// header must happen before the request is resolved. It mirrors Go's own
// redirect semantics (method downgrade on 301/302/303, method preserved on
// 307/308), capped at maxRedirectHops.
func (s *Session) followRedirects(initial *http.Request, initialBody []byte, resp *http.Response) (*http.Response, error) {
	req := initial
	body := initialBody
	for hop := 0; hop < maxRedirectHops; hop++ {
		if !isRedirectStatus(resp.StatusCode) {
			return resp, nil
		}
		loc := resp.Header.Get("Location")
		if loc == "" {
			return resp, nil
		}

		nextURL, err := resolveRedirect(req.URL, loc)
		if err != nil {
			resp.Body.Close()
			return nil, err
		}

		method := req.Method
		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther:
			method = http.MethodGet
			body = nil
		}
		resp.Body.Close()

		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		nextReq, err := http.NewRequestWithContext(req.Context(), method, nextURL.String(), bodyReader)
		if err != nil {
			return nil, fmt.Errorf("build redirect request: %w", err)
		}
		nextReq.Header = req.Header.Clone()

		resp, err = s.client.Do(nextReq)
		if err != nil {
			return nil, fmt.Errorf("follow redirect to %s: %w", nextURL, err)
		}
		req = nextReq
	}
	return resp, fmt.Errorf("too many redirects (capped at %d)", maxRedirectHops)
}

func isRedirectStatus(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}
