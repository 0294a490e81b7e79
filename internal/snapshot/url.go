package snapshot

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// QueryParam is the URL query parameter that carries a token.
const QueryParam = "snapshot"

// ShareURL returns base with the token set in the snapshot query parameter.
func ShareURL(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base url: %w", err)
	}
	q := u.Query()
	q.Set(QueryParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenFromURL extracts a token from a share URL. A bare token is returned
// unchanged.
func TokenFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", formatErr("url", errors.New("empty input"))
	}
	if !strings.ContainsAny(raw, "?=/:#") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", formatErr("url", err)
	}
	if tok := u.Query().Get(QueryParam); tok != "" {
		return tok, nil
	}
	if frag, err := url.ParseQuery(u.Fragment); err == nil {
		if tok := frag.Get(QueryParam); tok != "" {
			return tok, nil
		}
	}
	return "", formatErr("url", fmt.Errorf("no %q parameter", QueryParam))
}
