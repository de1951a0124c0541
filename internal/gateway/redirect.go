package gateway

import (
	"regexp"
	"strings"
)

// Hosted payment pages that are really just trampolines express their target
// one of two ways: a meta refresh tag or a script assignment.
var (
	metaRefreshRe = regexp.MustCompile(`(?is)<meta[^>]+http-equiv\s*=\s*["']?refresh["']?[^>]*content\s*=\s*["'][^"']*url\s*=\s*([^"'\s>]+)`)

	scriptRedirectRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)window\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
		regexp.MustCompile(`(?i)(?:window\.)?location\.replace\(\s*["']([^"']+)["']\s*\)`),
		regexp.MustCompile(`(?i)(?:document|top)\.location(?:\.href)?\s*=\s*["']([^"']+)["']`),
	}
)

// ExtractRedirectURL finds the redirect target inside an HTML payment page.
// Meta refresh takes precedence over script redirects. Returns "" when the
// page does not redirect anywhere.
func ExtractRedirectURL(html string) string {
	if m := metaRefreshRe.FindStringSubmatch(html); len(m) == 2 {
		if u := cleanURL(m[1]); u != "" {
			return u
		}
	}
	for _, re := range scriptRedirectRes {
		if m := re.FindStringSubmatch(html); len(m) == 2 {
			if u := cleanURL(m[1]); u != "" {
				return u
			}
		}
	}
	return ""
}

func cleanURL(raw string) string {
	raw = strings.TrimSpace(strings.Trim(raw, `"'`))
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return ""
}
