package crawler

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// resolveURL resolves href against base and returns an absolute http(s) URL
// without fragment. It returns "" for hrefs that do not point at a page.
//
// Design decision: We resolve URLs rather than storing them as-is because:
//  1. Listing cards often carry site-relative hrefs
//  2. Deduplication by URL needs one canonical form
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || href == "#" ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return normalizeURL(resolved)
}

// normalizeURL lowercases scheme and host and drops the fragment.
func normalizeURL(u *url.URL) string {
	n := *u
	n.Fragment = ""
	n.RawFragment = ""
	n.Scheme = strings.ToLower(n.Scheme)
	n.Host = strings.ToLower(n.Host)
	if n.Path == "" {
		n.Path = "/"
	}
	return n.String()
}

// siteOf returns the registrable domain of host, such as "example.com" for
// "www.example.com". Hosts without a public suffix, like "localhost" or an
// IP address, are their own site.
func siteOf(host string) string {
	host = strings.ToLower(host)
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}

// sameSite reports whether target belongs to the same registrable domain
// as base. Subdomains of the site are accepted.
func sameSite(base *url.URL, target string) bool {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return false
	}
	return siteOf(u.Hostname()) == siteOf(base.Hostname())
}
