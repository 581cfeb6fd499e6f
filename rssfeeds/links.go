package rssfeeds

import (
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// nonArticleHosts are link targets that never lead to the story itself.
var nonArticleHosts = []string{
	"facebook.com", "twitter.com", "x.com", "t.co", "linkedin.com",
	"reddit.com", "pinterest.com", "instagram.com", "whatsapp.com",
	"wa.me", "telegram.me", "t.me", "mastodon.social", "threads.net",
	"news.ycombinator.com", "feedburner.com", "feeds.feedburner.com",
}

var imageExtensions = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
	".svg": {}, ".bmp": {}, ".avif": {}, ".ico": {},
}

// FallbackLink returns the first absolute http(s) link in body that is not
// ownLink and not a social-share or image target. Feeds such as aggregators
// often carry the real story only as a link inside the item body.
func FallbackLink(body, ownLink string) (string, bool) {
	if !strings.Contains(body, "<") {
		return "", false
	}

	own := comparableLink(ownLink)
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return "", false
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := z.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := z.TagAttr()
			if string(key) == "href" {
				href := strings.TrimSpace(string(val))
				if isCandidateLink(href, own) {
					return href, true
				}
			}
			if !more {
				break
			}
		}
	}
}

func isCandidateLink(href, own string) bool {
	u, err := url.Parse(href)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	if comparableLink(href) == own {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, h := range nonArticleHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return false
		}
	}
	if _, img := imageExtensions[strings.ToLower(path.Ext(u.Path))]; img {
		return false
	}
	return true
}

func comparableLink(link string) string {
	return strings.TrimRight(strings.ToLower(strings.TrimSpace(link)), "/")
}
