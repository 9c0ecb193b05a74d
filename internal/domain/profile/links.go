package profile

import (
	"regexp"
	"strings"
)

type LinkType string

const (
	LinkGitHub   LinkType = "github"
	LinkTwitter  LinkType = "twitter"
	LinkLinkedIn LinkType = "linkedin"
	LinkDiscord  LinkType = "discord"
	LinkTelegram LinkType = "telegram"
	LinkEmail    LinkType = "email"
	LinkWebsite  LinkType = "website"
)

type Link struct {
	Type     LinkType `json:"type"`
	URL      string   `json:"url"`
	Original string   `json:"original"`
}

type linkPattern struct {
	typ    LinkType
	re     *regexp.Regexp
	format func(m []string) string
}

var (
	emailPattern = linkPattern{
		typ:    LinkEmail,
		re:     regexp.MustCompile(`[\w.+-]+@[\w-]+(?:\.[\w-]+)+`),
		format: func(m []string) string { return "mailto:" + m[0] },
	}

	socialPatterns = []linkPattern{
		{LinkGitHub, regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?github\.com/([\w-]+)`), func(m []string) string { return "https://github.com/" + m[1] }},
		{LinkTwitter, regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:twitter|x)\.com/([\w-]+)`), func(m []string) string { return "https://twitter.com/" + m[1] }},
		{LinkLinkedIn, regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?linkedin\.com/(?:in|company)/([\w-]+)`), func(m []string) string { return "https://linkedin.com/in/" + m[1] }},
		{LinkDiscord, regexp.MustCompile(`(?i)(?:https?://)?discord\.gg/([\w-]+)`), func(m []string) string { return "https://discord.gg/" + m[1] }},
		{LinkTelegram, regexp.MustCompile(`(?i)(?:https?://)?(?:t|telegram)\.me/([\w-]+)`), func(m []string) string { return "https://t.me/" + m[1] }},
	}

	websitePattern = linkPattern{
		typ: LinkWebsite,
		re:  regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?[a-z0-9-]+(?:\.[a-z0-9-]+)*\.[a-z]{2,}(?:/[\w\-./?=&%#]*)?`),
		format: func(m []string) string {
			if strings.HasPrefix(strings.ToLower(m[0]), "http") {
				return m[0]
			}
			return "https://" + m[0]
		},
	}

	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractLinks pulls social, email and website links out of a bio. It
// returns the links in discovery order, deduplicated by URL, and the bio
// with the matched text removed.
func ExtractLinks(bio string) ([]Link, string) {
	var links []Link
	seen := make(map[string]struct{})
	rest := bio

	take := func(p linkPattern) {
		rest = p.re.ReplaceAllStringFunc(rest, func(match string) string {
			sub := p.re.FindStringSubmatch(match)
			url := p.format(sub)
			if _, dup := seen[url]; !dup {
				seen[url] = struct{}{}
				links = append(links, Link{Type: p.typ, URL: url, Original: match})
			}
			return " "
		})
	}

	// Emails first so their domains are not picked up as websites.
	take(emailPattern)
	for _, p := range socialPatterns {
		take(p)
	}
	take(websitePattern)

	return links, strings.TrimSpace(whitespace.ReplaceAllString(rest, " "))
}
