package parse

import (
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/models"
)

var (
	entryPattern     = regexp.MustCompile(`(?is)<(?:item|entry)\b[^>]*>(.*?)</(?:item|entry)\s*>`)
	cdataPattern     = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
	hrefPattern      = regexp.MustCompile(`(?is)<link\b[^>]*?\bhref\s*=\s*["']([^"']+)["']`)
	mediaPattern     = regexp.MustCompile(`(?is)<media:(?:thumbnail|content)\b[^>]*?\burl\s*=\s*["']([^"']+)["']`)
	enclosurePattern = regexp.MustCompile(`(?is)<enclosure\b[^>]*>`)
	urlAttrPattern   = regexp.MustCompile(`(?is)\burl\s*=\s*["']([^"']+)["']`)
	typeAttrPattern  = regexp.MustCompile(`(?is)\btype\s*=\s*["']([^"']+)["']`)

	tagPatterns = map[string]*regexp.Regexp{}
)

func init() {
	for _, tag := range []string{
		"title", "link", "guid", "id", "pubDate", "updated", "published", "dc:date",
		"description", "summary", "content:encoded", "content",
	} {
		q := regexp.QuoteMeta(tag)
		tagPatterns[tag] = regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*[^/>])?\s*>(.*?)</` + q + `\s*>`)
	}
}

// dateLayouts covers the RFC 822 variants RSS uses and the RFC 3339 forms of Atom.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC822Z,
	time.RFC822,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// scan extracts entries from text gofeed could not parse. Both <item> and
// <entry> blocks are matched in the same pass; a field that cannot be found is
// left empty rather than failing the document.
func (p *Parser) scan(raw, sourceName, color string) []models.FeedItem {
	blocks := entryPattern.FindAllStringSubmatch(raw, -1)
	items := make([]models.FeedItem, 0, len(blocks))

	for _, b := range blocks {
		body := b[1]

		link := html.UnescapeString(field(body, "link"))
		if link == "" {
			if m := hrefPattern.FindStringSubmatch(body); m != nil {
				link = html.UnescapeString(m[1])
			}
		}
		link = strings.TrimSpace(link)

		title := plainText(field(body, "title"))
		if title == "" {
			title = DefaultTitle
		}

		rawDescription := firstField(body, "description", "summary")
		description := plainText(rawDescription)

		content := firstField(body, "content:encoded", "content")
		if content == "" {
			content = rawDescription
		}

		guid := html.UnescapeString(firstField(body, "guid", "id"))

		items = append(items, models.FeedItem{
			Title:       title,
			PubDate:     p.scanDate(body),
			Link:        link,
			GUID:        identity(strings.TrimSpace(guid), link, sourceName, title, description),
			Description: description,
			Content:     strings.TrimSpace(html.UnescapeString(content)),
			Thumbnail:   scanThumbnail(body),
			Source:      sourceName,
			Color:       color,
		})
	}
	return items
}

func (p *Parser) scanDate(body string) time.Time {
	for _, tag := range []string{"pubDate", "updated", "published", "dc:date"} {
		if v := field(body, tag); v != "" {
			if t, ok := parseDate(v); ok {
				return t
			}
		}
	}
	return p.Now()
}

func parseDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func scanThumbnail(body string) string {
	if m := mediaPattern.FindStringSubmatch(body); m != nil {
		return html.UnescapeString(m[1])
	}
	for _, tag := range enclosurePattern.FindAllString(body, -1) {
		t := typeAttrPattern.FindStringSubmatch(tag)
		if t == nil || !strings.HasPrefix(strings.ToLower(t[1]), "image/") {
			continue
		}
		if u := urlAttrPattern.FindStringSubmatch(tag); u != nil {
			return html.UnescapeString(u[1])
		}
	}
	return ""
}

func field(body, tag string) string {
	re, ok := tagPatterns[tag]
	if !ok {
		return ""
	}
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(unwrapCDATA(m[1]))
}

func firstField(body string, tags ...string) string {
	for _, tag := range tags {
		if v := field(body, tag); v != "" {
			return v
		}
	}
	return ""
}

func unwrapCDATA(s string) string {
	if !strings.Contains(s, "<![CDATA[") {
		return s
	}
	return cdataPattern.ReplaceAllString(s, "$1")
}
