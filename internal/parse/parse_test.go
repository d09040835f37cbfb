package parse_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/raffaelramalhorosa/econdash/internal/parse"
)

var clockNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newParser() *parse.Parser {
	return &parse.Parser{Now: func() time.Time { return clockNow }}
}

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Markets</title>
    <item>
      <title><![CDATA[Rates <b>hold</b> steady]]></title>
      <link>https://example.com/rates</link>
      <guid>rates-1</guid>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
      <description><![CDATA[<p>The committee kept rates unchanged.</p>]]></description>
      <content:encoded><![CDATA[<p>Full <em>story</em></p>]]></content:encoded>
      <media:thumbnail url="https://example.com/rates.jpg"/>
    </item>
    <item>
      <title></title>
      <description>No link, no guid, no date</description>
    </item>
  </channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Space Weather</title>
  <entry>
    <id>urn:swx:1</id>
    <title>Geomagnetic storm watch</title>
    <link href="https://example.com/storm"/>
    <published>2026-02-01T10:00:00Z</published>
    <updated>2026-02-01T11:30:00Z</updated>
    <summary>Kp index expected to reach 6</summary>
    <content type="html">&lt;p&gt;Details&lt;/p&gt;</content>
  </entry>
</feed>`

// truncatedDoc is rejected by gofeed (stray ampersand, unclosed channel) and
// must be recovered by the scanner.
const truncatedDoc = `<rss><channel><title>Jobs & more</title>
<item>
  <title>Claims fall</title>
  <link>https://example.com/claims</link>
  <pubDate>Thu, 05 Mar 2026 13:30:00 +0000</pubDate>
</item>
<item><title>Half`

func TestParse_RSS(t *testing.T) {
	items := newParser().Parse(rssDoc, "Fed Watch", "#ff0000")
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	first := items[0]
	if first.Title != "Rates hold steady" {
		t.Errorf("Title = %q, want %q", first.Title, "Rates hold steady")
	}
	if first.Link != "https://example.com/rates" {
		t.Errorf("Link = %q", first.Link)
	}
	if first.GUID != "rates-1" {
		t.Errorf("GUID = %q, want rates-1", first.GUID)
	}
	want := time.Date(2006, 1, 2, 22, 4, 5, 0, time.UTC)
	if !first.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want %v", first.PubDate, want)
	}
	if first.Description != "The committee kept rates unchanged." {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Content != "<p>Full <em>story</em></p>" {
		t.Errorf("Content = %q", first.Content)
	}
	if first.Thumbnail != "https://example.com/rates.jpg" {
		t.Errorf("Thumbnail = %q", first.Thumbnail)
	}
	if first.Source != "Fed Watch" || first.Color != "#ff0000" {
		t.Errorf("source attribution = %q/%q", first.Source, first.Color)
	}

	second := items[1]
	if second.Title != parse.DefaultTitle {
		t.Errorf("Title = %q, want %q", second.Title, parse.DefaultTitle)
	}
	if second.GUID == "" {
		t.Error("expected a fallback identity token, got empty string")
	}
	if !second.PubDate.Equal(clockNow) {
		t.Errorf("PubDate = %v, want clock fallback %v", second.PubDate, clockNow)
	}
}

func TestParse_Atom(t *testing.T) {
	items := newParser().Parse(atomDoc, "NOAA", "#00f")
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}

	it := items[0]
	if it.Link != "https://example.com/storm" {
		t.Errorf("Link = %q, want href attribute value", it.Link)
	}
	if it.GUID != "urn:swx:1" {
		t.Errorf("GUID = %q", it.GUID)
	}
	want := time.Date(2026, 2, 1, 11, 30, 0, 0, time.UTC)
	if !it.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want updated %v", it.PubDate, want)
	}
	if it.Description != "Kp index expected to reach 6" {
		t.Errorf("Description = %q", it.Description)
	}
	if it.Content == "" {
		t.Error("expected content to be populated")
	}
}

func TestParse_Idempotent(t *testing.T) {
	p := newParser()
	for _, doc := range []string{rssDoc, atomDoc, truncatedDoc} {
		a := p.Parse(doc, "src", "#111")
		b := p.Parse(doc, "src", "#111")
		if !reflect.DeepEqual(a, b) {
			t.Errorf("parsing twice produced different items:\n%+v\n%+v", a, b)
		}
	}
}

func TestParse_EmptyFeedIsNotAnError(t *testing.T) {
	items := parse.Parse(`<rss version="2.0"><channel><title>x</title></channel></rss>`, "src", "")
	if items == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(items) != 0 {
		t.Fatalf("len(items) = %d, want 0", len(items))
	}
}

func TestParse_MalformedInputNeverPanics(t *testing.T) {
	inputs := []string{
		"",
		"<",
		"not xml at all",
		"<rss><channel><item>",
		"<<<>>>",
		"<item><title><![CDATA[x</title>",
		"<feed><entry><link href='",
		"\x00\xff\xfe<entry></entry>",
		rssDoc[:len(rssDoc)/2],
	}
	p := newParser()
	for _, in := range inputs {
		items := p.Parse(in, "src", "")
		if items == nil {
			t.Errorf("Parse(%q) returned nil, want non-nil slice", in)
		}
	}
}

func TestParse_FallsBackToScanner(t *testing.T) {
	items := newParser().Parse(truncatedDoc, "DOL", "#0a0")
	if len(items) == 0 {
		t.Fatal("expected entries recovered from the malformed document")
	}
	if items[0].Title != "Claims fall" || items[0].Link != "https://example.com/claims" {
		t.Errorf("recovered item = %+v", items[0])
	}
}
