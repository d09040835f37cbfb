package parse

import (
	"testing"
	"time"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	return &Parser{Now: func() time.Time { return fixedNow }}
}

// brokenDoc is not well-formed XML (unclosed channel, stray ampersand) but
// still carries recoverable entries of both kinds.
const brokenDoc = `<rss><channel><title>Mixed & broken</title>
<item>
  <title>Payrolls beat estimates</title>
  <link>https://example.com/payrolls</link>
  <pubDate>Fri, 06 Mar 2026 13:30:00 +0000</pubDate>
  <description><![CDATA[Nonfarm payrolls rose <b>275k</b>]]></description>
  <enclosure url="https://example.com/chart.png" type="image/png" length="1"/>
</item>
<entry>
  <title type="html">Atom &amp; friends</title>
  <link rel="alternate" href="https://example.com/atom"/>
  <updated>2026-03-05T08:00:00Z</updated>
  <summary>Summary text</summary>
</entry>
<item><title>Half`

func TestScan_MixedItemsAndEntries(t *testing.T) {
	items := newTestParser().scan(brokenDoc, "BLS", "#0a0")
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(items))
	}

	rss := items[0]
	if rss.Title != "Payrolls beat estimates" {
		t.Errorf("Title = %q", rss.Title)
	}
	if rss.GUID != "https://example.com/payrolls" {
		t.Errorf("GUID = %q, want link fallback", rss.GUID)
	}
	if rss.Description != "Nonfarm payrolls rose 275k" {
		t.Errorf("Description = %q", rss.Description)
	}
	if rss.Content != "Nonfarm payrolls rose <b>275k</b>" {
		t.Errorf("Content = %q, want description fallback", rss.Content)
	}
	if rss.Thumbnail != "https://example.com/chart.png" {
		t.Errorf("Thumbnail = %q", rss.Thumbnail)
	}
	if want := time.Date(2026, 3, 6, 13, 30, 0, 0, time.UTC); !rss.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want %v", rss.PubDate, want)
	}

	atom := items[1]
	if atom.Title != "Atom & friends" {
		t.Errorf("Title = %q", atom.Title)
	}
	if atom.Link != "https://example.com/atom" {
		t.Errorf("Link = %q, want href value", atom.Link)
	}
	if want := time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC); !atom.PubDate.Equal(want) {
		t.Errorf("PubDate = %v, want %v", atom.PubDate, want)
	}
}

func TestScan_UnparseableDateUsesClock(t *testing.T) {
	doc := `<item><title>x</title><pubDate>sometime soon</pubDate></item>`
	items := newTestParser().scan(doc, "src", "")
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if !items[0].PubDate.Equal(fixedNow) {
		t.Errorf("PubDate = %v, want %v", items[0].PubDate, fixedNow)
	}
}

func TestUnwrapCDATA(t *testing.T) {
	cases := map[string]string{
		"plain":                          "plain",
		"<![CDATA[wrapped]]>":            "wrapped",
		"a <![CDATA[b]]> c":              "a b c",
		"<![CDATA[one]]><![CDATA[two]]>": "onetwo",
	}
	for in, want := range cases {
		if got := unwrapCDATA(in); got != want {
			t.Errorf("unwrapCDATA(%q) = %q, want %q", in, got, want)
		}
	}
}
