package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	feedsPath = ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestCategoriesCommand(t *testing.T) {
	if err := runRoot(t, "categories"); err != nil {
		t.Fatalf("categories: %v", err)
	}
	if len(cat.Categories()) == 0 {
		t.Fatal("expected the built-in catalog to declare categories")
	}
}

func TestFetchCommand(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss version="2.0"><channel><item><title>CPI release</title><link>https://example.com/cpi</link></item></channel></rss>`))
	}))
	defer upstream.Close()

	path := filepath.Join(t.TempDir(), "feeds.yaml")
	doc := "categories:\n  - name: LABOR\n    feeds:\n      - id: bls-news\n        url: " + upstream.URL + "\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := runRoot(t, "fetch", "labor", "--feeds", path); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := runRoot(t, "fetch", "ALL", "--feeds", path); err == nil {
		t.Fatal("expected fetch ALL to be rejected")
	}
	if err := runRoot(t, "fetch", "GOLD", "--feeds", path); err == nil {
		t.Fatal("expected unknown category to fail")
	}
}
