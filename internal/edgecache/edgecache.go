// Package edgecache is the first-tier response cache that sits in front of
// every API route. It is independent of the category store: it only knows
// request keys and rendered responses.
package edgecache

import (
	"bytes"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const (
	DefaultTTL  = 30 * time.Second
	DefaultSize = 256

	HeaderStatus = "X-Edge-Cache"
)

// Response is a rendered HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type entry struct {
	resp    Response
	expires time.Time
}

// Cache is an LRU of responses with per-entry expiry.
type Cache struct {
	lru *lru.Cache
	ttl time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// New returns a cache holding at most size responses for ttl each.
func New(size int, ttl time.Duration) (*Cache, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the clock used for expiry.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *Cache) clock() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now()
}

// Match returns the live response stored under key.
func (c *Cache) Match(key string) (Response, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return Response{}, false
	}
	e := v.(entry)
	if !c.clock().Before(e.expires) {
		c.lru.Remove(key)
		return Response{}, false
	}
	return e.resp, true
}

// Put stores resp under key. A non-positive ttl uses the cache default.
func (c *Cache) Put(key string, resp Response, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.lru.Add(key, entry{resp: resp, expires: c.clock().Add(ttl)})
}

// Len reports the number of stored responses, expired or not.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Key identifies a request by method, path and sorted query.
func Key(r *http.Request) string {
	q := r.URL.Query()
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Method)
	b.WriteByte(' ')
	b.WriteString(r.URL.Path)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		vals := append([]string(nil), q[k]...)
		sort.Strings(vals)
		for j, v := range vals {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Bypass reports whether the caller asked for a refresh.
func Bypass(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("refresh")) {
	case "1", "true":
		return true
	}
	return false
}

// Middleware serves GET requests from the cache and stores 200 responses,
// except those marked Cache-Control: no-store.
func (c *Cache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || Bypass(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := Key(r)
		if resp, ok := c.Match(key); ok {
			h := w.Header()
			for k, v := range resp.Header {
				h[k] = append([]string(nil), v...)
			}
			h.Set(HeaderStatus, "HIT")
			w.WriteHeader(resp.Status)
			w.Write(resp.Body)
			return
		}

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		w.Header().Set(HeaderStatus, "MISS")
		next.ServeHTTP(rec, r)

		if rec.status == http.StatusOK && !noStore(w.Header()) {
			header := w.Header().Clone()
			header.Del(HeaderStatus)
			c.Put(key, Response{Status: rec.status, Header: header, Body: rec.body.Bytes()}, 0)
		}
	})
}

func noStore(h http.Header) bool {
	for _, v := range h.Values("Cache-Control") {
		for _, d := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(d), "no-store") {
				return true
			}
		}
	}
	return false
}

// recorder tees the body into a buffer while writing through.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
