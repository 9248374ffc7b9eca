package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"factcheck-backend/internal/shared/metrics"
	"factcheck-backend/internal/shared/telemetry"
	"factcheck-backend/internal/shared/util"
)

// Searcher is the external web-search collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]RawResult, error)
}

// Aggregator turns raw search hits into deduplicated, credibility-annotated
// sources. It never fails the caller: search errors yield an empty list.
type Aggregator struct {
	Searcher Searcher
	Table    *CredibilityTable
	Cache    Cache
	CacheTTL time.Duration
	Now      func() time.Time
}

// Search runs the query through the collaborator (or the cache) and returns at
// most limit sources in search rank order.
func (a *Aggregator) Search(ctx context.Context, query string, limit int) []Source {
	query = strings.TrimSpace(query)
	if a == nil || a.Searcher == nil || query == "" || limit <= 0 {
		return []Source{}
	}

	key := cacheKey(query, limit)
	if raw, ok := a.cached(ctx, key); ok {
		return Aggregate(raw, a.Table, limit, a.now())
	}

	raw, err := a.Searcher.Search(ctx, query, limit)
	if err != nil {
		telemetry.Warn("search.failed", map[string]any{
			"query_len": len(query),
			"error":     err.Error(),
		})
		return []Source{}
	}
	if len(raw) > 0 && a.Cache != nil {
		if err := a.Cache.Set(ctx, key, raw, a.CacheTTL); err != nil {
			telemetry.Warn("search.cache", map[string]any{"op": "set", "error": err.Error()})
		}
	}
	return Aggregate(raw, a.Table, limit, a.now())
}

func (a *Aggregator) cached(ctx context.Context, key string) ([]RawResult, bool) {
	if a.Cache == nil {
		return nil, false
	}
	raw, ok, err := a.Cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.IncSearchCache("error")
		telemetry.Warn("search.cache", map[string]any{"op": "get", "error": err.Error()})
		return nil, false
	case !ok:
		metrics.IncSearchCache("miss")
		return nil, false
	default:
		metrics.IncSearchCache("hit")
		return raw, true
	}
}

func (a *Aggregator) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now().UTC()
}

// Aggregate normalizes raw hits: malformed entries are dropped, duplicates by
// canonical URL keep their first (highest ranked) occurrence, and every source
// is annotated from the credibility table. The canonical form is only a dedupe
// key; each Source keeps the link the provider returned.
func Aggregate(raw []RawResult, table *CredibilityTable, limit int, now time.Time) []Source {
	out := make([]Source, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		if limit > 0 && len(out) >= limit {
			break
		}
		canonical, host, ok := CanonicalURL(r.URL)
		if !ok {
			continue
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		domain := NormalizeDomain(r.Domain)
		if domain == "" || strings.ContainsAny(domain, "/ ") {
			domain = host
		}
		title := strings.TrimSpace(r.Title)
		if title == "" {
			title = domain
		}
		out = append(out, Source{
			Title:         title,
			URL:           strings.TrimSpace(r.URL),
			Domain:        domain,
			PublishedDate: ParsePublished(r.PublishedDate, now),
			Credibility:   table.Lookup(domain),
			Snippet:       collapseSpace(r.Snippet),
		})
	}
	return out
}

var trackingParams = map[string]struct{}{
	"fbclid": {}, "gclid": {}, "mc_cid": {}, "mc_eid": {}, "ref": {}, "ref_src": {}, "igshid": {},
}

// CanonicalURL normalizes a URL for deduplication: http and https collapse,
// lowercase host, no "www.", no fragment, no tracking parameters, no trailing
// slash. It is not meant to be followed.
func CanonicalURL(raw string) (canonical, host string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}
	host = NormalizeDomain(u.Host)
	if host == "" {
		return "", "", false
	}

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") {
			q.Del(k)
			continue
		}
		if _, drop := trackingParams[lk]; drop {
			q.Del(k)
		}
	}
	path := strings.TrimRight(u.EscapedPath(), "/")

	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(host)
	b.WriteString(path)
	if enc := q.Encode(); enc != "" {
		b.WriteString("?")
		b.WriteString(enc)
	}
	return b.String(), host, true
}

var relativeAge = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week|month|year)s?\s+ago$`)

var publishedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02/01/2006",
}

// ParsePublished accepts absolute dates in common layouts and relative ages
// such as "3 days ago". Unparseable input yields nil.
func ParsePublished(raw string, now time.Time) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	m := relativeAge.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	var t time.Time
	switch m[2] {
	case "minute":
		t = now.Add(-time.Duration(n) * time.Minute)
	case "hour":
		t = now.Add(-time.Duration(n) * time.Hour)
	case "day":
		t = now.AddDate(0, 0, -n)
	case "week":
		t = now.AddDate(0, 0, -7*n)
	case "month":
		t = now.AddDate(0, -n, 0)
	case "year":
		t = now.AddDate(-n, 0, 0)
	}
	t = t.UTC()
	return &t
}

func cacheKey(query string, limit int) string {
	return fmt.Sprintf("search:%s:%d", util.ShortHash(strings.ToLower(query), 12), limit)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
