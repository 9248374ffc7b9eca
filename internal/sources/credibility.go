package sources

import (
	"fmt"
	"net"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	govCredibility     = 0.92
	eduCredibility     = 0.85
	orgCredibility     = 0.65
	defaultCredibility = 0.50
)

var builtinCredibility = map[string]float64{
	"reuters.com":            0.95,
	"apnews.com":             0.95,
	"bbc.com":                0.92,
	"bbc.co.uk":              0.92,
	"npr.org":                0.90,
	"nature.com":             0.95,
	"science.org":            0.94,
	"who.int":                0.93,
	"cdc.gov":                0.95,
	"nih.gov":                0.95,
	"nytimes.com":            0.88,
	"washingtonpost.com":     0.87,
	"wsj.com":                0.88,
	"theguardian.com":        0.86,
	"economist.com":          0.88,
	"ft.com":                 0.88,
	"bloomberg.com":          0.88,
	"pbs.org":                0.88,
	"snopes.com":             0.85,
	"factcheck.org":          0.90,
	"politifact.com":         0.88,
	"fullfact.org":           0.88,
	"cnn.com":                0.78,
	"foxnews.com":            0.70,
	"nbcnews.com":            0.80,
	"cbsnews.com":            0.80,
	"abcnews.go.com":         0.80,
	"aljazeera.com":          0.78,
	"wikipedia.org":          0.72,
	"medium.com":             0.45,
	"substack.com":           0.45,
	"reddit.com":             0.30,
	"quora.com":              0.30,
	"x.com":                  0.25,
	"twitter.com":            0.25,
	"facebook.com":           0.25,
	"tiktok.com":             0.20,
	"youtube.com":            0.35,
	"infowars.com":           0.10,
	"naturalnews.com":        0.10,
	"theonion.com":           0.05,
	"babylonbee.com":         0.05,
	"dailymail.co.uk":        0.45,
	"breitbart.com":          0.35,
	"huffpost.com":           0.60,
	"usatoday.com":           0.78,
	"latimes.com":            0.84,
	"time.com":               0.82,
	"scientificamerican.com": 0.90,
}

// CredibilityTable maps domains to reputation scores. It is built once at
// startup and read concurrently afterwards; it has no mutating methods.
type CredibilityTable struct {
	scores map[string]float64
}

// NewCredibilityTable returns the built-in table with overrides applied.
func NewCredibilityTable(overrides map[string]float64) *CredibilityTable {
	scores := make(map[string]float64, len(builtinCredibility)+len(overrides))
	for k, v := range builtinCredibility {
		scores[k] = v
	}
	for k, v := range overrides {
		if d := NormalizeDomain(k); d != "" {
			scores[d] = clamp01(v)
		}
	}
	return &CredibilityTable{scores: scores}
}

// LoadCredibilityTable reads a YAML document of `domain: score` overrides.
// An empty path yields the built-in table.
func LoadCredibilityTable(path string) (*CredibilityTable, error) {
	if strings.TrimSpace(path) == "" {
		return NewCredibilityTable(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credibility file %s: %w", path, err)
	}
	var doc struct {
		Domains map[string]float64 `yaml:"domains"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse credibility file %s: %w", path, err)
	}
	for domain, score := range doc.Domains {
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("credibility for %s out of range: %v", domain, score)
		}
	}
	return NewCredibilityTable(doc.Domains), nil
}

// Lookup returns the credibility for a domain: an exact table match, then the
// closest listed parent domain, then TLD heuristics.
func (t *CredibilityTable) Lookup(domain string) float64 {
	d := NormalizeDomain(domain)
	if d == "" {
		return defaultCredibility
	}
	if t != nil {
		if v, ok := t.scores[d]; ok {
			return v
		}
		for parent := parentDomain(d); parent != ""; parent = parentDomain(parent) {
			if v, ok := t.scores[parent]; ok {
				return v
			}
		}
	}
	switch {
	case strings.HasSuffix(d, ".gov"):
		return govCredibility
	case strings.HasSuffix(d, ".edu"):
		return eduCredibility
	case strings.HasSuffix(d, ".org"):
		return orgCredibility
	default:
		return defaultCredibility
	}
}

// Len reports the number of listed domains.
func (t *CredibilityTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.scores)
}

// NormalizeDomain lowercases a host and strips "www.", ports and trailing dots.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(d); err == nil {
		d = host
	}
	d = strings.TrimSuffix(d, ".")
	d = strings.TrimPrefix(d, "www.")
	return d
}

// parentDomain drops the leftmost label, stopping before a bare TLD.
func parentDomain(d string) string {
	_, rest, ok := strings.Cut(d, ".")
	if !ok || !strings.Contains(rest, ".") {
		return ""
	}
	return rest
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
