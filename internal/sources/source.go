package sources

import "time"

// HighQualityThreshold is the credibility at or above which a source counts as
// high quality for gating and independent agreement.
const HighQualityThreshold = 0.7

// Source is one piece of corroborating evidence. Credibility is looked up once
// from the domain table and never changes afterwards.
type Source struct {
	Title         string     `json:"title"`
	URL           string     `json:"url"`
	Domain        string     `json:"domain"`
	PublishedDate *time.Time `json:"publishedDate,omitempty"`
	Credibility   float64    `json:"credibilityScore"`
	Snippet       string     `json:"snippet"`
}

// IsHighQuality reports whether the source clears HighQualityThreshold.
func (s Source) IsHighQuality() bool {
	return s.Credibility >= HighQualityThreshold
}

// RawResult is one search hit as returned by a search collaborator, before
// normalization.
type RawResult struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Domain        string `json:"domain,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Snippet       string `json:"snippet,omitempty"`
}

// RecencyWeight buckets a publication date by age. Undated sources fall into
// the oldest bucket.
func RecencyWeight(published *time.Time, now time.Time) float64 {
	if published == nil || published.IsZero() {
		return 0.4
	}
	age := now.Sub(*published)
	switch {
	case age < 7*24*time.Hour:
		return 1.0
	case age < 30*24*time.Hour:
		return 0.9
	case age < 365*24*time.Hour:
		return 0.7
	default:
		return 0.4
	}
}

// Metrics summarizes the evidence collected for one job.
type Metrics struct {
	Count           int     `json:"count"`
	HighQuality     int     `json:"highQuality"`
	MeanCredibility float64 `json:"meanCredibility"`
	MeanRecency     float64 `json:"meanRecency"`
}

// Summarize computes quality and recency metrics over sources.
func Summarize(list []Source, now time.Time) Metrics {
	m := Metrics{Count: len(list)}
	if len(list) == 0 {
		return m
	}
	var cred, rec float64
	for _, s := range list {
		cred += s.Credibility
		rec += RecencyWeight(s.PublishedDate, now)
		if s.IsHighQuality() {
			m.HighQuality++
		}
	}
	m.MeanCredibility = cred / float64(len(list))
	m.MeanRecency = rec / float64(len(list))
	return m
}
