package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"factcheck-backend/internal/llm"
	"factcheck-backend/internal/shared/metrics"
)

const noTextMarker = "NO_TEXT_FOUND"

var (
	ErrNoTextFound = errors.New("no text found in image")
	ErrRateLimited = errors.New("ocr rate limited")
	ErrTransport   = errors.New("ocr transport error")
)

// Image references a screenshot by URL or by bytes.
type Image struct {
	URL  string
	Data []byte
	MIME string
}

func (i Image) empty() bool {
	return strings.TrimSpace(i.URL) == "" && len(i.Data) == 0
}

// Reader extracts plain text from an image.
type Reader interface {
	Read(ctx context.Context, img Image) (string, error)
}

// VisionReader reads screenshots with a vision-capable chat model.
type VisionReader struct {
	client llm.Completer
	name   string
}

// NewVisionReader wraps client with rate-limit retry. attempts bounds the
// number of tries for 429-class failures.
func NewVisionReader(client llm.Completer, name string, attempts int, callTimeout time.Duration) *VisionReader {
	return &VisionReader{client: llm.WithRetry(client, name, attempts, callTimeout), name: name}
}

func (r *VisionReader) Read(ctx context.Context, img Image) (string, error) {
	if r == nil || r.client == nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, llm.ErrNotConfigured)
	}
	if img.empty() {
		return "", fmt.Errorf("%w: no image supplied", ErrTransport)
	}
	raw, err := r.client.Complete(ctx, llm.Request{
		System:    llm.MustSystemPrompt(llm.PromptOCR),
		User:      "Transcribe all text in this screenshot.",
		ImageURL:  img.URL,
		ImageData: img.Data,
		ImageMIME: img.MIME,
	})
	if err != nil {
		if errors.Is(err, llm.ErrRateLimited) {
			metrics.IncModelCall("ocr", r.name, "rate_limited")
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		if errors.Is(err, llm.ErrEmptyResponse) {
			metrics.IncModelCall("ocr", r.name, "no_text")
			return "", ErrNoTextFound
		}
		metrics.IncModelCall("ocr", r.name, "error")
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	text := Clean(raw)
	if !hasReadableText(text) {
		metrics.IncModelCall("ocr", r.name, "no_text")
		return "", ErrNoTextFound
	}
	metrics.IncModelCall("ocr", r.name, "ok")
	return text, nil
}

// Clean strips code fences and the no-text marker and normalizes line endings.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], " .") {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, noTextMarker) {
		return ""
	}
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		out = append(out, strings.TrimRightFunc(l, unicode.IsSpace))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func hasReadableText(s string) bool {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			n++
			if n >= 3 {
				return true
			}
		}
	}
	return false
}

var _ Reader = (*VisionReader)(nil)
