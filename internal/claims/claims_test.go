package claims

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factcheck-backend/internal/llm"
)

type stubExtractor struct {
	out []string
	err error
}

func (s stubExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	return s.out, s.err
}

func TestParseClaims(t *testing.T) {
	got, err := ParseClaims("```json\n{\"claims\":[\"A  is B.\",\"a is b.\",\"\",\"C\",\"D\",\"E\",\"F\",\"G\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"A is B.", "C", "D", "E", "F"}, got)

	got, err = ParseClaims(`{"claims":[{"text":"X happened"}]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"X happened"}, got)

	_, err = ParseClaims(`{"claims":[]}`)
	assert.True(t, errors.Is(err, llm.ErrParse))
}

func TestModelExtractor(t *testing.T) {
	client := llm.CompleterFunc(func(ctx context.Context, req llm.Request) (string, error) {
		assert.True(t, req.JSON)
		assert.Equal(t, "Some text", req.User)
		return `{"claims":["One"]}`, nil
	})
	got, err := NewModelExtractor(client, "gpt-4o-mini").Extract(context.Background(), "Some text")
	require.NoError(t, err)
	assert.Equal(t, []string{"One"}, got)

	_, err = NewModelExtractor(nil, "x").Extract(context.Background(), "t")
	assert.True(t, errors.Is(err, llm.ErrNotConfigured))
}

func TestExtractOrFallback(t *testing.T) {
	list, synthetic := ExtractOrFallback(context.Background(), stubExtractor{out: []string{"a", "b"}}, "text")
	assert.False(t, synthetic)
	assert.Equal(t, []string{"a", "b"}, list)

	list, synthetic = ExtractOrFallback(context.Background(), stubExtractor{err: llm.ErrParse}, "Vaccines cause autism. Share now!")
	assert.True(t, synthetic)
	assert.Equal(t, []string{"Vaccines cause autism."}, list)

	list, synthetic = ExtractOrFallback(context.Background(), nil, "   ")
	assert.True(t, synthetic)
	assert.Empty(t, list)

	many := stubExtractor{out: []string{"1", "2", "3", "4", "5", "6", "7"}}
	list, _ = ExtractOrFallback(context.Background(), many, "t")
	assert.Len(t, list, MaxClaims)
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "Headline here", FirstSentence("Headline here\nBody text. More."))
	assert.Equal(t, "U.S. GDP grew 3%.", FirstSentence("U.S. GDP grew 3%. Analysts disagree."))
	long := strings.Repeat("word ", 100)
	assert.LessOrEqual(t, len([]rune(FirstSentence(long))), 200)
	assert.Equal(t, "", FirstSentence(""))
	assert.Equal(t, SearchQuery("Is   this true?  Yes"), "Is this true?")
}
