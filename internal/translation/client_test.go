package translation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"horse.fit/polyglot/internal/language"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []TranslateRequest
	failFor  map[string]error
	failN    int32
	delay    time.Duration
	reply    func(req TranslateRequest) string
}

func (f *fakeProvider) Name() string                 { return "fake" }
func (f *fakeProvider) SupportedLanguages() []string { return nil }

func (f *fakeProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failFor[req.TargetLang]; ok {
		return nil, err
	}
	if remaining := atomic.AddInt32(&f.failN, -1); remaining >= 0 {
		return nil, fmt.Errorf("transient backend error")
	}

	text := "[" + req.TargetLang + "] " + req.Text
	if f.reply != nil {
		text = f.reply(req)
	}
	return &TranslateResponse{Text: text, SourceLang: req.SourceLang, TargetLang: req.TargetLang, ProviderName: "fake"}, nil
}

func newTestClient(t *testing.T, provider Provider) *Client {
	t.Helper()
	catalog, err := language.Load()
	require.NoError(t, err)
	client := NewClient(provider, catalog)
	client.baseBackoff = time.Millisecond
	return client
}

func TestTranslateCanonicalizesLanguages(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{failN: -1}
	client := newTestClient(t, provider)

	got, err := client.Translate(context.Background(), "Hello", "hindi", "auto")
	require.NoError(t, err)
	require.Equal(t, "[hi] Hello", got)

	require.Len(t, provider.requests, 1)
	require.Equal(t, "hi", provider.requests[0].TargetLang)
	require.Equal(t, "auto", provider.requests[0].SourceLang)
}

func TestTranslateRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{failN: 2}
	client := newTestClient(t, provider)

	got, err := client.Translate(context.Background(), "Hello", "french", "auto")
	require.NoError(t, err)
	require.Equal(t, "[fr] Hello", got)
	require.Len(t, provider.requests, 3)
}

func TestTranslateGivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{failN: 100}
	client := newTestClient(t, provider)

	_, err := client.Translate(context.Background(), "Hello", "french", "auto")
	require.Error(t, err)
	require.Contains(t, err.Error(), "after 3 attempts")
	require.Len(t, provider.requests, 3)
}

func TestTranslateChunksLongText(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{failN: -1, reply: func(req TranslateRequest) string {
		return fmt.Sprintf("<%d>", utf8.RuneCountInString(req.Text))
	}}
	client := newTestClient(t, provider)
	client.chunkLimit = 10

	// Three sentences, each under the limit but pairwise over it.
	got, err := client.Translate(context.Background(), "Aaaa bbb. Cccc ddd. Eeee fff.", "german", "auto")
	require.NoError(t, err)
	require.Equal(t, 3, len(provider.requests))
	require.Equal(t, "<10> <10> <9>", got)
}

func TestSplitChunksIsDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("one two three. ", 40)
	first := SplitChunks(text, 50)
	second := SplitChunks(text, 50)
	require.Equal(t, first, second)
	require.Greater(t, len(first), 1)

	for _, chunk := range first {
		require.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
	require.Equal(t, text, strings.Join(first, ""))
}

func TestSplitChunksFallsBackToFixedSlices(t *testing.T) {
	t.Parallel()

	// No sentence boundary at all.
	text := strings.Repeat("é", 25)
	chunks := SplitChunks(text, 10)
	require.Equal(t, []string{strings.Repeat("é", 10), strings.Repeat("é", 10), strings.Repeat("é", 5)}, chunks)
}

func TestSplitChunksShortTextPassesThrough(t *testing.T) {
	t.Parallel()

	chunks := SplitChunks("short", 5000)
	require.Equal(t, []string{"short"}, chunks)
}

func TestTranslateManyRejectsBadCounts(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{failN: -1}
	client := newTestClient(t, provider)

	_, err := client.TranslateMany(context.Background(), "Hello", nil, "auto")
	require.ErrorIs(t, err, ErrNoTargetLanguage)

	_, err = client.TranslateMany(context.Background(), "Hello", []string{"a", "b", "c", "d", "e", "f"}, "auto")
	require.ErrorIs(t, err, ErrTooManyLanguages)
	// Rejected before any network activity.
	require.Empty(t, provider.requests)
}

func TestTranslateManyToleratesPartialFailure(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{
		failN:   -1,
		failFor: map[string]error{"fr": fmt.Errorf("quota exceeded")},
	}
	client := newTestClient(t, provider)

	results, err := client.TranslateMany(context.Background(), "Hello", []string{"hindi", "french", "german"}, "auto")
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.Equal(t, "hindi", results[0].Language)
	require.NoError(t, results[0].Err)
	require.Equal(t, "[hi] Hello", results[0].Text)

	require.Equal(t, "french", results[1].Language)
	require.Error(t, results[1].Err)
	require.Contains(t, results[1].Marker(), "Translation failed for french")

	require.NoError(t, results[2].Err)
	require.Equal(t, "[de] Hello", results[2].Text)
}

func TestTranslateManyRunsConcurrently(t *testing.T) {
	t.Parallel()

	perCall := 100 * time.Millisecond
	provider := &fakeProvider{failN: -1, delay: perCall}
	client := newTestClient(t, provider)

	started := time.Now()
	results, err := client.TranslateMany(context.Background(), "Hello", []string{"hindi", "french", "german", "italian", "korean"}, "auto")
	elapsed := time.Since(started)

	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, result := range results {
		require.NoError(t, result.Err)
	}
	// Near the slowest single call, nowhere near the 5-call sum.
	require.Less(t, elapsed, 3*perCall)
}
