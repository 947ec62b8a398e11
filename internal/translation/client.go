package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"horse.fit/polyglot/internal/language"
)

const (
	// MaxTargetLanguages bounds one multi-language request.
	MaxTargetLanguages = 5
	// chunkRuneLimit is the backend's per-request text ceiling.
	chunkRuneLimit = 5000

	defaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

var (
	ErrTooManyLanguages = fmt.Errorf("a maximum of %d target languages are allowed per request", MaxTargetLanguages)
	ErrNoTargetLanguage = errors.New("at least one target language must be specified")
)

// Result is the outcome for one target language of a fan-out. Exactly one of
// Text and Err is meaningful.
type Result struct {
	Language string
	Text     string
	Err      error
}

// Marker renders the failure marker string reported in place of translated
// text when a language fails.
func (r Result) Marker() string {
	if r.Err == nil {
		return r.Text
	}
	return fmt.Sprintf("Translation failed for %s: %v", r.Language, r.Err)
}

// Client wraps a Provider with language canonicalization, oversized-text
// chunking, bounded retry, and concurrent multi-language fan-out.
type Client struct {
	provider    Provider
	catalog     *language.Catalog
	chunkLimit  int
	maxAttempts int
	baseBackoff time.Duration
}

func NewClient(provider Provider, catalog *language.Catalog) *Client {
	return &Client{
		provider:    provider,
		catalog:     catalog,
		chunkLimit:  chunkRuneLimit,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

// Translate converts text to a single target language. Text above the chunk
// limit is split (preferring ". " sentence boundaries, falling back to
// fixed-size rune slices), each chunk translated independently, and the
// pieces rejoined in order with a single space.
func (c *Client) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if c == nil || c.provider == nil {
		return "", fmt.Errorf("translation client is not initialized")
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("text is required")
	}

	target := c.catalog.Resolve(targetLang)
	if target == language.Auto {
		return "", fmt.Errorf("target language is required")
	}
	source := c.catalog.Resolve(sourceLang)

	chunks := SplitChunks(text, c.chunkLimit)
	translated := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		piece, err := c.translateWithRetry(ctx, chunk, target, source)
		if err != nil {
			return "", err
		}
		translated = append(translated, piece)
	}

	// NOTE: the single-space join can distort boundaries for scripts that
	// are not space delimited; kept for compatibility with the rejoin rule
	// the API has always used.
	return strings.Join(translated, " "), nil
}

// TranslateMany fans text out to every target language concurrently. One
// language failing never aborts its siblings; each slot carries its own
// result or error, ordered as requested.
func (c *Client) TranslateMany(ctx context.Context, text string, targetLangs []string, sourceLang string) ([]Result, error) {
	if c == nil || c.provider == nil {
		return nil, fmt.Errorf("translation client is not initialized")
	}
	if len(targetLangs) == 0 {
		return nil, ErrNoTargetLanguage
	}
	if len(targetLangs) > MaxTargetLanguages {
		return nil, ErrTooManyLanguages
	}

	results := make([]Result, len(targetLangs))

	// The group is a join point only: workers record failure into their own
	// slot and return nil so siblings are never cancelled.
	var group errgroup.Group
	group.SetLimit(MaxTargetLanguages)
	for i, lang := range targetLangs {
		i, lang := i, lang
		group.Go(func() error {
			translated, err := c.Translate(ctx, text, lang, sourceLang)
			results[i] = Result{Language: lang, Text: translated, Err: err}
			return nil
		})
	}
	_ = group.Wait()

	return results, nil
}

func (c *Client) translateWithRetry(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.provider.Translate(ctx, TranslateRequest{
			Text:       text,
			SourceLang: sourceLang,
			TargetLang: targetLang,
		})
		if err == nil {
			return resp.Text, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", fmt.Errorf("translate to %s: %w", targetLang, err)
		}
		if attempt == c.maxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		backoff *= 2
	}

	return "", fmt.Errorf("translate to %s after %d attempts: %w", targetLang, c.maxAttempts, lastErr)
}

// SplitChunks segments text into pieces of at most limit runes. Splitting
// prefers ". " sentence boundaries; a single sentence longer than the limit
// degrades to fixed-size rune slices. The segmentation is deterministic.
func SplitChunks(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	sentences := strings.SplitAfter(text, ". ")
	chunks := make([]string, 0, len(sentences))
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		if currentRunes > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentRunes = 0
		}
	}

	for _, sentence := range sentences {
		sentenceRunes := utf8.RuneCountInString(sentence)
		if sentenceRunes > limit {
			flush()
			chunks = append(chunks, fixedRuneSlices(sentence, limit)...)
			continue
		}
		if currentRunes+sentenceRunes > limit {
			flush()
		}
		current.WriteString(sentence)
		currentRunes += sentenceRunes
	}
	flush()

	return chunks
}

func fixedRuneSlices(text string, limit int) []string {
	runes := []rune(text)
	slices := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		slices = append(slices, string(runes[start:end]))
	}
	return slices
}
