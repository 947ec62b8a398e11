package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultGoogleEndpoint is the unauthenticated web translation endpoint.
const DefaultGoogleEndpoint = "https://translate.googleapis.com/translate_a/single"

// GoogleProvider translates text through the public translate_a/single
// endpoint. The payload is a nested JSON array; the first element carries the
// translated segments and the third the detected source language.
type GoogleProvider struct {
	endpointURL string
	client      *http.Client
}

func NewGoogleProvider(endpoint string) *GoogleProvider {
	return &GoogleProvider{
		endpointURL: normalizeEndpoint(endpoint),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

func (p *GoogleProvider) SupportedLanguages() []string {
	// The endpoint accepts any ISO code; unknown codes fail per request.
	return nil
}

func (p *GoogleProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("google provider is nil")
	}
	text := req.Text
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required")
	}

	sourceLang := strings.TrimSpace(req.SourceLang)
	if sourceLang == "" {
		sourceLang = "auto"
	}
	targetLang := strings.TrimSpace(req.TargetLang)
	if targetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}

	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("dt", "t")
	query.Set("sl", sourceLang)
	query.Set("tl", targetLang)
	query.Set("q", text)

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpointURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build translation request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send translation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("translation endpoint status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	translated, detectedSource, err := decodeGooglePayload(respBody)
	if err != nil {
		return nil, err
	}
	if translated == "" {
		return nil, fmt.Errorf("translation response was empty")
	}
	if detectedSource == "" {
		detectedSource = sourceLang
	}

	return &TranslateResponse{
		Text:         translated,
		SourceLang:   detectedSource,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

func decodeGooglePayload(body []byte) (translated, detectedSource string, err error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", "", fmt.Errorf("decode translation response: %w", err)
	}
	if len(payload) == 0 {
		return "", "", fmt.Errorf("translation response missing segments")
	}

	var segments []json.RawMessage
	if err := json.Unmarshal(payload[0], &segments); err != nil {
		return "", "", fmt.Errorf("decode translation segments: %w", err)
	}

	var builder strings.Builder
	for _, segment := range segments {
		var parts []json.RawMessage
		if err := json.Unmarshal(segment, &parts); err != nil || len(parts) == 0 {
			continue
		}
		var part string
		if err := json.Unmarshal(parts[0], &part); err != nil {
			continue
		}
		builder.WriteString(part)
	}

	if len(payload) > 2 {
		// Best effort; a null here is normal.
		_ = json.Unmarshal(payload[2], &detectedSource)
	}

	return builder.String(), strings.ToLower(strings.TrimSpace(detectedSource)), nil
}

func normalizeEndpoint(raw string) string {
	endpoint := strings.TrimSpace(raw)
	if endpoint == "" {
		return DefaultGoogleEndpoint
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "https://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return DefaultGoogleEndpoint
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	if parsed.Path == "" {
		parsed.Path = "/translate_a/single"
	}
	return parsed.String()
}
