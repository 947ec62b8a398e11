package language

import "testing"

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	if got := NormalizeLabel(" Chinese Simplified "); got != "chinese_simplified" {
		t.Fatalf("unexpected normalized label: %q", got)
	}
	if got := NormalizeLabel("english-us"); got != "english_us" {
		t.Fatalf("unexpected normalized label: %q", got)
	}
	if got := NormalizeLabel(""); got != "" {
		t.Fatalf("expected empty label, got %q", got)
	}
}

func TestNormalizeTag(t *testing.T) {
	t.Parallel()

	if got := NormalizeTag(" EN_us "); got != "en-us" {
		t.Fatalf("unexpected normalized tag: %q", got)
	}
	if got := NormalizeTag("zh-Hans"); got != "zh-hans" {
		t.Fatalf("unexpected normalized tag: %q", got)
	}
	if got := NormalizeTag("en_123"); got != "" {
		t.Fatalf("expected invalid tag to normalize to empty string, got %q", got)
	}
}

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	if got := NormalizeCode(" EN-us "); got != "en" {
		t.Fatalf("unexpected normalized code: %q", got)
	}
	if got := NormalizeCode(" "); got != "" {
		t.Fatalf("expected empty code for blank input, got %q", got)
	}
}
