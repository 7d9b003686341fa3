package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestSearchableText_SectionOrder(t *testing.T) {
	item := ItemRecord{
		Title:    "Deep Learning",
		Creators: "LeCun, Yann; Bengio, Yoshua",
		Abstract: "neural nets",
		Extra:    "Citation Key: lecun2015",
		Notes:    "<p>read twice</p>",
		FullText: "body",
	}

	got := item.SearchableText()
	want := "Title: Deep Learning\n\n" +
		"Authors: LeCun, Yann; Bengio, Yoshua\n\n" +
		"Abstract: neural nets\n\n" +
		"Extra: Citation Key: lecun2015\n\n" +
		"Notes: <p>read twice</p>\n\n" +
		"Content: body"
	if got != want {
		t.Errorf("unexpected searchable text:\n%q\nwant\n%q", got, want)
	}
}

func TestSearchableText_LabelsOncePerPopulatedField(t *testing.T) {
	cases := []ItemRecord{
		{Title: "Only a title"},
		{Abstract: "abstract only"},
		{Title: "t", Notes: "n"},
		{Creators: "Doe", Extra: "x", FullText: "ft"},
	}
	labels := map[string]func(ItemRecord) string{
		"Title:":    func(r ItemRecord) string { return r.Title },
		"Authors:":  func(r ItemRecord) string { return r.Creators },
		"Abstract:": func(r ItemRecord) string { return r.Abstract },
		"Extra:":    func(r ItemRecord) string { return r.Extra },
		"Notes:":    func(r ItemRecord) string { return r.Notes },
		"Content:":  func(r ItemRecord) string { return r.FullText },
	}

	for _, item := range cases {
		text := item.SearchableText()
		if text == "" {
			t.Fatalf("expected non-empty text for %+v", item)
		}
		for label, field := range labels {
			n := strings.Count(text, label)
			if field(item) != "" && n != 1 {
				t.Errorf("label %s appears %d times in %q", label, n, text)
			}
			if field(item) == "" && n != 0 {
				t.Errorf("label %s present for empty field in %q", label, text)
			}
		}
	}
}

func TestSearchableText_Empty(t *testing.T) {
	item := ItemRecord{Key: "ABCD1234", InternalID: 7, DateModified: "2024-01-01 00:00:00"}
	if got := item.SearchableText(); got != "" {
		t.Errorf("expected empty text, got %q", got)
	}
}

func TestSearchableText_Truncation(t *testing.T) {
	long := strings.Repeat("x", FullTextBudget+1)
	got := ItemRecord{FullText: long}.SearchableText()
	want := "Content: " + strings.Repeat("x", FullTextBudget) + TruncationMarker
	if got != want {
		t.Errorf("expected %d chars plus marker, got %d chars", FullTextBudget, len(got)-len("Content: "))
	}

	exact := strings.Repeat("y", FullTextBudget)
	got = ItemRecord{FullText: exact}.SearchableText()
	if got != "Content: "+exact {
		t.Error("full text at the budget should be kept verbatim")
	}
}

func TestSearchableText_TruncationCountsCharacters(t *testing.T) {
	long := strings.Repeat("é", FullTextBudget+10)
	got := ItemRecord{FullText: long}.SearchableText()
	content := strings.TrimSuffix(strings.TrimPrefix(got, "Content: "), TruncationMarker)
	if n := len([]rune(content)); n != FullTextBudget {
		t.Errorf("expected %d characters, got %d", FullTextBudget, n)
	}
}

func TestMetadata_Validate(t *testing.T) {
	item := ItemRecord{Key: "K", TypeID: 2, Title: "T", DateModified: "2024"}
	if err := item.Metadata().Validate(); err != nil {
		t.Fatalf("item metadata should be valid: %v", err)
	}

	bad := Metadata{"tags": []string{"a"}}
	if err := bad.Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	if err := (Metadata{"x": nil}).Validate(); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for nil, got %v", err)
	}
}

func TestParseProviderKind(t *testing.T) {
	for in, want := range map[string]ProviderKind{
		"":        ProviderDefault,
		"default": ProviderDefault,
		"openai":  ProviderOpenAI,
		"gemini":  ProviderGemini,
	} {
		got, err := ParseProviderKind(in)
		if err != nil || got != want {
			t.Errorf("ParseProviderKind(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := ParseProviderKind("voyage"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestBackendError(t *testing.T) {
	inner := errors.New("disk full")
	err := NewBackendError("upsert", inner)

	var be *BackendError
	if !errors.As(err, &be) || be.Op != "upsert" {
		t.Fatalf("expected BackendError with op, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Error("BackendError should unwrap to the cause")
	}
	if NewBackendError("x", nil) != nil {
		t.Error("nil cause should produce nil error")
	}
}
