package extractor

import (
	"errors"
	"strings"
	"testing"

	"ragchat/internal/domain"
)

func TestFormatFor(t *testing.T) {
	cases := []struct {
		name   string
		format domain.Format
	}{
		{"notes.txt", domain.FormatText},
		{"README", domain.FormatText},
		{"guide.md", domain.FormatMarkdown},
		{"guide.MARKDOWN", domain.FormatMarkdown},
		{"page.html", domain.FormatHTML},
		{"page.htm", domain.FormatHTML},
		{"policy.docx", domain.FormatDOCX},
		{"Policy.DOCX", domain.FormatDOCX},
	}
	for _, tc := range cases {
		format, err := FormatFor(tc.name)
		if err != nil {
			t.Errorf("FormatFor(%q): unexpected error %v", tc.name, err)
			continue
		}
		if format != tc.format {
			t.Errorf("FormatFor(%q) = %s, want %s", tc.name, format, tc.format)
		}
	}
}

func TestFormatFor_Unsupported(t *testing.T) {
	for _, name := range []string{"binary.pdf", "photo.png", "archive.zip"} {
		_, err := FormatFor(name)
		if !errors.Is(err, domain.ErrUnsupportedFormat) {
			t.Errorf("FormatFor(%q): expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
}

func TestRegistry_Extract_Unsupported(t *testing.T) {
	r := DefaultRegistry()
	_, _, err := r.Extract("report.pdf", []byte("%PDF-1.4"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPlainText_RejectsInvalidUTF8(t *testing.T) {
	e := NewPlainText()
	_, err := e.Extract([]byte{0xff, 0xfe, 0xfd})
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPlainText_NormalizesNewlines(t *testing.T) {
	e := NewPlainText()
	text, err := e.Extract([]byte("one\r\ntwo\rthree"))
	if err != nil {
		t.Fatal(err)
	}
	if text != "one\ntwo\nthree" {
		t.Errorf("got %q", text)
	}
}

func TestMarkdown_StripsMarkup(t *testing.T) {
	e := NewMarkdown()
	src := "# Refund Policy\n\nSee [the form](https://example.com/form) for **full** details.\n\n```\ncode stays\n```\n"
	text, err := e.Extract([]byte(src))
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(text, "#") || strings.Contains(text, "](") || strings.Contains(text, "**") {
		t.Errorf("markup survived extraction: %q", text)
	}
	for _, want := range []string{"Refund Policy", "the form", "full", "code stays"} {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got %q", want, text)
		}
	}
	if strings.Contains(text, "https://example.com") {
		t.Errorf("link target should be dropped: %q", text)
	}
}

func TestHTML_StripsTagsAndScripts(t *testing.T) {
	e := NewHTML()
	src := `<html><head><style>body { color: red }</style>
<script>alert("hi")</script></head>
<body><h1>Shipping &amp; Returns</h1><p>Items ship in 3&nbsp;days.</p></body></html>`
	text, err := e.Extract([]byte(src))
	if err != nil {
		t.Fatal(err)
	}

	if strings.Contains(text, "<") || strings.Contains(text, "alert") || strings.Contains(text, "color") {
		t.Errorf("markup survived extraction: %q", text)
	}
	if !strings.Contains(text, "Shipping & Returns") {
		t.Errorf("entity not decoded: %q", text)
	}
	if !strings.Contains(text, "Items ship in 3 days.") {
		t.Errorf("expected body text, got %q", text)
	}
}

func TestHTML_DecodesNumericAndNamedEntities(t *testing.T) {
	e := NewHTML()
	src := `<p>caf&eacute; &#8211; d&#233;tails&hellip;</p>`
	text, err := e.Extract([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	if text != "café – détails…" {
		t.Errorf("entities not decoded: %q", text)
	}
}
