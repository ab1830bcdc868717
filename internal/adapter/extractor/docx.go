package extractor

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"ragchat/internal/domain"
)

// DOCX extracts paragraph text from Word documents. Only the main
// document part is read; headers, footers, and embedded objects are
// ignored.
type DOCX struct{}

func NewDOCX() *DOCX {
	return &DOCX{}
}

func (e *DOCX) Format() domain.Format {
	return domain.FormatDOCX
}

func (e *DOCX) Extract(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: not a valid docx archive", domain.ErrUnsupportedFormat)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrUnsupportedFormat)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("%w: unreadable document part", domain.ErrUnsupportedFormat)
		}
		text, err := parseDocumentXML(content)
		if err != nil {
			return "", err
		}
		return text, nil
	}

	return "", fmt.Errorf("%w: missing word/document.xml", domain.ErrUnsupportedFormat)
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

func parseDocumentXML(content []byte) (string, error) {
	var doc docxDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("%w: malformed document xml", domain.ErrUnsupportedFormat)
	}

	var b strings.Builder
	for i, para := range doc.Body.Paragraphs {
		if i > 0 {
			b.WriteString("\n")
		}
		for _, run := range para.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
	}

	return strings.TrimSpace(b.String()), nil
}
