package ingestion

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrNoText          = errors.New("no text could be extracted from the file")
)

type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeHTML FileType = "html"
	FileTypeText FileType = "text"
)

var whitespace = regexp.MustCompile(`[ \t\f\v]+`)
var blankLines = regexp.MustCompile(`\n{3,}`)

// DetectType decides the file type from its extension, falling back to the content type.
func DetectType(filename, contentType string) (FileType, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileTypePDF, nil
	case ".html", ".htm":
		return FileTypeHTML, nil
	case ".txt", ".md", ".text":
		return FileTypeText, nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "application/pdf"):
		return FileTypePDF, nil
	case strings.HasPrefix(ct, "text/html"):
		return FileTypeHTML, nil
	case strings.HasPrefix(ct, "text/plain"):
		return FileTypeText, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
}

func Extract(fileType FileType, data []byte) (string, error) {
	var (
		text string
		err  error
	)

	switch fileType {
	case FileTypePDF:
		text, err = extractPDF(data)
	case FileTypeHTML:
		text, err = extractHTML(data)
	case FileTypeText:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: text file is not valid UTF-8", ErrNoText)
		}
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, fileType)
	}
	if err != nil {
		return "", err
	}

	text = normalizeText(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}

func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside, noscript").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	// keep block boundaries so sentences do not run together
	doc.Find("p, div, br, li, tr, h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text(), nil
	}
	return body.Text(), nil
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = whitespace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text)
}
