package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

type docType string

const (
	PDF  docType = "pdf"
	DOCX docType = "docx"
	ERR  docType = "unsupported"
)

var ErrUnsupportedFile = errors.New("unsupported file type")

type rawPage struct {
	Number  int
	Content string
}

func getDocType(docPath string) docType {
	ext := strings.ToLower(filepath.Ext(docPath))
	switch ext {
	case ".pdf":
		return PDF
	case ".docx", ".txt", ".rtf", ".odt", ".md":
		return DOCX
	default:
		return ERR
	}
}

// ExtractText reads an uploaded pdf, docx, odt, rtf or plain text file and joins its pages.
func ExtractText(path string) (string, error) {
	var (
		pages []rawPage
		err   error
	)
	switch getDocType(path) {
	case PDF:
		pages, err = extractPDF(path)
	case DOCX:
		pages, err = extractdocxTxtRtf(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if text := strings.TrimSpace(p.Content); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func extractPDF(path string) ([]rawPage, error) {
	logger.Debug("extractPDF", "attempting extraction", path)
	f, err := pdf.Open(path)
	if err != nil {
		logger.Error("failed opening of pdf file", "error", err)
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []rawPage
	numPages := f.NumPage()
	logger.Debug("extractPDF", "number of pages", numPages)
	for i := 1; i <= numPages; i++ {
		page := f.Page(i)
		if page.V.IsNull() {
			continue
		}

		content, err := protectExtract(page)
		if err != nil {
			// a broken page should not lose the rest of the document
			logger.Error("Error parsing page content", "page", i, "error", err)
			continue
		}

		pages = append(pages, rawPage{
			Number:  i,
			Content: content,
		})
	}
	return pages, nil
}

// extractdocxTxtRtf has no page information, so the whole file is one page
func extractdocxTxtRtf(path string) ([]rawPage, error) {
	text, err := cat.File(path)
	if err != nil {
		logger.Error("Error extracting content from doc", "error", err)
		return nil, fmt.Errorf("failed to extract document: %w", err)
	}
	return []rawPage{{Number: 1, Content: text}}, nil
}

func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(time.Second * 10):
		return "", errors.New("page extraction timeout")
	}
}
