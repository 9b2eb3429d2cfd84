package pdfextract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var ErrEmptyInput = errors.New("pdf input is empty")

// Page is the plain text of one PDF page; Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractPages extracts plain text page by page. Pages without a content
// stream are returned with empty text so numbering stays aligned with the file.
// The pdf reader panics on some malformed inputs; those surface as errors.
func ExtractPages(b []byte) (pages []Page, err error) {
	if len(b) == 0 {
		return nil, ErrEmptyInput
	}
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("read pdf failed: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open pdf failed: %w", err)
	}

	total := reader.NumPage()
	pages = make([]Page, 0, total)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			pages = append(pages, Page{Number: i})
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return nil, fmt.Errorf("extract page %d failed: %w", i, err)
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}
