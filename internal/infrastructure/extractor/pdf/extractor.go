package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

// Extractor is the structured-document variant. Malformed input surfaces as
// an extraction-failed kind and never escapes as a panic; the caller bounds
// the whole call with a context deadline.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(ctx context.Context, data []byte) (domain.Extraction, error) {
	type result struct {
		out domain.Extraction
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := parse(data)
		done <- result{out: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return domain.Extraction{}, domain.WrapError(domain.ErrExtractionFailed, "extract pdf", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return domain.Extraction{}, domain.WrapError(domain.ErrExtractionFailed, "extract pdf", res.err)
		}
		return res.out, nil
	}
}

func parse(data []byte) (out domain.Extraction, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("parse pdf: %w", err)
	}

	out.PageCount = reader.NumPage()
	out.PDFVersion = headerVersion(data)
	out.Title = documentTitle(reader)

	var b strings.Builder
	for i := 1; i <= out.PageCount; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, pageErr := page.GetPlainText(nil)
		if pageErr != nil {
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	out.Text = b.String()
	return out, nil
}

func headerVersion(data []byte) string {
	const prefix = "%PDF-"
	if len(data) >= len(prefix)+3 && bytes.HasPrefix(data, []byte(prefix)) {
		return string(data[len(prefix) : len(prefix)+3])
	}
	return ""
}

func documentTitle(reader *pdf.Reader) string {
	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return ""
	}
	title := info.Key("Title")
	if title.Kind() != pdf.String {
		return ""
	}
	return title.Text()
}
