package plaintext

import (
	"context"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

// Extractor is the plain-text variant: a verbatim UTF-8 decode of the
// buffered payload. It always succeeds.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(_ context.Context, data []byte) (domain.Extraction, error) {
	return domain.Extraction{Text: string(data)}, nil
}
