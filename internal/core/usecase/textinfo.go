package usecase

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

const wordsPerMinute = 200

var (
	horizontalSpaceRuns = regexp.MustCompile(`[ \t\r\f\v]+`)
	digitOnlyLines      = regexp.MustCompile(`(?m)^\d+$`)
	excessLineBreaks    = regexp.MustCompile(`\n{3,}`)
)

// CleanExtractedText normalizes raw extractor output: spacing runs collapse
// to one space, page-number lines (digits only) are blanked, runs of three or
// more line breaks collapse to exactly two, and the result is trimmed. The
// steps apply in this order to any successfully extracted text.
func CleanExtractedText(raw string) string {
	text := horizontalSpaceRuns.ReplaceAllString(raw, " ")
	text = digitOnlyLines.ReplaceAllString(text, "")
	text = excessLineBreaks.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// DeriveKeyInfo computes upload statistics from cleaned text.
func DeriveKeyInfo(clean string) *domain.KeyInfo {
	wordCount := len(strings.Fields(clean))

	headings := []string{}
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || len(line) >= 100 || strings.Contains(line, ".") {
			continue
		}
		headings = append(headings, line)
		if len(headings) == 10 {
			break
		}
	}

	paragraphs := 0
	for _, segment := range strings.Split(clean, "\n\n") {
		if strings.TrimSpace(segment) != "" {
			paragraphs++
		}
	}

	return &domain.KeyInfo{
		WordCount:          wordCount,
		ReadingTimeMinutes: (wordCount + wordsPerMinute - 1) / wordsPerMinute,
		PotentialHeadings:  headings,
		CharacterCount:     utf8.RuneCountInString(clean),
		ParagraphCount:     paragraphs,
	}
}
