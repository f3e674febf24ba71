package plaintext

import (
	"context"
	"testing"
)

func TestExtractIsIdentity(t *testing.T) {
	e := NewExtractor()

	cases := []string{
		"",
		"hello world",
		"line one\nline two\n",
		"unicode héllo ünïcode",
	}
	for _, in := range cases {
		out, err := e.Extract(context.Background(), []byte(in))
		if err != nil {
			t.Fatalf("Extract(%q) error = %v", in, err)
		}
		if out.Text != in {
			t.Fatalf("Extract(%q) = %q", in, out.Text)
		}
		if out.PageCount != 0 || out.Title != "" {
			t.Fatalf("expected no document metadata, got %+v", out)
		}
	}
}
