package analysis

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Analyze counts whitespace-separated words and characters (code points,
// whitespace included) of text. It is pure: the same text always yields the
// same Result, which is what makes redelivery safe.
func Analyze(text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		return Result{}, fmt.Errorf("%w: %w", ErrProcessing, ErrEmptyText)
	}

	return Result{
		WordCount: len(strings.Fields(text)),
		CharCount: utf8.RuneCountInString(text),
	}, nil
}
