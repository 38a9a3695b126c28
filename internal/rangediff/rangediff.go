// Package rangediff renders the difference between two ranges as a unified
// diff of key=value lines.
package rangediff

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/eigerco/kvrange/pkg/scan"
)

// Context is the number of unchanged lines shown around each change.
const Context = 1

// Unified returns the unified diff from a to b, or "" when both ranges hold
// the same entries.
func Unified(a, b *scan.Seq[scan.Entry], nameA, nameB string) (string, error) {
	linesA, err := Lines(a)
	if err != nil {
		return "", fmt.Errorf("rangediff: %s: %w", nameA, err)
	}
	linesB, err := Lines(b)
	if err != nil {
		return "", fmt.Errorf("rangediff: %s: %w", nameB, err)
	}

	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        linesA,
		B:        linesB,
		FromFile: nameA,
		ToFile:   nameB,
		Context:  Context,
	})
}

// Lines renders each entry as one "key=value\n" line.
func Lines(seq *scan.Seq[scan.Entry]) ([]string, error) {
	return scan.Map(seq, Line).Collect()
}

func Line(e scan.Entry) string {
	return printable(e.Key) + "=" + printable(e.Value) + "\n"
}

// printable quotes b unless it is valid UTF-8 without control characters,
// '=' or quotes.
func printable(b []byte) string {
	if !utf8.Valid(b) {
		return strconv.Quote(string(b))
	}
	for _, r := range string(b) {
		if r < 0x20 || r == 0x7f || r == '=' || r == '"' {
			return strconv.Quote(string(b))
		}
	}
	return string(b)
}
