package translate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"dubbing/internal/services/llm"
	"dubbing/internal/textmetrics"
)

// errTagMismatch marks a tag-protocol response that cannot be mapped back
// onto the source lines. It triggers another attempt or the fallback.
var errTagMismatch = errors.New("tag protocol mismatch")

func tagPrompt(targetLang string) string {
	return fmt.Sprintf("Please translate the following HTML to %s with all HTML tags unchanged. "+
		"The length of each text within an Element should approximate to the original. "+
		"Output only the translation.", targetLang)
}

func textPrompt(targetLang string) string {
	return fmt.Sprintf("Please translate the following text to %s. "+
		"Output only the translation without any explanation.", targetLang)
}

// wrapTags renders line i (1-based) as <Li>text</Li>, one per row.
func wrapTags(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "<L%d>%s</L%d>", i+1, line, i+1)
	}
	return b.String()
}

// parseTags extracts exactly n translated segments from a tag-protocol
// response. The open and close marker counts must both equal n and every
// index must have a well-ordered pair.
func parseTags(response string, n int) ([]string, error) {
	body := llm.StripCodeFence(response)
	opens := strings.Count(body, "<L")
	closes := strings.Count(body, "</L")
	if opens != n || closes != n {
		return nil, fmt.Errorf("%w: %d open and %d close markers for %d lines", errTagMismatch, opens, closes, n)
	}
	out := make([]string, n)
	for i := 1; i <= n; i++ {
		open := fmt.Sprintf("<L%d>", i)
		closeTag := fmt.Sprintf("</L%d>", i)
		start := strings.Index(body, open)
		end := strings.Index(body, closeTag)
		if start < 0 || end < 0 || end < start+len(open) {
			return nil, fmt.Errorf("%w: line %d markers missing", errTagMismatch, i)
		}
		out[i-1] = strings.TrimSpace(body[start+len(open) : end])
	}
	return out, nil
}

var trailingEllipses = []string{"...", "……"}

func stripTrailingEllipsis(text string) string {
	text = strings.TrimSpace(text)
	for _, e := range trailingEllipses {
		text = strings.TrimSuffix(text, e)
	}
	return text
}

// splitProportional cuts block into exactly len(lines) pieces. Piece k
// receives round(hybridLength(block) * share_k) units, where share_k is
// line k's share of the total source hybrid length; the last piece takes
// whatever remains.
func splitProportional(block string, lines []string) []string {
	n := len(lines)
	if n == 0 {
		return nil
	}
	shares := sourceShares(lines)
	total := float64(textmetrics.HybridLength(block))
	out := make([]string, n)
	rest := block
	for k := 0; k < n-1; k++ {
		units := int(math.Round(total * shares[k]))
		idx := textmetrics.UnitPrefixIndex(rest, units)
		out[k] = strings.TrimSpace(textmetrics.HybridSlice(rest, 0, idx))
		rest = textmetrics.HybridSliceFrom(rest, idx)
	}
	out[n-1] = strings.TrimSpace(rest)
	return out
}

func sourceShares(lines []string) []float64 {
	shares := make([]float64, len(lines))
	sum := 0
	for i, line := range lines {
		l := textmetrics.HybridLength(line)
		shares[i] = float64(l)
		sum += l
	}
	for i := range shares {
		if sum == 0 {
			shares[i] = 1 / float64(len(lines))
		} else {
			shares[i] /= float64(sum)
		}
	}
	return shares
}
