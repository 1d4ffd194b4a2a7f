// Package pagerange parses user supplied page selections such as "1-3,5,8-10".
package pagerange

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var digits = regexp.MustCompile(`^[0-9]+$`)

// Range is a 1-based inclusive page span.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of pages covered by the range.
func (r Range) Len() int { return r.End - r.Start + 1 }

func (r Range) String() string {
	if r.Start == r.End {
		return strconv.Itoa(r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// ValidationError reports a selection that cannot be applied to the document.
type ValidationError struct {
	Token   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("invalid page range: %s", e.Message)
	}
	return fmt.Sprintf("invalid page range %q: %s", e.Token, e.Message)
}

// Parse parses expr against a document of pageCount pages.
//
// Tokens are separated by commas and are either a single page "N" or a span
// "A-B". Reversed spans are normalized, "A-" runs to the last page and "-B"
// starts at the first page. Whitespace is allowed around tokens and dashes
// but not inside a page number.
func Parse(expr string, pageCount int) ([]Range, error) {
	if pageCount <= 0 {
		return nil, &ValidationError{Message: "document has no pages"}
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &ValidationError{Message: "empty selection"}
	}

	tokens := strings.Split(expr, ",")
	out := make([]Range, 0, len(tokens))
	for _, raw := range tokens {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			return nil, &ValidationError{Token: raw, Message: "empty entry"}
		}
		r, err := parseToken(tok, pageCount)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func parseToken(tok string, pageCount int) (Range, error) {
	dash := strings.Index(tok, "-")
	if dash < 0 {
		n, err := parsePage(tok, tok, pageCount)
		if err != nil {
			return Range{}, err
		}
		return Range{Start: n, End: n}, nil
	}

	left, right := strings.TrimSpace(tok[:dash]), strings.TrimSpace(tok[dash+1:])
	if strings.Contains(right, "-") {
		return Range{}, &ValidationError{Token: tok, Message: "too many dashes"}
	}
	if left == "" && right == "" {
		return Range{}, &ValidationError{Token: tok, Message: "missing page numbers"}
	}

	start, end := 1, pageCount
	var err error
	if left != "" {
		if start, err = parsePage(left, tok, pageCount); err != nil {
			return Range{}, err
		}
	}
	if right != "" {
		if end, err = parsePage(right, tok, pageCount); err != nil {
			return Range{}, err
		}
	}
	if start > end {
		start, end = end, start
	}
	return Range{Start: start, End: end}, nil
}

func parsePage(s, tok string, pageCount int) (int, error) {
	if !digits.MatchString(s) {
		return 0, &ValidationError{Token: tok, Message: fmt.Sprintf("%q is not a page number", s)}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &ValidationError{Token: tok, Message: fmt.Sprintf("%q is not a page number", s)}
	}
	if n < 1 || n > pageCount {
		return 0, &ValidationError{Token: tok, Message: fmt.Sprintf("page %d out of range (document has %d pages)", n, pageCount)}
	}
	return n, nil
}

// All selects every page of the document.
func All(pageCount int) []Range {
	if pageCount <= 0 {
		return nil
	}
	return []Range{{Start: 1, End: pageCount}}
}

// ParseOrAll is Parse, except that an empty expr selects every page.
func ParseOrAll(expr string, pageCount int) ([]Range, error) {
	if strings.TrimSpace(expr) == "" {
		if pageCount <= 0 {
			return nil, &ValidationError{Message: "document has no pages"}
		}
		return All(pageCount), nil
	}
	return Parse(expr, pageCount)
}

// Pages expands ranges into page numbers in selection order. Duplicates are kept.
func Pages(ranges []Range) []int {
	var out []int
	for _, r := range ranges {
		for p := r.Start; p <= r.End; p++ {
			out = append(out, p)
		}
	}
	return out
}

// Unique expands ranges into sorted, deduplicated page numbers.
func Unique(ranges []Range) []int {
	seen := make(map[int]struct{})
	for _, p := range Pages(ranges) {
		seen[p] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}

// Selection renders ranges in the page selection syntax understood by pdfcpu.
func Selection(ranges []Range) []string {
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, r.String())
	}
	return out
}

// Chunks splits a document into consecutive spans of size pages. The last
// span may be shorter.
func Chunks(pageCount, size int) []Range {
	if pageCount <= 0 || size <= 0 {
		return nil
	}
	var out []Range
	for start := 1; start <= pageCount; start += size {
		end := start + size - 1
		if end > pageCount {
			end = pageCount
		}
		out = append(out, Range{Start: start, End: end})
	}
	return out
}
