package render

import (
	"math/rand"
	"regexp"
	"sort"
	"time"
)

// DefaultThreshold is the number of non-whitespace characters a sample must
// reach to count as having a text layer.
const DefaultThreshold = 300

var whitespace = regexp.MustCompile(`\s+`)

// PageProbe is the result of probing one page.
type PageProbe struct {
	Page      int    `json:"page"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Probe summarizes a text layer check.
type Probe struct {
	TotalPages   int         `json:"total_pages"`
	SampledPages []int       `json:"sampled_pages"`
	Chars        int         `json:"chars"`
	Threshold    int         `json:"threshold"`
	Pages        []PageProbe `json:"pages"`
	HasText      bool        `json:"has_text"`
	DurationMs   int64       `json:"duration_ms"`
}

// HasTextLayer samples pages of data and reports whether they carry
// extractable text. Scanned documents typically do not.
func HasTextLayer(data []byte, threshold int) (*Probe, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	start := time.Now()
	doc, err := Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	probe := &Probe{TotalPages: total, Threshold: threshold, SampledPages: samplePages(total)}
	for _, p := range probe.SampledPages {
		pp := PageProbe{Page: p}
		text, err := doc.PageText(p, false)
		if err != nil {
			pp.Err = err.Error()
			probe.Pages = append(probe.Pages, pp)
			continue
		}
		pp.CharCount = len([]rune(whitespace.ReplaceAllString(text, "")))
		probe.Chars += pp.CharCount
		probe.Pages = append(probe.Pages, pp)
		if probe.Chars >= threshold {
			break
		}
	}
	probe.HasText = probe.Chars >= threshold
	probe.DurationMs = time.Since(start).Milliseconds()
	return probe, nil
}

// samplePages picks 1-based pages to probe: all pages up to five, otherwise
// first, middle, last and two random others.
func samplePages(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		out := make([]int, total)
		for i := range out {
			out[i] = i + 1
		}
		return out
	}

	set := map[int]struct{}{1: {}, total/2 + 1: {}, total: {}}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(set) < 5 {
		set[rnd.Intn(total)+1] = struct{}{}
	}
	out := make([]int, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
