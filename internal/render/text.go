package render

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// PageText returns the plain text of a 1-based page. With clean set, page
// number lines, short headers/footers and punctuation-only lines are dropped
// and wrapped sentences are rejoined.
func (d *Document) PageText(page int, clean bool) (string, error) {
	if err := d.checkPage(page); err != nil {
		return "", err
	}
	raw, err := d.doc.Text(page - 1)
	if err != nil {
		return "", fmt.Errorf("failed to extract text from page %d: %w", page, err)
	}
	if !clean {
		return raw, nil
	}
	cleaned := CleanText(raw, page)
	log.Debug().
		Int("page", page).
		Int("raw_chars", len(raw)).
		Int("cleaned_chars", len(cleaned)).
		Msg("extracted and cleaned page text")
	return cleaned, nil
}

// PageText is the one-shot form of Document.PageText.
func PageText(data []byte, page int, clean bool) (string, error) {
	doc, err := Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()
	return doc.PageText(page, clean)
}

// AllText returns the text of every page, each preceded by a
// "=== Page N ===" separator. Pages that fail are marked, not fatal.
func AllText(data []byte, clean bool) (string, error) {
	doc, err := Open(data)
	if err != nil {
		return "", err
	}
	defer doc.Close()

	var sb strings.Builder
	for i := 1; i <= doc.PageCount(); i++ {
		text, err := doc.PageText(i, clean)
		if err != nil {
			log.Warn().Err(err).Int("page", i).Msg("failed to extract text from page")
			text = "[page extraction failed]"
		}
		if i > 1 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "=== Page %d ===\n", i)
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// CleanText removes layout artifacts from the text of page pageNum.
func CleanText(text string, pageNum int) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isPageNumber(trimmed, pageNum) || isHeaderFooter(trimmed) || isNoise(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(joinBrokenLines(kept))
}

func isPageNumber(line string, pageNum int) bool {
	for _, pattern := range []string{
		fmt.Sprintf("%d", pageNum),
		fmt.Sprintf("Page %d", pageNum),
		fmt.Sprintf("- %d -", pageNum),
		fmt.Sprintf("[%d]", pageNum),
	} {
		if strings.EqualFold(line, pattern) {
			return true
		}
	}
	return false
}

var footerMarkers = []string{"CONFIDENTIAL", "COPYRIGHT", "ALL RIGHTS RESERVED", "PROPRIETARY"}

func isHeaderFooter(line string) bool {
	if len(line) < 3 {
		return true
	}
	if len(line) < 50 && strings.ToUpper(line) == line && len(strings.Fields(line)) <= 2 {
		return true
	}
	if len(line) >= 100 {
		return false
	}
	upper := strings.ToUpper(line)
	for _, m := range footerMarkers {
		if strings.Contains(upper, m) {
			return true
		}
	}
	return false
}

// isNoise reports lines without a single letter or digit.
func isNoise(line string) bool {
	for _, r := range line {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

// joinBrokenLines merges a line that does not end a sentence with a
// following line starting in lower case.
func joinBrokenLines(lines []string) string {
	var fixed []string
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if i < len(lines)-1 {
			cur := strings.TrimSpace(line)
			next := strings.TrimSpace(lines[i+1])
			last := cur[len(cur)-1]
			sentenceEnd := strings.ContainsRune(".!?:;", rune(last))
			if !sentenceEnd && next[0] >= 'a' && next[0] <= 'z' && !strings.HasSuffix(cur, "-") {
				fixed = append(fixed, cur+" "+next)
				i++
				continue
			}
		}
		fixed = append(fixed, line)
	}
	return strings.Join(fixed, "\n")
}
