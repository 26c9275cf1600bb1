package deck

import (
	"sort"
	"strings"
)

// ReplaceText rewrites every paragraph of every slide in the package,
// replacing matched substrings while preserving per-run styling: the full
// replaced paragraph text lands in the paragraph's first run and every
// subsequent run in that paragraph is blanked. Text frames and table cells
// are both covered because replacement walks all paragraphs of the slide
// part. Returns true if any paragraph changed.
//
// Replacement pairs apply in sorted key order so results are deterministic
// regardless of map iteration.
func (p *Presentation) ReplaceText(replacements map[string]string) bool {
	if len(replacements) == 0 {
		return false
	}
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	updated := false
	for _, name := range p.order {
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		if out, changed := rewriteParagraphs(p.parts[name], keys, replacements); changed {
			p.parts[name] = out
			updated = true
		}
	}
	return updated
}

// paragraph and run delimiters in DrawingML slide parts. These tags are
// machine-generated and never carry a prefix other than "a" in practice.
const (
	pOpen  = "<a:p>"
	pOpen2 = "<a:p "
	pClose = "</a:p>"
	tOpen  = "<a:t>"
	tClose = "</a:t>"
	tEmpty = "<a:t/>"
)

// runSpan locates one a:t element's content within a paragraph segment.
type runSpan struct {
	start, end int  // content byte range within the paragraph
	empty      bool // true for self-closing <a:t/>
}

// rewriteParagraphs performs run-preserving replacement over one slide part.
func rewriteParagraphs(data []byte, keys []string, replacements map[string]string) ([]byte, bool) {
	s := string(data)
	var b strings.Builder
	changed := false

	pos := 0
	for {
		pStart := indexParagraph(s, pos)
		if pStart < 0 {
			break
		}
		pEnd := strings.Index(s[pStart:], pClose)
		if pEnd < 0 {
			break
		}
		pEnd += pStart + len(pClose)

		b.WriteString(s[pos:pStart])
		b.WriteString(rewriteParagraph(s[pStart:pEnd], keys, replacements, &changed))
		pos = pEnd
	}
	b.WriteString(s[pos:])

	if !changed {
		return data, false
	}
	return []byte(b.String()), true
}

// indexParagraph finds the next <a:p> or <a:p ...> tag at or after pos.
func indexParagraph(s string, pos int) int {
	i1 := strings.Index(s[pos:], pOpen)
	i2 := strings.Index(s[pos:], pOpen2)
	switch {
	case i1 < 0 && i2 < 0:
		return -1
	case i1 < 0:
		return pos + i2
	case i2 < 0 || i1 < i2:
		return pos + i1
	default:
		return pos + i2
	}
}

// rewriteParagraph applies the replacement map to the concatenated run text
// of one paragraph. When a replacement fires, the first run receives the
// full new text and the rest are blanked, keeping run count and styles.
func rewriteParagraph(para string, keys []string, replacements map[string]string, changed *bool) string {
	spans := runSpans(para)
	if len(spans) == 0 {
		return para
	}

	var orig strings.Builder
	for _, sp := range spans {
		if !sp.empty {
			orig.WriteString(unescapeXML(para[sp.start:sp.end]))
		}
	}
	original := orig.String()

	// Cheap substring check before doing any rebuilding.
	hit := false
	for _, k := range keys {
		if strings.Contains(original, k) {
			hit = true
			break
		}
	}
	if !hit {
		return para
	}

	replaced := original
	for _, k := range keys {
		replaced = strings.ReplaceAll(replaced, k, replacements[k])
	}
	if replaced == original {
		return para
	}
	*changed = true

	var b strings.Builder
	pos := 0
	for i, sp := range spans {
		text := ""
		if i == 0 {
			text = escapeXML(replaced)
		}
		if sp.empty {
			if text == "" {
				b.WriteString(para[pos:sp.start])
				pos = sp.start
				continue
			}
			// Self-closing first run: expand to carry the replacement text.
			b.WriteString(para[pos : sp.start-len(tEmpty)])
			b.WriteString(tOpen)
			b.WriteString(text)
			b.WriteString(tClose)
			pos = sp.start
		} else {
			b.WriteString(para[pos:sp.start])
			b.WriteString(text)
			pos = sp.end
		}
	}
	b.WriteString(para[pos:])
	return b.String()
}

// runSpans locates the content ranges of every a:t element in a paragraph.
// For self-closing <a:t/> elements start==end marks the position just past
// the tag.
func runSpans(para string) []runSpan {
	var spans []runSpan
	pos := 0
	for {
		iOpen := strings.Index(para[pos:], tOpen)
		iEmpty := strings.Index(para[pos:], tEmpty)
		if iOpen < 0 && iEmpty < 0 {
			return spans
		}
		if iEmpty >= 0 && (iOpen < 0 || iEmpty < iOpen) {
			end := pos + iEmpty + len(tEmpty)
			spans = append(spans, runSpan{start: end, end: end, empty: true})
			pos = end
			continue
		}
		start := pos + iOpen + len(tOpen)
		iClose := strings.Index(para[start:], tClose)
		if iClose < 0 {
			return spans
		}
		spans = append(spans, runSpan{start: start, end: start + iClose})
		pos = start + iClose + len(tClose)
	}
}

// unescapeXML reverses the five predefined XML entities. A single pass is
// correct: "&amp;lt;" decodes to the literal "&lt;".
var xmlUnescaper = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&apos;", "'",
	"&#xA;", "\n",
	"&#x9;", "\t",
	"&#xD;", "\r",
)

func unescapeXML(s string) string {
	if !strings.ContainsRune(s, '&') {
		return s
	}
	return xmlUnescaper.Replace(s)
}
