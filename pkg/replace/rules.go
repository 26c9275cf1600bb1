// Package replace implements the batch find/replace tool: a tolerant
// key=value rules loader and a runner that copies decks from an input
// directory and rewrites their text in place, preserving per-run styling.
package replace

import (
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/slidesmith/slidesmith/pkg/errors"
)

// leading characters stripped before the comment check: BOM, zero-width
// marks and plain whitespace. Property files exported from editors on
// Windows tend to carry these.
const lineJunk = "\uFEFF​‎‏ \t"

// LoadRules reads a replacement rules file from disk.
func LoadRules(path string, logger *log.Logger) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "config file not found: %s", path)
	}
	defer f.Close()
	return ParseRules(f, logger)
}

// ParseRules parses key=value replacement rules. The format is deliberately
// forgiving: BOMs and CR/LF variants are tolerated, lines starting with '#'
// are comments, malformed lines are skipped with a warning, and duplicate
// keys warn with the last value winning. Inverse pairs (A=B together with
// B=A) make replacement order-dependent and are rejected outright.
func ParseRules(r io.Reader, logger *log.Logger) (map[string]string, error) {
	if logger == nil {
		logger = log.Default()
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading rules")
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	rules := make(map[string]string)
	malformed := 0
	for i, line := range strings.Split(text, "\n") {
		cleaned := strings.TrimLeft(line, lineJunk)
		if cleaned == "" || strings.HasPrefix(cleaned, "#") {
			continue
		}

		key, val, found := strings.Cut(strings.TrimSpace(cleaned), "=")
		if !found {
			malformed++
			logger.Warn("malformed rule line skipped", "line", i+1, "content", line)
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			malformed++
			logger.Warn("rule line has empty key", "line", i+1)
			continue
		}

		if prev, ok := rules[key]; ok && prev != val {
			logger.Warn("duplicate rule key, last value wins", "line", i+1, "key", key)
		}
		rules[key] = val
	}
	if malformed > 0 {
		logger.Warn("rules file contains malformed lines", "count", malformed)
	}

	if pairs := inversePairs(rules); len(pairs) > 0 {
		return nil, errors.New(errors.ErrCodeConflictingConfig,
			"inverse replacement pairs found: %s; remove one side of each pair", strings.Join(pairs, ", "))
	}
	return rules, nil
}

// inversePairs finds rule pairs that map back onto each other, which would
// make the outcome depend on application order.
func inversePairs(rules map[string]string) []string {
	seen := make(map[string]bool)
	var pairs []string
	for a, b := range rules {
		if a == b || seen[a] {
			continue
		}
		if back, ok := rules[b]; ok && back == a {
			seen[a], seen[b] = true, true
			lo, hi := a, b
			if lo > hi {
				lo, hi = hi, lo
			}
			pairs = append(pairs, lo+" <-> "+hi)
		}
	}
	sort.Strings(pairs)
	return pairs
}
