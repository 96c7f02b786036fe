package factstore

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/openclaw/hybridmem/internal/logging"
)

// builtinStopWords are dropped from auto-derived tags; a deliberately
// small, language-agnostic-ish set rather than a full stopword list,
// mirroring the lightweight tokeniser used elsewhere in the core.
var builtinStopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "is": true, "are": true, "was": true,
	"for": true, "with": true, "that": true, "this": true, "it": true,
}

var (
	stopWordsMu sync.RWMutex
	stopWords   = copyStopWords(builtinStopWords)
)

func copyStopWords(src map[string]bool) map[string]bool {
	dst := make(map[string]bool, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func isStopWord(w string) bool {
	stopWordsMu.RLock()
	defer stopWordsMu.RUnlock()
	return stopWords[w]
}

// ReloadStopWords rebuilds the tokeniser's stop-word set from the built-in
// defaults merged with one word per line from customPath, the weekly task
// named in §9. A blank customPath just restores the built-in set.
func ReloadStopWords(customPath string) error {
	merged := copyStopWords(builtinStopWords)

	if customPath != "" {
		file, err := os.Open(customPath)
		if err != nil {
			if os.IsNotExist(err) {
				logging.StoreDebug("reload stop words: %s not found, using built-ins only", customPath)
			} else {
				return fmt.Errorf("reload stop words: open %s: %w", customPath, err)
			}
		} else {
			defer file.Close()
			scanner := bufio.NewScanner(file)
			for scanner.Scan() {
				w := strings.ToLower(strings.TrimSpace(scanner.Text()))
				if w != "" {
					merged[w] = true
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("reload stop words: read %s: %w", customPath, err)
			}
		}
	}

	stopWordsMu.Lock()
	stopWords = merged
	stopWordsMu.Unlock()

	logging.Store("stop-word set reloaded: %d word(s)", len(merged))
	return nil
}

const maxAutoTags = 5

// computeTags merges caller-supplied tags with a small set auto-derived
// from the category and the longest words in the text, deduplicated and
// lowercased per the "short lowercase strings" tag contract.
func computeTags(category, text string, supplied []string) []string {
	set := map[string]bool{}
	var ordered []string

	add := func(tag string) {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" || set[tag] {
			return
		}
		set[tag] = true
		ordered = append(ordered, tag)
	}

	for _, t := range supplied {
		add(t)
	}
	add(category)

	words := splitWords(text)
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	autoCount := 0
	for _, w := range words {
		if autoCount >= maxAutoTags {
			break
		}
		if len(w) < 4 || isStopWord(w) {
			continue
		}
		before := len(ordered)
		add(w)
		if len(ordered) > before {
			autoCount++
		}
	}

	return ordered
}

func splitWords(text string) []string {
	var words []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			words = append(words, strings.ToLower(b.String()))
		}
		b.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return words
}
