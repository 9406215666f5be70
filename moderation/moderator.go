package moderation

import (
	"bufio"
	"os"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in message text. A nil Moderator is a
// valid no-op, so callers never branch on configuration.
type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewModerator builds the Aho-Corasick automaton over the lower-cased
// word list.
func NewModerator(words []string, mask rune) (*Moderator, error) {
	if len(words) == 0 {
		return nil, nil
	}
	patterns := make([][]rune, len(words))
	for i, word := range words {
		patterns[i] = foldRunes([]rune(word))
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, mask: mask}, nil
}

// Censor replaces every matched span with the mask rune. Matching is
// case-insensitive; rune positions are preserved by the per-rune fold.
func (m *Moderator) Censor(original string) string {
	if m == nil || m.matcher == nil {
		return original
	}
	runes := []rune(original)
	spans := m.matcher.MultiPatternSearch(foldRunes(runes), false)
	if len(spans) == 0 {
		return original
	}
	for _, span := range spans {
		for i := span.Pos; i < span.Pos+len(span.Word) && i < len(runes); i++ {
			runes[i] = m.mask
		}
	}
	return string(runes)
}

func foldRunes(input []rune) []rune {
	out := make([]rune, len(input))
	for i, r := range input {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// LoadWords reads one censored word per line, skipping blanks and
// lines starting with '#'.
func LoadWords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	return words, scanner.Err()
}
