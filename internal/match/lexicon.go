package match

import (
	"bufio"
	"embed"
	"fmt"
	"regexp"
	"strings"
)

//go:embed lexicon/*.txt
var lexiconFS embed.FS

// Strictness selects how aggressively lexicon terms are matched.
type Strictness string

const (
	// StrictnessLow matches a term only as an exact standalone token,
	// bounded by spaces or string edges.
	StrictnessLow Strictness = "low"
	// StrictnessMedium matches a term as a complete word anywhere in the
	// text (word-boundary aware).
	StrictnessMedium Strictness = "medium"
	// StrictnessHigh matches terms through per-character fuzzed patterns
	// tolerating leetspeak substitutions, trading precision for recall.
	StrictnessHigh Strictness = "high"
)

// ParseStrictness validates a user-supplied strictness value.
func ParseStrictness(s string) (Strictness, error) {
	switch Strictness(strings.ToLower(s)) {
	case StrictnessLow:
		return StrictnessLow, nil
	case StrictnessMedium:
		return StrictnessMedium, nil
	case StrictnessHigh:
		return StrictnessHigh, nil
	case "":
		return StrictnessMedium, nil
	}
	return "", fmt.Errorf("unknown strictness %q (want low, medium or high)", s)
}

// Lexicon is a loaded offensive-term set with precompiled patterns for the
// medium and high strictness levels. Construction is the expensive part;
// Match is a pure function of the text.
type Lexicon struct {
	lang   string
	terms  []string
	word   []*regexp.Regexp // \b-bounded, index-aligned with terms
	fuzzed []*regexp.Regexp // leet-tolerant, index-aligned with terms
}

// leetClasses maps letters to the obfuscated look-alikes tolerated at high
// strictness.
var leetClasses = map[rune]string{
	'a': "a@4", 'b': "b8", 'e': "e3", 'g': "g9", 'i': "i1!|",
	'l': "l1|", 'o': "o0", 's': "s5$z", 't': "t7+", 'u': "uv",
}

// LoadLexicon loads the embedded term list for the given language code.
func LoadLexicon(lang string) (*Lexicon, error) {
	if lang == "" {
		lang = "en"
	}
	f, err := lexiconFS.Open("lexicon/badwords_" + lang + ".txt")
	if err != nil {
		return nil, fmt.Errorf("unknown lexicon language %q", lang)
	}
	defer func() { _ = f.Close() }()

	lex := &Lexicon{lang: lang}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		lex.terms = append(lex.terms, term)
		lex.word = append(lex.word, regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`))
		lex.fuzzed = append(lex.fuzzed, fuzzedPattern(term))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return lex, nil
}

// Lang returns the lexicon's language code.
func (l *Lexicon) Lang() string { return l.lang }

// Terms returns the number of loaded terms.
func (l *Lexicon) Terms() int { return len(l.terms) }

// Match returns the lexicon terms found in text at the given strictness.
// An empty slice means no match. Terms are reported so results can say
// why a message matched, not just that it did.
func (l *Lexicon) Match(text string, level Strictness) []string {
	lower := strings.ToLower(text)
	var matched []string

	switch level {
	case StrictnessLow:
		tokens := strings.Fields(lower)
		for _, term := range l.terms {
			for _, tok := range tokens {
				if tok == term {
					matched = append(matched, term)
					break
				}
			}
		}
	case StrictnessMedium:
		for i, term := range l.terms {
			if l.word[i].MatchString(lower) {
				matched = append(matched, term)
			}
		}
	case StrictnessHigh:
		for i, term := range l.terms {
			if l.fuzzed[i].MatchString(lower) {
				matched = append(matched, term)
			}
		}
	}
	return matched
}

// fuzzedPattern builds the high-strictness pattern for a term: every
// character may appear as one of its leet substitutes, with optional
// punctuation between characters ("s.e-c_r3t" style spacing).
func fuzzedPattern(term string) *regexp.Regexp {
	var sb strings.Builder
	first := true
	for _, r := range term {
		if !first {
			sb.WriteString(`[\s._\-*]*`)
		}
		first = false
		if class, ok := leetClasses[r]; ok {
			sb.WriteString("[" + regexp.QuoteMeta(class) + "]")
		} else {
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return regexp.MustCompile(sb.String())
}
