package hotword

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// Tokenizer turns recognizer text into phonetic tokens.
type Tokenizer interface {
	Tokens(text string) []string
}

// PinyinTokenizer converts Chinese characters to tone-less pinyin syllables,
// one token per character. Runs of other letters or digits become a single
// lower-cased token, and whitespace or punctuation becomes a separator token.
//
// Tone-less syllables make homophones match, so a recognizer writing 晓新
// instead of 小新 still triggers the wake phrase.
type PinyinTokenizer struct {
	args pinyin.Args
}

// NewPinyinTokenizer creates a tokenizer using plain (tone-less) style.
func NewPinyinTokenizer() *PinyinTokenizer {
	args := pinyin.NewArgs()
	args.Style = pinyin.Normal
	return &PinyinTokenizer{args: args}
}

// Tokens splits text into phonetic tokens.
func (p *PinyinTokenizer) Tokens(text string) []string {
	var (
		tokens []string
		run    []rune
		han    bool
	)

	flush := func() {
		if len(run) == 0 {
			return
		}
		if han {
			tokens = append(tokens, pinyin.LazyPinyin(string(run), p.args)...)
		} else {
			tokens = append(tokens, strings.ToLower(string(run)))
		}
		run = run[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			if !han {
				flush()
				han = true
			}
			run = append(run, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if han {
				flush()
				han = false
			}
			run = append(run, r)
		default:
			flush()
			han = false
			tokens = append(tokens, " ")
		}
	}
	flush()

	return tokens
}

// IsSeparator reports whether tok carries no phonetic content.
func IsSeparator(tok string) bool {
	for _, r := range tok {
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// Phonetic returns the separator-free phonetic tokens of phrase.
func Phonetic(t Tokenizer, phrase string) []string {
	var out []string
	for _, tok := range t.Tokens(phrase) {
		if !IsSeparator(tok) {
			out = append(out, tok)
		}
	}
	return out
}

var _ Tokenizer = (*PinyinTokenizer)(nil)
