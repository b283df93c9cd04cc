package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// recognizedRegexOptions are the Mongo-style flags THE CORE
// understands: i (case-insensitive), m (multiline), s (dot matches
// newline), x (extended/verbose, whitespace and '#' comments ignored
// outside a character class). Any other letter makes the options
// string invalid (§7, boundary behavior: "pml" -> InvalidRegexOptions
// because 'p' and 'l' are not recognized, even though 'm' is).
const recognizedRegexOptions = "imsx"

func validOptions(opts string) bool {
	for _, c := range opts {
		if !strings.ContainsRune(recognizedRegexOptions, c) {
			return false
		}
	}
	return true
}

var (
	regexCacheOnce sync.Once
	regexCache     *lru.Cache[string, *regexp.Regexp]
)

func getRegexCache() *lru.Cache[string, *regexp.Regexp] {
	regexCacheOnce.Do(func() {
		regexCache, _ = lru.New[string, *regexp.Regexp](512)
	})
	return regexCache
}

// CompileRegex lazily compiles pattern/options into a Go RE2 regexp,
// per §9 "Regex lifecycle": compilation happens on first use so that
// an unusable pattern fails at cursor start, not at query
// construction. Compiled regexes are cached by the "pattern\x00opts"
// key in a process-wide LRU cache, since the same filter program is
// typically re-executed across many rows and the same pattern recurs
// across query invocations.
func CompileRegex(r Regex) (*regexp.Regexp, error) {
	if !validOptions(r.Options) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegexOptions, r.Options)
	}

	cache := getRegexCache()
	key := r.Pattern + "\x00" + r.Options
	if re, ok := cache.Get(key); ok {
		return re, nil
	}

	pattern := r.Pattern
	var inline strings.Builder
	inline.WriteString("(?")
	for _, c := range r.Options {
		switch c {
		case 'i', 'm', 's':
			inline.WriteRune(c)
		case 'x':
			pattern = stripExtendedWhitespace(pattern)
		}
	}
	inline.WriteString(")")
	if inline.Len() > 3 { // more than just "(?)"
		pattern = inline.String() + pattern
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegexOptions, err)
	}
	cache.Add(key, re)
	return re, nil
}

// stripExtendedWhitespace approximates PCRE's 'x' modifier: Go's RE2
// has no native extended mode, so unescaped whitespace and '#'-led
// comments outside a character class are stripped before compiling.
func stripExtendedWhitespace(pattern string) string {
	var out strings.Builder
	inClass := false
	escaped := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case escaped:
			out.WriteByte(c)
			escaped = false
		case c == '\\':
			out.WriteByte(c)
			escaped = true
		case c == '[':
			inClass = true
			out.WriteByte(c)
		case c == ']':
			inClass = false
			out.WriteByte(c)
		case !inClass && c == '#':
			for i < len(pattern) && pattern[i] != '\n' {
				i++
			}
		case !inClass && (c == ' ' || c == '\t' || c == '\n' || c == '\r'):
			// skip
		default:
			out.WriteByte(c)
		}
	}
	return out.String()
}
