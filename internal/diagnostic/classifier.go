// Package diagnostic extracts structured error signals from an agent's stderr.
//
// The extraction is a heuristic over free text. It recognises the
// "<Name>Error: ... data: {...}" shape that Node based agents print for
// unhandled provider errors. Anything else, including errors split across a
// buffer trim or printed without a data block, is a false negative by design
// and is never reported.
package diagnostic

import (
	"fmt"
	"regexp"
	"sync"
	"unicode/utf8"
)

// HeuristicVersion identifies the pattern set below. Bump it when the
// recognised shapes change.
const HeuristicVersion = 2

const (
	// MaxBufferRunes is the most text kept between observations.
	MaxBufferRunes = 10_000
	// TrimToRunes is what remains after the buffer overflows.
	TrimToRunes = 5_000
)

var (
	namePattern     = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*Error):`)
	dataPattern     = regexp.MustCompile(`data:\s*\{`)
	providerPattern = regexp.MustCompile(`["']?providerID["']?\s*:\s*["']([^"']+)["']`)
	modelPattern    = regexp.MustCompile(`["']?modelID["']?\s*:\s*["']([^"']+)["']`)
)

// Signal is an error recognised in the diagnostic stream.
type Signal struct {
	ErrorType  string
	ProviderID string
	ModelID    string
	// Message is the human readable classification.
	Message string
}

func (s Signal) String() string { return s.Message }

// Classifier accumulates stderr text and reports the first recognisable
// error. It is safe for concurrent use.
type Classifier struct {
	mu  sync.Mutex
	buf string
}

// NewClassifier returns an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Observe appends chunk and tests the buffer. On a match the buffer is
// cleared and the signal returned. Otherwise the buffer is bounded to
// MaxBufferRunes, keeping the trailing TrimToRunes when it overflows.
func (c *Classifier) Observe(chunk string) (Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buf += chunk

	if sig, ok := classify(c.buf); ok {
		c.buf = ""
		return sig, true
	}

	if utf8.RuneCountInString(c.buf) > MaxBufferRunes {
		c.buf = tail(c.buf, TrimToRunes)
	}
	return Signal{}, false
}

// Reset empties the buffer.
func (c *Classifier) Reset() {
	c.mu.Lock()
	c.buf = ""
	c.mu.Unlock()
}

// Buffered returns the text currently held.
func (c *Classifier) Buffered() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// classify pairs each data block with the nearest error name before it, so
// an earlier unrelated error line does not claim a later block.
func classify(text string) (Signal, bool) {
	for _, loc := range dataPattern.FindAllStringIndex(text, -1) {
		names := namePattern.FindAllStringSubmatchIndex(text[:loc[0]], -1)
		if len(names) == 0 {
			continue
		}
		data, ok := objectLiteral(text[loc[1]-1:])
		if !ok {
			continue
		}
		last := names[len(names)-1]
		return signalFor(text[last[2]:last[3]], data), true
	}
	return Signal{}, false
}

func signalFor(errorType, data string) Signal {
	sig := Signal{ErrorType: errorType}

	if p := providerPattern.FindStringSubmatch(data); p != nil {
		sig.ProviderID = p[1]
	}
	if p := modelPattern.FindStringSubmatch(data); p != nil {
		sig.ModelID = p[1]
	}

	if sig.ProviderID != "" && sig.ModelID != "" {
		sig.Message = fmt.Sprintf("Model not found: %s/%s", sig.ProviderID, sig.ModelID)
	} else {
		sig.Message = fmt.Sprintf("Agent error: %s", sig.ErrorType)
	}
	return sig
}

// objectLiteral returns the brace-balanced prefix of s, which must start
// with '{'. Braces inside single or double quoted strings are ignored. It
// reports false while the block is still open.
func objectLiteral(s string) (string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func tail(s string, n int) string {
	count := 0
	for i := len(s); i > 0; {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
		count++
		if count == n {
			return s[i:]
		}
	}
	return s
}
