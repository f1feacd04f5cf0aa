package diagnostic

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestObserveModelNotFound(t *testing.T) {
	c := NewClassifier()

	sig, ok := c.Observe(`FooError: data: {providerID: "acme", modelID: "x1"}`)
	if !ok {
		t.Fatal("expected a signal")
	}
	if sig.Message != "Model not found: acme/x1" {
		t.Errorf("message = %q, want %q", sig.Message, "Model not found: acme/x1")
	}
	if sig.ErrorType != "FooError" {
		t.Errorf("error type = %q, want FooError", sig.ErrorType)
	}
	if c.Buffered() != "" {
		t.Errorf("buffer = %q, want cleared after a signal", c.Buffered())
	}
}

func TestObserveClassification(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json quoted keys",
			input: `ProviderModelNotFoundError: ProviderModelNotFoundError` + "\n" + ` data: {"providerID":"openai","modelID":"gpt-x"}`,
			want:  "Model not found: openai/gpt-x",
		},
		{
			name:  "nested data block",
			input: `APIError: request failed data: { error: { providerID: 'anthropic', modelID: 'big' } }`,
			want:  "Model not found: anthropic/big",
		},
		{
			name:  "no provider",
			input: `AuthError: bad token data: {status: 401}`,
			want:  "Agent error: AuthError",
		},
		{
			name:  "model only",
			input: `LoadError: data: {modelID: "x1"}`,
			want:  "Agent error: LoadError",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, ok := NewClassifier().Observe(tt.input)
			if !ok {
				t.Fatalf("no signal for %q", tt.input)
			}
			if sig.Message != tt.want {
				t.Errorf("message = %q, want %q", sig.Message, tt.want)
			}
		})
	}
}

func TestObserveUsesNearestErrorName(t *testing.T) {
	c := NewClassifier()

	if _, ok := c.Observe("TypeError: x is undefined\n    at run (agent.js:10)\n"); ok {
		t.Fatal("signal without a data block")
	}
	sig, ok := c.Observe(`BarError: upstream rejected data: {providerID: "acme", modelID: "x1"}` + "\n")
	if !ok {
		t.Fatal("expected a signal")
	}
	if sig.ErrorType != "BarError" {
		t.Errorf("error type = %q, want BarError", sig.ErrorType)
	}
}

func TestObserveDataBlockStopsAtClosingBrace(t *testing.T) {
	input := `AuthError: bad token data: {status: 401, note: "a } in a string"}` + "\n" +
		`later: {providerID: "leak", modelID: "leak"}`

	sig, ok := NewClassifier().Observe(input)
	if !ok {
		t.Fatal("expected a signal")
	}
	if sig.ProviderID != "" || sig.ModelID != "" {
		t.Errorf("trailing text leaked into the data block: %+v", sig)
	}
	if sig.Message != "Agent error: AuthError" {
		t.Errorf("message = %q", sig.Message)
	}
}

func TestObjectLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{a: 1} tail}`, `{a: 1}`, true},
		{`{a: {b: 2}} }`, `{a: {b: 2}}`, true},
		{`{s: 'it\'s }'} x`, `{s: 'it\'s }'}`, true},
		{`{a: {b: 2}`, "", false},
	}

	for _, tt := range tests {
		got, ok := objectLiteral(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("objectLiteral(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestObserveNoMatchIsSilent(t *testing.T) {
	c := NewClassifier()

	for _, chunk := range []string{"starting agent\n", "Error without a data block\n", "TypeError: x is undefined\n"} {
		if sig, ok := c.Observe(chunk); ok {
			t.Errorf("unexpected signal %q for %q", sig.Message, chunk)
		}
	}
	if !strings.Contains(c.Buffered(), "starting agent") {
		t.Errorf("buffer = %q, want unmatched text retained", c.Buffered())
	}
}

func TestObserveAcrossChunks(t *testing.T) {
	c := NewClassifier()

	if _, ok := c.Observe(`FooError: boom data: {providerID: "acme", `); ok {
		t.Fatal("signal before the data block closed")
	}
	sig, ok := c.Observe(`modelID: "x1"}` + "\n")
	if !ok {
		t.Fatal("expected a signal once the data block closed")
	}
	if sig.Message != "Model not found: acme/x1" {
		t.Errorf("message = %q", sig.Message)
	}
}

func TestBufferBound(t *testing.T) {
	c := NewClassifier()

	chunk := strings.Repeat("a", 999) + "\n"
	for i := range 25 {
		c.Observe(chunk)
		if n := utf8.RuneCountInString(c.Buffered()); n > MaxBufferRunes {
			t.Fatalf("after chunk %d buffer holds %d runes", i, n)
		}
	}

	c.Reset()
	c.Observe(strings.Repeat("x", MaxBufferRunes))
	if n := utf8.RuneCountInString(c.Buffered()); n != MaxBufferRunes {
		t.Fatalf("buffer at the cap = %d runes, want %d", n, MaxBufferRunes)
	}

	c.Observe("yz")
	got := c.Buffered()
	if n := utf8.RuneCountInString(got); n != TrimToRunes {
		t.Fatalf("trimmed buffer = %d runes, want %d", n, TrimToRunes)
	}
	if !strings.HasSuffix(got, "xyz") {
		t.Errorf("trimmed buffer lost the trailing text: ...%q", got[len(got)-5:])
	}
}

func TestTailCountsRunes(t *testing.T) {
	if got := tail("héllo wörld", 5); got != "wörld" {
		t.Errorf("tail = %q, want wörld", got)
	}
	if got := tail("ab", 5); got != "ab" {
		t.Errorf("tail of short string = %q, want ab", got)
	}
}
