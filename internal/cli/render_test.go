package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/erg0nix/acplink/internal/agentclient"
	"github.com/erg0nix/acplink/internal/protocol"
)

func TestEventPrinterStreamsText(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf}

	p.handle(agentclient.Event{Type: agentclient.EvtTextDelta, Text: "Hello "})
	p.handle(agentclient.Event{Type: agentclient.EvtTextDelta, Text: "world"})

	if !strings.Contains(buf.String(), "Hello world") {
		t.Fatalf("expected streamed text, got %q", buf.String())
	}
}

func TestEventPrinterQuietHoldsText(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf, quiet: true}

	p.handle(agentclient.Event{Type: agentclient.EvtTextDelta, Text: "Hello"})

	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestEventPrinterToolCalls(t *testing.T) {
	var buf bytes.Buffer
	p := &eventPrinter{out: &buf}

	p.handle(agentclient.Event{
		Type:     agentclient.EvtToolCallStarted,
		ToolCall: &protocol.ToolCall{ToolCallID: "t1", Title: "read_file", Kind: protocol.ToolKindRead, RawInput: map[string]any{"path": "go.mod"}},
	})

	failed := protocol.ToolCallStatusFailed
	p.handle(agentclient.Event{
		Type: agentclient.EvtToolCallFinished,
		ToolCallUpdate: &protocol.ToolCallUpdate{
			ToolCallID: "t1",
			Status:     &failed,
			Content:    []protocol.ToolCallContent{protocol.TextToolContent("no such file\nmore")},
		},
	})

	out := buf.String()
	for _, want := range []string{"read", "read_file", `"path":"go.mod"`, "fail", "no such file"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
	if strings.Contains(out, "more") {
		t.Errorf("expected result cut at the first line, got %q", out)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"first\nsecond", 20, "first"},
		{"abcdefghij", 8, "abcde..."},
		{"ééééééééé", 6, "ééé..."},
	}

	for _, tt := range tests {
		if got := truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestPrintStopReason(t *testing.T) {
	var buf bytes.Buffer
	printStopReason(&buf, protocol.StopReasonMaxTokens)

	if !strings.Contains(buf.String(), "stopped: max_tokens") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestPrintSessionMetadata(t *testing.T) {
	var buf bytes.Buffer
	printSessionMetadata(&buf, &agentclient.SessionMetadata{
		Modes: &protocol.SessionModeState{
			CurrentModeID:  "build",
			AvailableModes: []protocol.SessionMode{{ID: "build", Name: "Build"}, {ID: "plan", Name: "Plan"}},
		},
		Commands: []protocol.AvailableCommand{{Name: "init", Description: "create AGENTS.md"}},
	})

	out := buf.String()
	for _, want := range []string{"MODE", "* build", "plan", "/init"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestPrintSessionMetadataNil(t *testing.T) {
	var buf bytes.Buffer
	printSessionMetadata(&buf, nil)

	if !strings.Contains(buf.String(), "no session") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}
