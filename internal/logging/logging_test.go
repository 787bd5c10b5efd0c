package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPromptSinkRedrawsPromptAroundWrite(t *testing.T) {
	var buf bytes.Buffer
	p := NewPromptSink(&buf)
	p.SetPrompt("> ")
	buf.Reset() // drop the initial prompt draw captured by SetPrompt

	p.Write([]byte("log line\n"))

	out := buf.String()
	if !strings.Contains(out, "log line") {
		t.Fatalf("expected log line in output, got %q", out)
	}
	if !strings.HasSuffix(out, "> ") {
		t.Fatalf("expected prompt redrawn at end of output, got %q", out)
	}
}

func TestPromptSinkWriteLineNoPrompt(t *testing.T) {
	var buf bytes.Buffer
	p := NewPromptSink(&buf)
	p.WriteLine("hello")
	if got := buf.String(); got != "hello\n" {
		t.Fatalf("expected plain line with no prompt active, got %q", got)
	}
}
