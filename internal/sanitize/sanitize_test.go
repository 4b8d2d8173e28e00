package sanitize

import (
	"strings"
	"testing"
)

func TestText_StripsTags(t *testing.T) {
	got := Text("  <b>alice</b><script>alert(1)</script> ")
	if got != "alice" {
		t.Errorf("Text() = %q, want %q", got, "alice")
	}
}

func TestText_KeepsPlainText(t *testing.T) {
	for _, in := range []string{"alice", "DJ Nova", "李雷", "rock & roll"} {
		if got := Text(in); got != in {
			t.Errorf("Text(%q) = %q", in, got)
		}
	}
}

func TestHTML_RemovesScripts(t *testing.T) {
	got := HTML(`<p class="lead">hi</p><script>x()</script><a href="javascript:x()">l</a>`)
	if strings.Contains(got, "<script") || strings.Contains(got, "javascript:") {
		t.Errorf("HTML() kept unsafe markup: %q", got)
	}
	if !strings.Contains(got, `<p class="lead">hi</p>`) {
		t.Errorf("HTML() dropped safe markup: %q", got)
	}
}

func TestEmpty(t *testing.T) {
	if Text("") != "" || HTML("") != "" {
		t.Error("empty input must stay empty")
	}
}
