package ui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLogWriter_ForwardsWarnings(t *testing.T) {
	var got []tea.Msg
	w := &LogWriter{send: func(m tea.Msg) { got = append(got, m) }}

	input := `{"level":"info","msg":"prices refreshed"}
{"level":"warn","msg":"pool read failed, keeping previous state","error":"timeout"}
not json
{"level":"error","msg":"refresh failed"}
`
	n, err := w.Write([]byte(input))
	if err != nil || n != len(input) {
		t.Fatalf("Write() = %d, %v", n, err)
	}

	want := []LogMsg{
		{Level: "warn", Message: "pool read failed, keeping previous state: timeout"},
		{Level: "error", Message: "refresh failed"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("msg[%d] = %+v, want %+v", i, got[i], w)
		}
	}
}
