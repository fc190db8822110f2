package ui

import (
	"bytes"
	"encoding/json"

	tea "github.com/charmbracelet/bubbletea"
)

// LogWriter feeds warn and error lines of the JSON logger into the board's
// log panel. Other levels and unparsable lines are dropped, since the TUI
// owns the terminal.
type LogWriter struct {
	send func(tea.Msg)
}

// NewLogWriter returns a LogWriter that sends to the running Program.
func NewLogWriter() *LogWriter {
	return &LogWriter{send: Send}
}

type logLine struct {
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Error string `json:"error"`
}

// Write implements io.Writer. It always reports the whole input consumed.
func (w *LogWriter) Write(p []byte) (int, error) {
	for _, raw := range bytes.Split(p, []byte{'\n'}) {
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var line logLine
		if err := json.Unmarshal(raw, &line); err != nil {
			continue
		}
		if line.Level != "warn" && line.Level != "error" {
			continue
		}
		msg := line.Msg
		if line.Error != "" {
			msg += ": " + line.Error
		}
		w.send(LogMsg{Level: line.Level, Message: msg})
	}
	return len(p), nil
}
