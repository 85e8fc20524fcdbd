package logging

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
)

func TestLoggerLevels(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	tests := []struct {
		name    string
		logger  Logger
		wantOut string
	}{
		{"quiet", Logger{}, ""},
		{"verbose", Logger{Verbose: true}, "[info] hello 1\n"},
		{"debug", Logger{Debug: true}, "[info] hello 1\n[debug] detail\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			l := tt.logger
			l.Out, l.Err = &out, &errOut

			l.Infof("hello %d", 1)
			l.Debugf("detail")
			l.Warnf("careful")
			l.Errorf("failed: %s", "boom")

			if out.String() != tt.wantOut {
				t.Errorf("stdout = %q, want %q", out.String(), tt.wantOut)
			}
			if want := "[warn] careful\n[error] failed: boom\n"; errOut.String() != want {
				t.Errorf("stderr = %q, want %q", errOut.String(), want)
			}
		})
	}
}
