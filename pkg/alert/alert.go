// Package alert names the audible alert commands. Waveform generation is
// the sink's concern; the control core only issues beep, warning and error.
package alert

import "go.uber.org/zap"

// Sounder is the alert sink capability.
type Sounder interface {
	// Beep is a short acknowledgement.
	Beep()
	// Warning is the attention pattern (range limit, sensor trouble).
	Warning()
	// Error is the alarm pattern (unsafe condition).
	Error()
}

var (
	_ Sounder = (*Logger)(nil)
	_ Sounder = (*Recorder)(nil)
	_ Sounder = Nop{}
)

// Logger reports alert commands to the log; the stand-in sink for runs
// without buzzer hardware.
type Logger struct {
	log *zap.Logger
}

// NewLogger creates a logging sounder.
func NewLogger(log *zap.Logger) *Logger {
	return &Logger{log: log}
}

func (l *Logger) Beep()    { l.log.Info("alert", zap.String("pattern", "beep")) }
func (l *Logger) Warning() { l.log.Warn("alert", zap.String("pattern", "warning")) }
func (l *Logger) Error()   { l.log.Error("alert", zap.String("pattern", "error")) }

// Recorder is a test double capturing the issued commands in order.
type Recorder struct {
	Calls []string
}

func (r *Recorder) Beep()    { r.Calls = append(r.Calls, "beep") }
func (r *Recorder) Warning() { r.Calls = append(r.Calls, "warning") }
func (r *Recorder) Error()   { r.Calls = append(r.Calls, "error") }

// Count returns how many times the named command was issued.
func (r *Recorder) Count(name string) int {
	n := 0
	for _, c := range r.Calls {
		if c == name {
			n++
		}
	}
	return n
}

// Nop discards all commands.
type Nop struct{}

func (Nop) Beep()    {}
func (Nop) Warning() {}
func (Nop) Error()   {}
