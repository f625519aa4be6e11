// Package status publishes periodic system snapshots. Sinks format and
// ship a snapshot; the status task decides when.
package status

import (
	"fmt"
	"strings"
	"sync"

	"go.bug.st/serial"
	"go.uber.org/zap"

	"github.com/oculab/vacutherm/pkg/state"
)

// Sink receives snapshots for publication.
type Sink interface {
	Publish(snap state.Snapshot) error
	Close() error
}

var (
	_ Sink = (*LogSink)(nil)
	_ Sink = (*SerialSink)(nil)
	_ Sink = (*MultiSink)(nil)
)

// ModeLabel names the snapshot's mode for operators.
func ModeLabel(m state.ModeGroup) string {
	switch {
	case m.OverTemperature:
		return "OVERTEMP"
	case m.EmergencyStop:
		return "STOPPED"
	case m.Enabled:
		return "RUN"
	}
	return "IDLE"
}

// Format renders one snapshot as a single status line.
func Format(snap state.Snapshot) string {
	return fmt.Sprintf("temp %.1f/%.1fC heat %d%% press %.2f/%.2fkPa gear %d pump %d%% mode %s",
		snap.Temperature.Current, snap.Temperature.Target,
		dutyPercent(snap.Temperature.HeatDuty),
		snap.Pressure.Current, snap.Pressure.Target,
		snap.Pressure.Gear,
		dutyPercent(snap.Pressure.PumpDuty),
		ModeLabel(snap.Mode))
}

func dutyPercent(duty uint8) int {
	return int(float32(duty) / 255.0 * 100.0)
}

// LogSink publishes snapshots as structured log entries.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink writing to the given logger.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(snap state.Snapshot) error {
	s.log.Info("status",
		zap.Float32("temp_c", snap.Temperature.Current),
		zap.Float32("temp_target_c", snap.Temperature.Target),
		zap.Uint8("heat_duty", snap.Temperature.HeatDuty),
		zap.Float32("press_kpa", snap.Pressure.Current),
		zap.Float32("press_target_kpa", snap.Pressure.Target),
		zap.Int("gear", snap.Pressure.Gear),
		zap.Uint8("pump_duty", snap.Pressure.PumpDuty),
		zap.String("mode", ModeLabel(snap.Mode)))
	return nil
}

func (s *LogSink) Close() error { return nil }

// SerialSink publishes status lines over a serial port for a connected
// host or terminal.
type SerialSink struct {
	port serial.Port
}

// OpenSerialSink opens the named port in 8N1 at the given baud rate.
func OpenSerialSink(name string, baud int) (*SerialSink, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open status port %s: %w", name, err)
	}
	return &SerialSink{port: port}, nil
}

// NewSerialSink wraps an already open port; used by tests.
func NewSerialSink(port serial.Port) *SerialSink {
	return &SerialSink{port: port}
}

func (s *SerialSink) Publish(snap state.Snapshot) error {
	_, err := s.port.Write([]byte(Format(snap) + "\r\n"))
	if err != nil {
		return fmt.Errorf("write status line: %w", err)
	}
	return nil
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}

// MultiSink fans a snapshot out to several sinks. Publish and Close are
// serialized so sinks never see interleaved calls.
type MultiSink struct {
	mu    sync.Mutex
	sinks []Sink
}

// NewMultiSink composes sinks. Order is the publish order.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(snap state.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []string
	for _, s := range m.sinks {
		if err := s.Publish(snap); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("publish: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m *MultiSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []string
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close: %s", strings.Join(errs, "; "))
	}
	return nil
}
