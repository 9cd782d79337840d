package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/camerr"
	"github.com/bryanchriswhite/camcorder/internal/logger"
)

// SimSensor keeps control values in memory
type SimSensor struct {
	mu          sync.Mutex
	values      map[Control]int
	unsupported map[Control]bool
	writes      []Write
	faces       int
}

// Write records one Set call
type Write struct {
	Control Control
	Value   int
}

// NewSimSensor returns a sensor supporting every control except the listed ones
func NewSimSensor(unsupported ...Control) *SimSensor {
	s := &SimSensor{values: make(map[Control]int), unsupported: make(map[Control]bool)}
	for _, c := range unsupported {
		s.unsupported[c] = true
	}
	return s
}

// Name implements Sensor
func (s *SimSensor) Name() string {
	return "sim"
}

// Get implements Sensor
func (s *SimSensor) Get(c Control) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsupported[c] {
		return 0, fmt.Errorf("%s: %w", c, camerr.ErrNotSupported)
	}
	return s.values[c], nil
}

// Set implements Sensor
func (s *SimSensor) Set(c Control, native int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsupported[c] {
		return fmt.Errorf("%s: %w", c, camerr.ErrNotSupported)
	}
	s.values[c] = native
	s.writes = append(s.writes, Write{c, native})
	if c == ControlFaceDetect && native == 0 {
		s.faces = 0
	}
	logger.WithComponent("hal").Debug().Str("control", c.String()).Int("value", native).Msg("Sim control set")
	return nil
}

// Writes returns every Set call in order
func (s *SimSensor) Writes() []Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Write(nil), s.writes...)
}

// SetFaces sets the number of faces the simulated detector reports
func (s *SimSensor) SetFaces(n int) {
	s.mu.Lock()
	s.faces = n
	s.mu.Unlock()
}

// Faces implements FaceDetector
func (s *SimSensor) Faces() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[ControlFaceDetect] == 0 {
		return 0
	}
	return s.faces
}

// Close implements Sensor
func (s *SimSensor) Close() error {
	return nil
}

// SimStrobe counts flashes
type SimStrobe struct {
	mu    sync.Mutex
	fired []time.Duration
}

// Fire implements Strobe
func (s *SimStrobe) Fire(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.fired = append(s.fired, d)
	s.mu.Unlock()
	return nil
}

// Fired returns the pulse length of every flash
func (s *SimStrobe) Fired() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.fired...)
}

// Close implements Strobe
func (s *SimStrobe) Close() error {
	return nil
}
