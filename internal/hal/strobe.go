package hal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bryanchriswhite/camcorder/internal/logger"
	"github.com/warthog618/go-gpiocdev"
)

// GPIOStrobe pulses one GPIO output line
type GPIOStrobe struct {
	mu   sync.Mutex
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// OpenGPIOStrobe requests offset on chip as an output held low
func OpenGPIOStrobe(chipName string, offset int) (*GPIOStrobe, error) {
	c, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("failed to open chip: %w", err)
	}
	l, err := c.RequestLine(offset, gpiocdev.AsOutput(0))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to request line %d: %w", offset, err)
	}
	logger.WithComponent("hal").Info().Str("chip", chipName).Int("line", offset).Msg("Strobe line requested")
	return &GPIOStrobe{chip: c, line: l}, nil
}

// Fire drives the line high for d
func (s *GPIOStrobe) Fire(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.line.SetValue(1); err != nil {
		return fmt.Errorf("strobe on: %w", err)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	if err := s.line.SetValue(0); err != nil {
		return fmt.Errorf("strobe off: %w", err)
	}
	return ctx.Err()
}

// Close releases the line and the chip
func (s *GPIOStrobe) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.line.SetValue(0)
	if err := s.line.Close(); err != nil {
		return err
	}
	return s.chip.Close()
}
