package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRegionUnavailable means the overlay's shared memory could not be opened.
	ErrRegionUnavailable = errors.New("shared memory region unavailable")

	// ErrBadSignature means the mapped region does not carry the expected tag.
	ErrBadSignature = errors.New("shared memory signature mismatch")

	// ErrLayoutBounds means a header value points outside the mapped region.
	ErrLayoutBounds = errors.New("shared memory layout out of bounds")
)

// DeviceNotFoundError is returned when no attached device looks like the display.
type DeviceNotFoundError struct {
	Candidates []Device
}

func (e *DeviceNotFoundError) Error() string {
	if len(e.Candidates) == 0 {
		return "display device not found: no serial ports available"
	}
	names := make([]string, 0, len(e.Candidates))
	for _, d := range e.Candidates {
		names = append(names, d.Port)
	}
	return fmt.Sprintf("display device not found among %s", strings.Join(names, ", "))
}

type ErrSerial struct {
	Op   string
	Port string
	Err  error
}

func (e ErrSerial) Error() string {
	return fmt.Sprintf("serial %s [%s]: %v", e.Op, e.Port, e.Err)
}

func (e ErrSerial) Unwrap() error {
	return e.Err
}

type ErrSensorProvider struct {
	Provider string
	Err      error
}

func (e ErrSensorProvider) Error() string {
	return fmt.Sprintf("sensor provider %s: %v", e.Provider, e.Err)
}

func (e ErrSensorProvider) Unwrap() error {
	return e.Err
}
