package crsf

import (
	"errors"
	"fmt"
)

var (
	// ErrMspTooLarge indicates an MSP payload does not fit one frame.
	ErrMspTooLarge = errors.New("msp payload too large")
	// ErrFrameTooLarge indicates a frame exceeds MaxPayloadLen.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FrameSizeError reports a frame whose length byte exceeds the maximum.
type FrameSizeError struct {
	Len int
}

// Error implements error.
func (e *FrameSizeError) Error() string {
	return fmt.Sprintf("frame length %d exceeds %d", e.Len, MaxPayloadLen)
}

// Is matches ErrFrameTooLarge.
func (e *FrameSizeError) Is(target error) bool {
	return target == ErrFrameTooLarge
}
