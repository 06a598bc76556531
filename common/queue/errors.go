package queue

import "errors"

var (
	// ErrQueueFull is returned when a bounded topic cannot take more messages
	ErrQueueFull = errors.New("queue full")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("queue closed")
)
