package service

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyAnalysis means an analysis carried no caption items, so there
	// is nothing to overlay.
	ErrEmptyAnalysis = errors.New("no analysis items provided")

	ErrWorkoutNotFound = errors.New("workout not found")
	ErrJobNotFound     = errors.New("job not found")
)

// StorageError reports a failed object-storage operation.
type StorageError struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// TransferError reports a non-success HTTP fetch of signed content.
type TransferError struct {
	Key    string
	Status string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to fetch storage object %s: %s", e.Key, e.Status)
}

// ParseError reports analysis text that could not be decoded into the
// expected structure.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("analysis is not valid JSON: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// PublishError reports a failed upload of the finished video. Local cleanup
// has already run by the time it is returned.
type PublishError struct {
	Key string
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s: %v", e.Key, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
