package service

import "fmt"

type ErrRunQueueFull struct{}

func (e ErrRunQueueFull) Error() string {
	return "run queue is full"
}

func NewErrRunQueueFull() *ErrRunQueueFull {
	return &ErrRunQueueFull{}
}

type RunCancelError struct {
	Message string
}

func (rce RunCancelError) Error() string {
	return rce.Message
}

// DrainFailedError blocks a stack teardown: the bucket could not be
// emptied, so the bucket was not deleted.
type DrainFailedError struct {
	BucketName string
	Detail     string
}

func (e DrainFailedError) Error() string {
	return fmt.Sprintf("drain of bucket %s failed: %s", e.BucketName, e.Detail)
}

type ErrNoBuilder struct{}

func (e ErrNoBuilder) Error() string {
	return "stack has no builder assigned"
}
