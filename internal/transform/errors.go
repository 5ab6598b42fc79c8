package transform

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidOperation = errors.New("invalid elementwise operation")
	ErrInvalidKernel    = errors.New("invalid kernel size")
)

// InvalidOperationError reports an elementwise operation kind outside the
// known set. It points at a catalog or caller defect rather than bad input.
type InvalidOperationError struct {
	Op string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("%s: %q", ErrInvalidOperation, e.Op)
}

func (e *InvalidOperationError) Is(target error) bool {
	return target == ErrInvalidOperation
}

type KernelSizeError struct {
	Size int
}

func (e *KernelSizeError) Error() string {
	return fmt.Sprintf("%s: %d (must be a positive odd number)", ErrInvalidKernel, e.Size)
}

func (e *KernelSizeError) Is(target error) bool {
	return target == ErrInvalidKernel
}
