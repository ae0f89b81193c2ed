package model

import (
	"errors"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrNoContent   = errors.New("no content produced")
)

// FailureSentinel marks a logical failure in resolved content: a worker
// may exit 0 yet still signal failure by prefixing its output with it.
const FailureSentinel = "GENERATION_FAILED:"
