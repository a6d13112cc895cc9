package importer

import (
	"context"
	"fmt"
)

// CustomerNumberSource reports the highest numeric customer code in use
type CustomerNumberSource interface {
	MaxCustomerNumber(ctx context.Context) (int, error)
}

// CodeAllocator hands out new customer codes for one run. The ERP is queried
// once, on first use; later codes are incremented in process. A code is only
// used up by Commit, so a failed insert leaves it for the next customer.
type CodeAllocator struct {
	source CustomerNumberSource
	last   int
	loaded bool
}

// NewCodeAllocator creates an allocator backed by the ERP
func NewCodeAllocator(source CustomerNumberSource) *CodeAllocator {
	return &CodeAllocator{source: source}
}

// Next returns the next free code, C0 followed by five digits. Repeated calls
// without Commit return the same code.
func (a *CodeAllocator) Next(ctx context.Context) (string, error) {
	if !a.loaded {
		last, err := a.source.MaxCustomerNumber(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to read last customer code: %w", err)
		}
		a.last = last
		a.loaded = true
	}
	return formatCode(a.last + 1), nil
}

// Commit marks the code returned by Next as taken
func (a *CodeAllocator) Commit(code string) {
	if a.loaded && code == formatCode(a.last+1) {
		a.last++
	}
}

func formatCode(n int) string {
	return fmt.Sprintf("C0%05d", n)
}
