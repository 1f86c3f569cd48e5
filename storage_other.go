//go:build !unix

package slotpool

import (
	"errors"
	"fmt"
)

func mapAnon(size int) ([]byte, error) {
	return nil, fmt.Errorf("anonymous mapping of %d bytes: %w", size, errors.ErrUnsupported)
}
