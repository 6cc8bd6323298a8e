package store

import "fmt"

// Copier moves bytes across the boundary between storage and a caller buffer.
// CopyOut copies src (storage) into dst (caller); CopyIn copies src (caller)
// into dst (storage scratch). Either must copy all of src or return an error.
type Copier interface {
	CopyOut(dst, src []byte) error
	CopyIn(dst, src []byte) error
}

// boundedCopier faults when the destination cannot hold the whole source.
type boundedCopier struct{}

func (boundedCopier) CopyOut(dst, src []byte) error {
	return boundedCopy(dst, src)
}

func (boundedCopier) CopyIn(dst, src []byte) error {
	return boundedCopy(dst, src)
}

func boundedCopy(dst, src []byte) error {
	if len(dst) < len(src) {
		return fmt.Errorf("destination holds %d bytes, need %d", len(dst), len(src))
	}
	copy(dst, src)
	return nil
}
