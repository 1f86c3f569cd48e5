//go:build unix

package slotpool

import "golang.org/x/sys/unix"

// mapAnon maps size bytes of zeroed private memory. The mapping lives for
// the rest of the process; pools have no teardown.
func mapAnon(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}
