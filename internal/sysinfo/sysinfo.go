// Package sysinfo reports memory and storage headroom.
package sysinfo

import (
	"github.com/juju/errors"
	"golang.org/x/sys/unix"
)

// FreeMemory returns free RAM in bytes.
func FreeMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, errors.Annotate(err, "sysinfo")
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return uint64(info.Freeram) * unit, nil
}

// FreeDisk returns bytes available to unprivileged user on filesystem of path.
func FreeDisk(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, errors.Annotatef(err, "statfs path=%s", path)
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}

// MemoryProbe never fails, reports 0 when unknown so that backpressure engages.
func MemoryProbe() uint64 {
	free, _ := FreeMemory()
	return free
}
