//go:build unix

package source

import (
	"os"

	"golang.org/x/sys/unix"
)

// permissionBits returns st_mode & 07777, including setuid, setgid and
// sticky bits.
func permissionBits(path string, info os.FileInfo) uint32 {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return uint32(info.Mode().Perm())
	}
	return uint32(st.Mode) & 0o7777
}
