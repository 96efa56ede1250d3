//go:build !unix

package source

import "os"

// permissionBits is unavailable off unix.
func permissionBits(string, os.FileInfo) uint32 {
	return 0
}
