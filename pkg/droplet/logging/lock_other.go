//go:build !unix

package logging

import "os"

// File locking is advisory; other platforms rely on the in-process mutex.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) {}
