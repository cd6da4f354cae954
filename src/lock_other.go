//go:build !unix

package il2prx

import (
	"os"
)

func lockFile(_ *os.File) error {
	return nil
}

func unlockFile(_ *os.File) {}
