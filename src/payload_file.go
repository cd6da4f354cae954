package il2prx

/*------------------------------------------------------------------
 *
 * Purpose:	Append-only file receiving the payloads of good packets.
 *
 * Description:	One file per run.  The name comes from a strftime
 *		pattern so each run gets a fresh one, e.g.
 *		il2p_payloads_20250101_120000.bin.  Payload bytes are
 *		written back to back with nothing between them.
 *
 *		The file is locked while open so a second receiver
 *		started by mistake cannot interleave its output.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lestrrat-go/strftime"
)

const DefaultPayloadPattern = "il2p_payloads_%Y%m%d_%H%M%S.bin"

type PayloadFile struct {
	f    *os.File
	path string
}

// OpenPayloadFile creates dir if needed and opens the file named by
// pattern, formatted with now.
func OpenPayloadFile(dir string, pattern string, now time.Time) (*PayloadFile, error) {
	if pattern == "" {
		pattern = DefaultPayloadPattern
	}

	var name, err = strftime.Format(pattern, now)
	if err != nil {
		return nil, fmt.Errorf("bad payload file pattern %q: %w", pattern, err)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("could not create output directory %s: %w", dir, err)
		}
	}

	var path = filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open payload file: %w", err)
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("payload file %s is in use: %w", path, err)
	}

	return &PayloadFile{f: f, path: path}, nil
}

func (pf *PayloadFile) Path() string {
	return pf.path
}

// Unbuffered, so a crash loses nothing already handed to us.
func (pf *PayloadFile) Write(b []byte) (int, error) {
	return pf.f.Write(b)
}

func (pf *PayloadFile) Close() error {
	unlockFile(pf.f)
	return pf.f.Close()
}
