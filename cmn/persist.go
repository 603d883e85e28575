package cmn

import (
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"go.uber.org/atomic"
)

// SaveJSON writes v to path as JSON, via a temp file in the same directory
// that is renamed into place, so a crash mid-write never leaves a truncated
// file behind. Ported from the teacher's cmn/jsp.Save atomic-rename idiom.
func SaveJSON(path string, v interface{}) error {
	return SaveBytes(path, MustMarshal(v))
}

// SaveBytes atomically writes data to path via the same temp-file-then-rename
// idiom as SaveJSON, for callers that already hold a marshaled payload (e.g.
// a Pipeline's GetAsJSON snapshot).
func SaveBytes(path string, data []byte) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp." + GenTie()
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
				glog.Errorf("nested (%v): failed to remove %s: %v", err, tmp, rmErr)
			}
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadJSON reads and unmarshals path into v. Returns os.IsNotExist errors
// unchanged so callers can treat "no file yet" as a normal first-run case.
func LoadJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return JSON.Unmarshal(b, v)
}

// ReadFileIfExists reads path and returns its contents, or (nil, nil) if
// the file does not exist.
func ReadFileIfExists(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

var tieCounter atomic.Int32

// GenTie returns a short collision-resistant suffix for temp-file names,
// ported from the teacher's cmn.GenTie.
func GenTie() string {
	n := tieCounter.Inc()
	b0 := uuidABC[n&0x3f]
	b1 := uuidABC[(-n)&0x3f]
	b2 := uuidABC[(n>>2)&0x3f]
	return string([]byte{b0, b1, b2})
}
