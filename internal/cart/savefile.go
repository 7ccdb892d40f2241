package cart

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

// saveRAMSize is the fixed on-disk size of a battery save blob,
// regardless of the cartridge's actual external RAM size.
const saveRAMSize = 32 * 1024

// saveFile owns the optional .sav handle for a battery-backed
// cartridge. A nil *saveFile means the cartridge has no battery, or
// was constructed with an empty romPath (in-memory only).
type saveFile struct {
	f *os.File
}

// openSaveFile opens (creating and zero-filling if necessary) the
// save file alongside romPath and loads its first len(ram) bytes into
// ram. romPath == "" disables persistence.
func openSaveFile(romPath string, ram []byte) (*saveFile, error) {
	if romPath == "" {
		return nil, nil
	}
	path := savePath(romPath)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if _, err := f.Write(make([]byte, saveRAMSize)); err != nil {
			f.Close()
			return nil, err
		}
	}
	buf := make([]byte, saveRAMSize)
	if _, err := f.ReadAt(buf, 0); err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		f.Close()
		return nil, err
	}
	copy(ram, buf)
	return &saveFile{f: f}, nil
}

func savePath(romPath string) string {
	ext := filepath.Ext(romPath)
	return strings.TrimSuffix(romPath, ext) + ".sav"
}

// flush writes ram back to the save file without closing it.
func (s *saveFile) flush(ram []byte) error {
	if s == nil || s.f == nil {
		return nil
	}
	buf := make([]byte, saveRAMSize)
	copy(buf, ram)
	if _, err := s.f.WriteAt(buf, 0); err != nil {
		return err
	}
	return s.f.Sync()
}

// close flushes and releases the handle. Safe to call on a nil
// receiver (no-battery cartridges).
func (s *saveFile) close(ram []byte) error {
	if s == nil || s.f == nil {
		return nil
	}
	if err := s.flush(ram); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
