package audit

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ArchiveSuffix marks compressed chain segments produced by Rotate.
const ArchiveSuffix = ".zst"

// DefaultMaxBytes is the rotation threshold used when none is configured.
const DefaultMaxBytes int64 = 10 << 20

// Rotate archives the live log to <path>.<stamp>.zst once it exceeds
// maxBytes, then restarts the live file with a rotated entry whose
// prev_hash carries the archived chain's tail, keeping the segments
// cryptographically linked. Returns the archive path, or "" when the log
// is absent or still under the threshold.
//
// Rotate must not run while a Log has the file open for appending.
func Rotate(path string, maxBytes int64) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("audit: stat %s: %w", path, err)
	}
	if info.Size() <= maxBytes {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("audit: read %s: %w", path, err)
	}

	tail := GenesisHash
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if last := lines[len(lines)-1]; len(last) > 0 {
		tail = HashLine(last)
	}

	stamp := time.Now().UTC().Format("20060102T150405Z")
	archive := path + "." + stamp + ArchiveSuffix
	if err := writeArchive(archive, data); err != nil {
		return "", err
	}

	if err := os.WriteFile(path, nil, 0600); err != nil {
		return "", fmt.Errorf("audit: truncate %s: %w", path, err)
	}

	lg, err := Open(path)
	if err != nil {
		return "", err
	}
	defer lg.Close()
	lg.prevHash = tail
	if err := lg.Record(Entry{
		Event:  EventRotated,
		Detail: filepath.Base(archive),
	}); err != nil {
		return "", err
	}

	return archive, nil
}

func writeArchive(archive string, data []byte) error {
	f, err := os.OpenFile(archive, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: create archive %s: %w", archive, err)
	}
	enc, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		os.Remove(archive)
		return fmt.Errorf("audit: zstd writer: %w", err)
	}
	if _, err := enc.Write(data); err != nil {
		enc.Close()
		f.Close()
		os.Remove(archive)
		return fmt.Errorf("audit: compress archive: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		os.Remove(archive)
		return fmt.Errorf("audit: finish archive: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(archive)
		return fmt.Errorf("audit: close archive: %w", err)
	}
	return nil
}

type archiveReader struct {
	io.Reader
	f   *os.File
	dec *zstd.Decoder
}

func (r *archiveReader) Close() error {
	if r.dec != nil {
		r.dec.Close()
	}
	return r.f.Close()
}

// openLogReader opens a live log or a compressed archive for line reading.
func openLogReader(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ArchiveSuffix) {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audit: zstd reader: %w", err)
	}
	return &archiveReader{Reader: dec, f: f, dec: dec}, nil
}
