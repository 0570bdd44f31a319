package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
)

const outputBufferSize = 64 << 10

// writeFileAtomic writes dest through a temporary file in the same directory
// and renames it into place, so a failed write never leaves a partial file.
func writeFileAtomic(dest string, write func(io.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".csvmerge-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriterSize(tmp, outputBufferSize)
	if err = write(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

// writeStream writes through a buffer to w.
func writeStream(w io.Writer, write func(io.Writer) error) error {
	bw := bufio.NewWriterSize(w, outputBufferSize)
	if err := write(bw); err != nil {
		return err
	}
	return bw.Flush()
}
