// Package zip bundles downloaded videos into a single archive.
package zip

import (
	"archive/zip"
	"fmt"
	"io"
	"time"
)

// Entry is one file in an archive. Open is called lazily so large files
// are streamed rather than buffered.
type Entry struct {
	Filename string
	Modified time.Time
	Open     func() (io.ReadCloser, error)
}

// Write streams entries into w. Video containers are already compressed, so
// entries are stored rather than deflated. Duplicate names get a numeric
// suffix.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		name := uniqueName(seen, e.Filename)
		hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: e.Modified}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
		if err := copyEntry(fw, e); err != nil {
			return fmt.Errorf("zip %s: %w", name, err)
		}
	}
	return zw.Close()
}

func copyEntry(dst io.Writer, e Entry) error {
	rc, err := e.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(dst, rc)
	return err
}

func uniqueName(seen map[string]int, name string) string {
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	ext := ""
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			ext = name[i:]
			name = name[:i]
			break
		}
	}
	return fmt.Sprintf("%s-%d%s", name, n+1, ext)
}
