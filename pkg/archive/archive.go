// Package archive builds the small in-memory tar streams used to copy fact
// scripts into a probe container.
package archive

import (
	"archive/tar"
	"bytes"
	"io"
)

// File is a single regular file to be written to a tar stream.
type File struct {
	Name     string
	Mode     int64
	Contents string
}

// CreateSingleFileTarReader returns a tar stream containing one file.
func CreateSingleFileTarReader(path, txt string) (io.Reader, error) {
	return CreateTarReader([]File{{Name: path, Mode: 0666, Contents: txt}})
}

// CreateTarReader returns a tar stream containing the given files, in order.
func CreateTarReader(files []File) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Name,
			Size: int64(len(f.Contents)),
			Mode: f.Mode,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(f.Contents)); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return bytes.NewReader(buf.Bytes()), nil
}
