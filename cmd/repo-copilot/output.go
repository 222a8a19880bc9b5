package repocopilot

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/temirov/repo-copilot/internal/fsops"
)

// writeOutputFile stores data at path, gzip-compressed when the path ends in .gz.
func writeOutputFile(fileSystem fsops.FS, path string, data []byte) error {
	payload := data
	if strings.HasSuffix(strings.ToLower(path), gzipExtension) {
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(data); err != nil {
			return fmt.Errorf(outputWriteErrorFormat, path, err)
		}
		if err := writer.Close(); err != nil {
			return fmt.Errorf(outputWriteErrorFormat, path, err)
		}
		payload = buffer.Bytes()
	}
	if directory := fileSystem.Dir(path); directory != "" && directory != "." {
		if err := fileSystem.MkdirAll(directory, 0o755); err != nil {
			return fmt.Errorf(outputWriteErrorFormat, path, err)
		}
	}
	if err := fileSystem.WriteFile(path, payload, outputFilePerm); err != nil {
		return fmt.Errorf(outputWriteErrorFormat, path, err)
	}
	return nil
}
