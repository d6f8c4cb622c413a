package tool

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// NextAvailablePath returns the first path under dir that does not exist, using fileName
// and if it exists, trying base-2.ext, base-3.ext, ... (e.g. txt.txt -> txt-2.txt, txt-3.txt).
func NextAvailablePath(dir, fileName string) string {
	ext := filepath.Ext(fileName)
	base := strings.TrimSuffix(filepath.Base(fileName), ext)
	if base == "" {
		base = fileName
		ext = ""
	}
	try := filepath.Join(dir, fileName)
	if _, err := os.Stat(try); os.IsNotExist(err) {
		return try
	}
	for n := 2; ; n++ {
		try = filepath.Join(dir, fmt.Sprintf("%s-%d%s", base, n, ext))
		if _, err := os.Stat(try); os.IsNotExist(err) {
			return try
		}
	}
}

// StageFile copies src into dir and returns a handle that deletes the copy on Release.
// The handle keeps the uploaded file name even when the staged path had to be renumbered.
func StageFile(ctx context.Context, dir, fileName string, src io.Reader) (*StagedFile, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging folder: %v", err)
	}
	name := filepath.Base(fileName)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid file name: %q", fileName)
	}
	path := NextAvailablePath(dir, name)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create staged file: %v", err)
	}
	written, copyErr := CopyWithContext(ctx, dst, src)
	if closeErr := dst.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to stage %s: %v", name, copyErr)
	}
	return &StagedFile{LocalFile{name: name, path: path, size: written}}, nil
}

// CopyWithContext copies from src to dst and stops with ctx.Err() once ctx is done.
func CopyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.CopyBuffer(dst, &contextReader{ctx: ctx, r: src}, make([]byte, 256*1024))
}

// contextReader fails reads after its context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
