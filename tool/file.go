package tool

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/moyoez/localstore-go/types"
)

// LocalFile is a FileHandle backed by a path on disk.
type LocalFile struct {
	name string
	path string
	size int64
}

func (f *LocalFile) Name() string { return f.name }
func (f *LocalFile) Size() int64  { return f.size }
func (f *LocalFile) Path() string { return f.path }

func (f *LocalFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// StagedFile is a LocalFile copied into the staging folder; Release removes the copy.
type StagedFile struct {
	LocalFile
}

func (f *StagedFile) Release() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

var _ types.Releaser = (*StagedFile)(nil)

// MemoryFile is a FileHandle over an in-memory payload.
type MemoryFile struct {
	name string
	data []byte
}

func NewMemoryFile(name string, data []byte) *MemoryFile {
	return &MemoryFile{name: name, data: data}
}

func (f *MemoryFile) Name() string { return f.name }
func (f *MemoryFile) Size() int64  { return int64(len(f.data)) }

func (f *MemoryFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// OpenLocalFile stats path and returns a handle for it. name overrides the base name when set.
func OpenLocalFile(path, name string) (*LocalFile, error) {
	fileName, fileSize, err := GetFileInfoFromPath(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fileName
	}
	return &LocalFile{name: name, path: path, size: fileSize}, nil
}

// ProcessFileInput resolves a file:// URL (or plain path) into a handle.
func ProcessFileInput(fileInput types.FileInput) (types.FileHandle, error) {
	if fileInput.FileUrl == "" {
		return nil, fmt.Errorf("fileUrl is required")
	}
	filePath := fileInput.FileUrl
	parsedUrl, err := url.Parse(fileInput.FileUrl)
	if err == nil && parsedUrl.Scheme != "" {
		if parsedUrl.Scheme != "file" {
			return nil, fmt.Errorf("only file:// protocol is supported for fileUrl")
		}
		filePath = parsedUrl.Path
	}
	DefaultLogger.Debugf("Reading file info from: %s", filePath)
	return OpenLocalFile(filePath, fileInput.FileName)
}

// GetFileInfoFromPath reads file name and size from the local filesystem.
func GetFileInfoFromPath(filePath string) (string, int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to stat file: %v", err)
	}
	if fileInfo.IsDir() {
		return "", 0, fmt.Errorf("path is a directory, not a file")
	}
	return filepath.Base(filePath), fileInfo.Size(), nil
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders bytes with one decimal, 1024 based: 1536 -> "1.5 KB".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	i := int(math.Floor(math.Log(float64(bytes)) / math.Log(1024)))
	if i >= len(sizeUnits) {
		i = len(sizeUnits) - 1
	}
	value := float64(bytes) / math.Pow(1024, float64(i))
	return strconv.FormatFloat(math.Round(value*10)/10, 'f', -1, 64) + " " + sizeUnits[i]
}
