package infra

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/nullpane/reflexd/internal/domain"
)

// FileSystemImpl implements domain.FileSystem.
type FileSystemImpl struct {
	homeDir string
}

// NewFileSystem creates a filesystem helper rooted at the user's home.
func NewFileSystem() domain.FileSystem {
	home, _ := os.UserHomeDir()
	return &FileSystemImpl{homeDir: home}
}

// NewFileSystemWithHome creates a filesystem helper with a custom home
// (for testing).
func NewFileSystemWithHome(home string) domain.FileSystem {
	return &FileSystemImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fs *FileSystemImpl) Exists(path string) bool {
	expanded := fs.ExpandHome(path)
	_, err := os.Stat(expanded)
	return err == nil
}

// ExpandHome expands ~ to the user's home directory.
func (fs *FileSystemImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fs.homeDir, path[2:])
	}
	if path == "~" {
		return fs.homeDir
	}
	return path
}

// Ensure FileSystemImpl implements domain.FileSystem.
var _ domain.FileSystem = (*FileSystemImpl)(nil)
