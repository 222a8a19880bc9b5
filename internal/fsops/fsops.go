package fsops

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS is an abstract filesystem used across the app and tests.
type FS interface {
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	WalkDir(root string, fn fs.WalkDirFunc) error
	EvalSymlinks(name string) (string, error)

	Join(elem ...string) string
	Base(name string) string
	Dir(name string) string
	Ext(name string) string
	Clean(name string) string
	Rel(basePath, targetPath string) (string, error)
	IsAbs(name string) bool
}

// ---------- OS-backed implementation ----------

type OS struct{}

func NewOS() OS { return OS{} }

func (OS) ReadFile(name string) ([]byte, error) { return os.ReadFile(filepath.Clean(name)) }
func (OS) WriteFile(name string, b []byte, p os.FileMode) error {
	return os.WriteFile(filepath.Clean(name), b, p)
}
func (OS) Stat(name string) (fs.FileInfo, error)     { return os.Stat(filepath.Clean(name)) }
func (OS) Lstat(name string) (fs.FileInfo, error)    { return os.Lstat(filepath.Clean(name)) }
func (OS) MkdirAll(path string, p os.FileMode) error { return os.MkdirAll(filepath.Clean(path), p) }
func (OS) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(filepath.Clean(root), fn)
}
func (OS) EvalSymlinks(name string) (string, error) { return filepath.EvalSymlinks(name) }
func (OS) Join(elem ...string) string               { return filepath.Join(elem...) }
func (OS) Base(name string) string                  { return filepath.Base(name) }
func (OS) Dir(name string) string                   { return filepath.Dir(name) }
func (OS) Ext(name string) string                   { return filepath.Ext(name) }
func (OS) Clean(name string) string                 { return filepath.Clean(name) }
func (OS) Rel(basePath, targetPath string) (string, error) {
	return filepath.Rel(basePath, targetPath)
}
func (OS) IsAbs(name string) bool { return filepath.IsAbs(name) }

// ---------- In-memory implementation (for tests/integration) ----------

// Mem has no symbolic links unless the underlying afero.Fs reports them through Lstat.
type Mem struct{ Fs afero.Fs }

func NewMem() Mem { return Mem{Fs: afero.NewMemMapFs()} }

func (m Mem) ReadFile(name string) ([]byte, error) { return afero.ReadFile(m.Fs, filepath.Clean(name)) }
func (m Mem) WriteFile(name string, b []byte, p os.FileMode) error {
	return afero.WriteFile(m.Fs, filepath.Clean(name), b, p)
}
func (m Mem) Stat(name string) (fs.FileInfo, error) { return m.Fs.Stat(filepath.Clean(name)) }
func (m Mem) Lstat(name string) (fs.FileInfo, error) {
	if lstater, ok := m.Fs.(afero.Lstater); ok {
		info, _, err := lstater.LstatIfPossible(filepath.Clean(name))
		return info, err
	}
	return m.Fs.Stat(filepath.Clean(name))
}
func (m Mem) MkdirAll(path string, p os.FileMode) error {
	return m.Fs.MkdirAll(filepath.Clean(path), p)
}
func (m Mem) WalkDir(root string, fn fs.WalkDirFunc) error {
	root = filepath.Clean(root)
	return afero.Walk(m.Fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return fn(p, nil, err)
		}
		de := memDirEntry{info}
		return fn(p, de, nil)
	})
}
func (m Mem) EvalSymlinks(name string) (string, error) {
	cleaned := filepath.Clean(name)
	if _, err := m.Fs.Stat(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}

type memDirEntry struct{ os.FileInfo }

func (d memDirEntry) Type() fs.FileMode          { return d.Mode().Type() }
func (d memDirEntry) Info() (fs.FileInfo, error) { return d.FileInfo, nil }

func (Mem) Join(elem ...string) string { return filepath.Join(elem...) }
func (Mem) Base(name string) string    { return filepath.Base(name) }
func (Mem) Dir(name string) string     { return filepath.Dir(name) }
func (Mem) Ext(name string) string     { return filepath.Ext(name) }
func (Mem) Clean(name string) string   { return filepath.Clean(name) }
func (Mem) Rel(basePath, targetPath string) (string, error) {
	return filepath.Rel(basePath, targetPath)
}
func (Mem) IsAbs(name string) bool { return filepath.IsAbs(name) }
