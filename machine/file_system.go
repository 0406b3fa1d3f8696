package machine

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrFileNotFound    = errors.New("archivo inexistente")
	ErrInvalidFileName = errors.New("nombre de archivo inválido")
)

// MaxFileNameLength es el largo máximo de un nombre de archivo.
const MaxFileNameLength = 255

// OpenFile es un archivo abierto con posición propia.
type OpenFile interface {
	io.Reader
	io.Writer
	io.Closer
	Name() string
}

// FileSystem es el disco que ven los procesos de usuario.
type FileSystem interface {
	// Open abre name. Con create lo crea si no existe y lo trunca si existe.
	Open(name string, create bool) (OpenFile, error)
	Remove(name string) error
}

func validFileName(name string) bool {
	return name != "" && len(name) <= MaxFileNameLength &&
		!strings.ContainsAny(name, "/\\\x00") && name != "." && name != ".."
}

// StubFileSystem guarda los archivos en un directorio del host.
type StubFileSystem struct {
	root string
}

// NewStubFileSystem usa root como directorio raíz. Lo crea si no existe.
func NewStubFileSystem(root string) (*StubFileSystem, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &StubFileSystem{root: root}, nil
}

func (fs *StubFileSystem) Open(name string, create bool) (OpenFile, error) {
	if !validFileName(name) {
		return nil, ErrInvalidFileName
	}

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}

	f, err := os.OpenFile(filepath.Join(fs.root, name), flags, 0o644)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &stubFile{name: name, f: f}, nil
}

func (fs *StubFileSystem) Remove(name string) error {
	if !validFileName(name) {
		return ErrInvalidFileName
	}
	err := os.Remove(filepath.Join(fs.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrFileNotFound
	}
	return err
}

type stubFile struct {
	name string
	f    *os.File
}

func (s *stubFile) Name() string                { return s.name }
func (s *stubFile) Read(p []byte) (int, error)  { return s.f.Read(p) }
func (s *stubFile) Write(p []byte) (int, error) { return s.f.Write(p) }
func (s *stubFile) Close() error                { return s.f.Close() }
