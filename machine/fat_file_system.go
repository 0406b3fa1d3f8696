package machine

import (
	"errors"
	"fmt"
	"os"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/fatfs"
)

const (
	fatPageSize   = fatfs.SectorSize
	fatBlockSize  = 4096
	fatBlockCount = 1024
)

// FatFileSystem es un disco FAT formateado sobre un dispositivo de bloques en memoria.
// Su contenido se pierde al apagar la máquina.
type FatFileSystem struct {
	fat *fatfs.FATFS
}

// NewFatFileSystem formatea y monta un disco FAT vacío.
func NewFatFileSystem() (*FatFileSystem, error) {
	dev := tinyfs.NewMemoryDevice(fatPageSize, fatBlockSize, fatBlockCount)
	fat := fatfs.New(dev).Configure(&fatfs.Config{SectorSize: fatfs.SectorSize})

	if err := fat.Format(); err != nil {
		return nil, mapFatErr("format", err)
	}
	if err := fat.Mount(); err != nil {
		return nil, mapFatErr("mount", err)
	}
	return &FatFileSystem{fat: fat}, nil
}

func (fs *FatFileSystem) Open(name string, create bool) (OpenFile, error) {
	if !validFileName(name) {
		return nil, ErrInvalidFileName
	}

	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE | os.O_TRUNC
	}

	f, err := fs.fat.OpenFile("/"+name, flags)
	if err != nil {
		return nil, mapFatErr("open", err)
	}
	return &fatFile{name: name, f: f}, nil
}

func (fs *FatFileSystem) Remove(name string) error {
	if !validFileName(name) {
		return ErrInvalidFileName
	}
	return mapFatErr("remove", fs.fat.Remove("/"+name))
}

type fatFile struct {
	name string
	f    tinyfs.File
}

func (f *fatFile) Name() string                { return f.name }
func (f *fatFile) Read(p []byte) (int, error)  { return f.f.Read(p) }
func (f *fatFile) Write(p []byte) (int, error) { return f.f.Write(p) }
func (f *fatFile) Close() error                { return f.f.Close() }

func mapFatErr(op string, err error) error {
	if err == nil {
		return nil
	}

	var fr fatfs.FileResult
	if errors.As(err, &fr) {
		switch fr {
		case fatfs.FileResultNoFile, fatfs.FileResultNoPath:
			return fmt.Errorf("fat %s: %w", op, ErrFileNotFound)
		case fatfs.FileResultInvalidName:
			return fmt.Errorf("fat %s: %w", op, ErrInvalidFileName)
		}
	}
	return fmt.Errorf("fat %s: %v", op, err)
}
