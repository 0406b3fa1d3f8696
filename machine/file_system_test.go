package machine

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func fileSystems(t *testing.T) map[string]FileSystem {
	t.Helper()

	stub, err := NewStubFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("Expected stub file system, got %v", err)
	}
	fat, err := NewFatFileSystem()
	if err != nil {
		t.Fatalf("Expected fat file system, got %v", err)
	}
	return map[string]FileSystem{"stub": stub, "fat": fat}
}

func TestFileSystem_CreateWriteRead(t *testing.T) {
	for name, fs := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			f, err := fs.Open("notas.txt", true)
			if err != nil {
				t.Fatalf("Expected create, got %v", err)
			}
			if _, err := f.Write([]byte("hola nachos")); err != nil {
				t.Fatalf("Expected write, got %v", err)
			}
			if err := f.Close(); err != nil {
				t.Fatalf("Expected close, got %v", err)
			}

			f, err = fs.Open("notas.txt", false)
			if err != nil {
				t.Fatalf("Expected open, got %v", err)
			}
			data := make([]byte, len("hola nachos"))
			if _, err := io.ReadFull(f, data); err != nil {
				t.Fatalf("Expected read, got %v", err)
			}
			f.Close()

			if string(data) != "hola nachos" {
				t.Errorf("Expected 'hola nachos', got %q", data)
			}
			if f.Name() != "notas.txt" {
				t.Errorf("Expected name notas.txt, got %s", f.Name())
			}
		})
	}
}

func TestFileSystem_MissingAndRemove(t *testing.T) {
	for name, fs := range fileSystems(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := fs.Open("fantasma.txt", false); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("Expected ErrFileNotFound, got %v", err)
			}

			f, err := fs.Open("borrar.txt", true)
			if err != nil {
				t.Fatalf("Expected create, got %v", err)
			}
			f.Close()

			if err := fs.Remove("borrar.txt"); err != nil {
				t.Fatalf("Expected remove, got %v", err)
			}
			if _, err := fs.Open("borrar.txt", false); !errors.Is(err, ErrFileNotFound) {
				t.Errorf("Expected ErrFileNotFound after remove, got %v", err)
			}
		})
	}
}

func TestFileSystem_InvalidNames(t *testing.T) {
	names := []string{"", ".", "..", "dir/archivo", `a\b`, strings.Repeat("x", MaxFileNameLength+1)}

	for fsName, fs := range fileSystems(t) {
		for _, name := range names {
			if _, err := fs.Open(name, true); !errors.Is(err, ErrInvalidFileName) {
				t.Errorf("%s: Expected ErrInvalidFileName for %q, got %v", fsName, name, err)
			}
			if err := fs.Remove(name); !errors.Is(err, ErrInvalidFileName) {
				t.Errorf("%s: Expected ErrInvalidFileName removing %q, got %v", fsName, name, err)
			}
		}
	}
}

func TestConsole(t *testing.T) {
	out := &bytes.Buffer{}
	console := NewConsole(strings.NewReader("entrada"), out)

	in := console.OpenForReading()
	data := make([]byte, 7)
	if _, err := io.ReadFull(in, data); err != nil || string(data) != "entrada" {
		t.Errorf("Expected to read 'entrada', got %q (%v)", data, err)
	}
	if _, err := in.Write([]byte("x")); err == nil {
		t.Error("Expected writing to console input to fail")
	}

	w := console.OpenForWriting()
	w.Write([]byte("salida"))
	if out.String() != "salida" {
		t.Errorf("Expected 'salida', got %q", out.String())
	}
	if _, err := w.Read(make([]byte, 1)); err == nil {
		t.Error("Expected reading from console output to fail")
	}

	if in.Name() != ConsoleInputName || w.Name() != ConsoleOutputName {
		t.Errorf("Expected console file names, got %s and %s", in.Name(), w.Name())
	}
}
