package machine

import (
	"errors"
	"io"
)

const (
	ConsoleInputName  = "console.in"
	ConsoleOutputName = "console.out"
)

var errConsoleDirection = errors.New("operación no soportada por este extremo de la consola")

// Console es la consola sincrónica de la máquina.
type Console struct {
	in  io.Reader
	out io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// OpenForReading retorna el archivo que lee de la entrada de la consola.
func (c *Console) OpenForReading() OpenFile {
	return &consoleFile{name: ConsoleInputName, r: c.in}
}

// OpenForWriting retorna el archivo que escribe en la salida de la consola.
func (c *Console) OpenForWriting() OpenFile {
	return &consoleFile{name: ConsoleOutputName, w: c.out}
}

type consoleFile struct {
	name string
	r    io.Reader
	w    io.Writer
}

func (c *consoleFile) Name() string { return c.name }

func (c *consoleFile) Read(p []byte) (int, error) {
	if c.r == nil {
		return 0, errConsoleDirection
	}
	return c.r.Read(p)
}

func (c *consoleFile) Write(p []byte) (int, error) {
	if c.w == nil {
		return 0, errConsoleDirection
	}
	return c.w.Write(p)
}

func (c *consoleFile) Close() error { return nil }
