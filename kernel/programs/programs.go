package programs

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

// Descriptores que todo proceso recibe abiertos.
const (
	Stdin  = 0
	Stdout = 1
)

// Builtin retorna los programas de usuario que trae el sistema, por nombre sin extensión.
func Builtin() map[string]machine.Program {
	return map[string]machine.Program{
		"halt":  Halt,
		"echo":  Echo,
		"cat":   Cat,
		"cp":    Cp,
		"rm":    Rm,
		"spawn": Spawn,
		"crash": Crash,
	}
}

// Install registra cada programa en la máquina y escribe su ejecutable <nombre>.coff
// en el disco. Se llama antes de arrancar la simulación.
func Install(m *machine.Machine, table map[string]machine.Program) error {
	fs := m.FileSystem()
	if fs == nil {
		return errors.New("la máquina no tiene disco")
	}

	for _, name := range slices.Sorted(maps.Keys(table)) {
		m.Programs().Register(name, table[name])

		data, err := machine.NewNativeExecutable(name, m.PageSize()).MarshalBinary()
		if err != nil {
			return fmt.Errorf("armando %s: %w", name, err)
		}

		file, err := fs.Open(name+".coff", true)
		if err != nil {
			return fmt.Errorf("creando %s.coff: %w", name, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			return fmt.Errorf("escribiendo %s.coff: %w", name, err)
		}
		if err := file.Close(); err != nil {
			return fmt.Errorf("cerrando %s.coff: %w", name, err)
		}

		slog.Debug("Programa instalado", "programa", name+".coff")
	}
	return nil
}

func puts(u *machine.User, s string) {
	u.Write(Stdout, []byte(s))
}

// Halt intenta detener la máquina. Si no es el proceso raíz, avisa y termina con 1.
func Halt(u *machine.User) int {
	if u.Halt() < 0 {
		puts(u, "halt: solo el proceso raíz puede detener la máquina\n")
		return 1
	}
	return 0
}

// Echo escribe sus argumentos separados por espacios.
func Echo(u *machine.User) int {
	puts(u, strings.Join(u.Args(), " ")+"\n")
	return 0
}

// Cat copia cada archivo a la consola.
func Cat(u *machine.User) int {
	for _, name := range u.Args() {
		fd := u.Open(name)
		if fd < 0 {
			puts(u, "cat: no se pudo abrir "+name+"\n")
			return 1
		}
		copyFile(u, fd, Stdout)
		u.Close(fd)
	}
	return 0
}

// Cp copia el archivo origen en destino.
func Cp(u *machine.User) int {
	args := u.Args()
	if len(args) != 2 {
		puts(u, "uso: cp <origen> <destino>\n")
		return 1
	}

	src := u.Open(args[0])
	if src < 0 {
		puts(u, "cp: no se pudo abrir "+args[0]+"\n")
		return 1
	}
	dst := u.Creat(args[1])
	if dst < 0 {
		u.Close(src)
		puts(u, "cp: no se pudo crear "+args[1]+"\n")
		return 1
	}

	copyFile(u, src, dst)
	u.Close(src)
	u.Close(dst)
	return 0
}

// Rm borra cada archivo.
func Rm(u *machine.User) int {
	status := 0
	for _, name := range u.Args() {
		if u.Unlink(name) < 0 {
			puts(u, "rm: no se pudo borrar "+name+"\n")
			status = 1
		}
	}
	return status
}

// Spawn ejecuta el programa de su primer argumento con el resto, lo espera e informa cómo terminó.
func Spawn(u *machine.User) int {
	args := u.Args()
	if len(args) == 0 {
		puts(u, "uso: spawn <programa.coff> [args...]\n")
		return 1
	}

	pid := u.Exec(args[0], args[1:]...)
	if pid < 0 {
		puts(u, "spawn: no se pudo ejecutar "+args[0]+"\n")
		return 1
	}

	result, status := u.Join(pid)
	if result != 1 {
		puts(u, fmt.Sprintf("spawn: %s (pid %d) terminó de forma anormal\n", args[0], pid))
		return 1
	}
	puts(u, fmt.Sprintf("spawn: %s (pid %d) terminó con estado %d\n", args[0], pid, status))
	return status
}

// Crash accede a una dirección fuera de su espacio. El kernel lo termina sin estado.
func Crash(u *machine.User) int {
	u.LoadWord(1 << 30)
	return 0
}

func copyFile(u *machine.User, src, dst int) {
	for {
		data, n := u.Read(src, 64)
		if n <= 0 {
			return
		}
		u.Write(dst, data)
	}
}
