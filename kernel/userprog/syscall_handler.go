package userprog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

// ExecutableSuffix es la extensión obligatoria de los programas que se pasan a exec.
const ExecutableSuffix = ".coff"

// HandleSyscall despacha la syscall code y retorna lo que verá el programa en V0.
// Un código desconocido es un error del kernel.
func (p *UserProcess) HandleSyscall(code, a0, a1, a2, a3 int) int {
	p.uk.Machine().Stats().Syscall()
	slog.Info(fmt.Sprintf("## (%d) - Solicitó syscall: %s", p.pid, machine.SyscallName(code)))

	switch code {
	case machine.SyscallHalt:
		return p.handleHalt()
	case machine.SyscallExit:
		status := a0
		return p.handleExit(&status)
	case machine.SyscallExec:
		return p.handleExec(a0, a1, a2)
	case machine.SyscallJoin:
		return p.handleJoin(a0, a1)
	case machine.SyscallCreate:
		return p.handleCreate(a0)
	case machine.SyscallOpen:
		return p.handleOpen(a0)
	case machine.SyscallRead:
		return p.handleRead(a0, a1, a2)
	case machine.SyscallWrite:
		return p.handleWrite(a0, a1, a2)
	case machine.SyscallClose:
		return p.handleClose(a0)
	case machine.SyscallUnlink:
		return p.handleUnlink(a0)
	}

	machine.AssertNotReached("syscall desconocida %d (a3=%d)", code, a3)
	return 0
}

// handleHalt detiene la máquina. Solo lo puede pedir el proceso raíz.
func (p *UserProcess) handleHalt() int {
	if p.pid != RootPID {
		slog.Debug("Halt rechazado: solo el proceso raíz puede detener la máquina", "pid", p.pid)
		return -1
	}

	p.uk.Terminate()

	machine.AssertNotReached("halt no detuvo la máquina")
	return 0
}

// handleExit termina el proceso. status nil significa que terminó por una excepción.
// No retorna: el hilo del proceso finaliza acá.
func (p *UserProcess) handleExit(status *int) int {
	if status != nil {
		slog.Info(fmt.Sprintf("## (%d) - Finaliza el proceso con estado %d", p.pid, *status))
	} else {
		slog.Info(fmt.Sprintf("## (%d) - Finaliza el proceso de forma anormal", p.pid))
	}

	p.closeAll()

	p.uk.treeLock.Acquire()
	for _, child := range p.children {
		if child.process != nil {
			child.process.disown()
		}
	}
	p.children = nil
	if p.parent != nil {
		p.parent.notifyChildExit(p.pid, status)
		p.parent = nil
	}
	p.uk.treeLock.Release()

	p.unloadSections()

	p.joinLock.Acquire()
	p.exited = true
	p.joined.WakeAll()
	p.joinLock.Release()

	p.uk.processExited()
	p.uk.Finish()

	machine.AssertNotReached("el proceso %d siguió después de exit", p.pid)
	return 0
}

// terminate es la salida anormal del proceso.
func (p *UserProcess) terminate() int {
	return p.handleExit(nil)
}

func (p *UserProcess) fileDescriptor() int {
	for fd, file := range p.fileTable {
		if file == nil {
			return fd
		}
	}
	return -1
}

func (p *UserProcess) validFileDescriptor(fd int) bool {
	return fd >= 0 && fd < len(p.fileTable) && p.fileTable[fd] != nil
}

func (p *UserProcess) handleCreate(namePtr int) int {
	return p.openFile(namePtr, true)
}

func (p *UserProcess) handleOpen(namePtr int) int {
	return p.openFile(namePtr, false)
}

func (p *UserProcess) openFile(namePtr int, create bool) int {
	if !p.validAddress(namePtr) {
		return p.terminate()
	}

	fd := p.fileDescriptor()
	if fd == -1 {
		return -1
	}

	name, ok := p.ReadVirtualMemoryString(namePtr, p.uk.config.MaxArgLength)
	if !ok {
		return -1
	}

	if !p.uk.files.Reference(name) {
		slog.Debug("Open rechazado: el archivo espera ser borrado", "pid", p.pid, "archivo", name)
		return -1
	}

	fs := p.uk.Machine().FileSystem()
	if fs == nil {
		p.uk.files.Unreference(name)
		return -1
	}
	file, err := fs.Open(name, create)
	if err != nil {
		slog.Debug("Open falló", "pid", p.pid, "archivo", name, "error", err)
		p.uk.files.Unreference(name)
		return -1
	}

	p.fileTable[fd] = file
	return fd
}

func (p *UserProcess) handleRead(fd, bufferPtr, size int) int {
	if !p.validAddress(bufferPtr) {
		return p.terminate()
	}
	if !p.validFileDescriptor(fd) || size < 0 {
		return -1
	}

	buffer := make([]byte, size)
	bytesRead, err := p.fileTable[fd].Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return -1
	}

	if p.WriteVirtualMemory(bufferPtr, buffer[:bytesRead]) != bytesRead {
		return -1
	}
	return bytesRead
}

func (p *UserProcess) handleWrite(fd, bufferPtr, size int) int {
	if !p.validAddress(bufferPtr) {
		return p.terminate()
	}
	if !p.validFileDescriptor(fd) || size < 0 {
		return -1
	}

	buffer := make([]byte, size)
	bytesRead := p.ReadVirtualMemory(bufferPtr, buffer)
	bytesWritten, err := p.fileTable[fd].Write(buffer[:bytesRead])
	if err != nil {
		return -1
	}
	return bytesWritten
}

func (p *UserProcess) handleClose(fd int) int {
	if !p.validFileDescriptor(fd) {
		return -1
	}

	file := p.fileTable[fd]
	p.fileTable[fd] = nil
	if err := file.Close(); err != nil {
		slog.Debug("Close falló", "pid", p.pid, "archivo", file.Name(), "error", err)
	}

	return p.uk.files.Unreference(file.Name())
}

func (p *UserProcess) handleUnlink(namePtr int) int {
	if !p.validAddress(namePtr) {
		return p.terminate()
	}

	name, ok := p.ReadVirtualMemoryString(namePtr, p.uk.config.MaxArgLength)
	if !ok {
		return -1
	}
	return p.uk.files.Delete(name)
}

// handleExec lanza un proceso hijo. Retorna su pid o -1 si algo de lo que pasó el
// programa no es válido o el hijo no se pudo cargar.
func (p *UserProcess) handleExec(namePtr, argc, argvPtr int) int {
	if !p.validAddress(namePtr) || (argc > 0 && !p.validAddress(argvPtr)) {
		return p.terminate()
	}

	name, ok := p.ReadVirtualMemoryString(namePtr, p.uk.config.MaxArgLength)
	if !ok || !strings.HasSuffix(name, ExecutableSuffix) {
		return -1
	}

	if argc < 0 || argc > p.uk.Machine().PageSize()/4 {
		return -1
	}

	argvArray := make([]byte, argc*4)
	if p.ReadVirtualMemory(argvPtr, argvArray) != len(argvArray) {
		return -1
	}

	args := make([]string, argc)
	for i := range args {
		pointer := int(int32(binary.LittleEndian.Uint32(argvArray[i*4:])))
		if !p.validAddress(pointer) {
			return -1
		}
		arg, ok := p.ReadVirtualMemoryString(pointer, p.uk.config.MaxArgLength)
		if !ok {
			return -1
		}
		args[i] = arg
	}

	child := NewUserProcess(p.uk)

	p.uk.treeLock.Acquire()
	child.parent = p
	p.children[child.pid] = &childProcess{process: child}
	p.uk.treeLock.Release()

	if err := child.Execute(name, args); err != nil {
		slog.Info(fmt.Sprintf("## (%d) - No se pudo ejecutar %s: %v", p.pid, name, err))

		p.uk.treeLock.Acquire()
		delete(p.children, child.pid)
		p.uk.treeLock.Release()
		child.discard()
		return -1
	}

	return child.pid
}

// handleJoin espera al hijo pid. Retorna -1 si pid no es hijo, 1 si terminó normalmente
// (y deja su estado en statusPtr) o 0 si terminó por una excepción.
func (p *UserProcess) handleJoin(pid, statusPtr int) int {
	if !p.validAddress(statusPtr) {
		return p.terminate()
	}

	p.uk.treeLock.Acquire()
	child, ok := p.children[pid]
	var process *UserProcess
	if ok {
		process = child.process
	}
	p.uk.treeLock.Release()

	if !ok {
		return -1
	}

	if process != nil {
		process.waitExit()
	}

	p.uk.treeLock.Acquire()
	delete(p.children, pid)
	status := child.status
	p.uk.treeLock.Release()

	if status == nil {
		return 0
	}

	if p.WriteVirtualMemory(statusPtr, binary.LittleEndian.AppendUint32(nil, uint32(int32(*status)))) != 4 {
		return p.terminate()
	}
	return 1
}
