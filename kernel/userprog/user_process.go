package userprog

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/threads"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

// RootPID es el pid del primer proceso, el único que puede detener la máquina.
const RootPID = 0

var (
	ErrFragmentedExecutable = errors.New("las secciones del ejecutable no son contiguas desde la página 0")
	ErrArgumentsTooLong     = errors.New("los argumentos no entran en una página")
)

// childProcess es lo que un padre sabe de su hijo: el proceso mientras vive y,
// cuando termina, su estado de salida (nil si terminó de forma anormal).
type childProcess struct {
	process *UserProcess
	status  *int
}

// UserProcess es el estado de un proceso que no vive en su hilo: tabla de páginas,
// descriptores abiertos y su lugar en el árbol de procesos.
type UserProcess struct {
	uk   *UserKernel
	pid  int
	name string

	pageTable []machine.TranslationEntry
	numPages  int
	fileTable []machine.OpenFile

	initialPC int
	initialSP int
	argc      int
	argv      int

	parent   *UserProcess
	children map[int]*childProcess

	memoryLock *threads.Lock
	joinLock   *threads.Lock
	joined     *threads.Condition
	exited     bool
}

// NewUserProcess reserva un pid y abre la consola en los descriptores 0 y 1.
func NewUserProcess(uk *UserKernel) *UserProcess {
	joinLock := threads.NewLock(uk.Kernel)
	p := &UserProcess{
		uk:         uk,
		fileTable:  make([]machine.OpenFile, uk.config.MaxOpenFiles),
		children:   make(map[int]*childProcess),
		memoryLock: threads.NewLock(uk.Kernel),
		joinLock:   joinLock,
		joined:     threads.NewCondition(joinLock),
	}
	p.pid = uk.registerProcess()

	if console := uk.Machine().Console(); console != nil {
		p.fileTable[0] = console.OpenForReading()
		uk.files.Reference(p.fileTable[0].Name())
		p.fileTable[1] = console.OpenForWriting()
		uk.files.Reference(p.fileTable[1].Name())
	}

	slog.Info(fmt.Sprintf("## (%d) Se crea el proceso", p.pid))
	return p
}

func (p *UserProcess) PID() int     { return p.pid }
func (p *UserProcess) Name() string { return p.name }
func (p *UserProcess) Exited() bool { return p.exited }

// Execute carga el programa name y le hace fork a un hilo de usuario que lo corre.
func (p *UserProcess) Execute(name string, args []string) error {
	if err := p.load(name, args); err != nil {
		return err
	}
	p.name = name

	processor := p.uk.Machine().Processor()
	var registers [machine.NumUserRegisters]int

	t := p.uk.NewThread(name, p.runProgram)
	t.SetOwner(p)
	t.SetStateHooks(func() {
		processor.SaveRegisters(&registers)
		p.saveState()
	}, func() {
		processor.RestoreRegisters(&registers)
		p.restoreState()
	})
	t.Fork()

	slog.Debug("Proceso en ejecución", "pid", p.pid, "programa", name, "args", args)
	return nil
}

func (p *UserProcess) runProgram() {
	p.initRegisters()
	p.restoreState()
	p.uk.Machine().Processor().Run()
}

func (p *UserProcess) saveState() {}

func (p *UserProcess) restoreState() {
	p.uk.Machine().Processor().SetPageTable(p.pageTable)
}

// load abre el ejecutable, reserva sus páginas, copia las secciones y deja los
// argumentos en la última página.
func (p *UserProcess) load(name string, args []string) error {
	slog.Debug("Cargando ejecutable", "pid", p.pid, "programa", name)

	fs := p.uk.Machine().FileSystem()
	if fs == nil {
		return machine.ErrFileNotFound
	}
	file, err := fs.Open(name, false)
	if err != nil {
		return err
	}
	exe, err := machine.ParseExecutable(file)
	file.Close()
	if err != nil {
		return err
	}

	numPages := 0
	for _, section := range exe.Sections {
		if section.FirstVPN != numPages {
			return ErrFragmentedExecutable
		}
		numPages += section.Length
	}

	pageSize := p.uk.Machine().PageSize()
	argv := make([][]byte, len(args))
	argsSize := 0
	for i, arg := range args {
		argv[i] = []byte(arg)
		// 4 bytes del puntero más el string con su NUL
		argsSize += 4 + len(argv[i]) + 1
	}
	if argsSize > pageSize {
		return ErrArgumentsTooLong
	}

	p.initialPC = exe.Entry

	numPages += p.uk.config.StackPages
	p.initialSP = numPages * pageSize

	// y una página para los argumentos
	numPages++

	if err := p.loadSections(exe, numPages); err != nil {
		return err
	}

	entryOffset := (numPages - 1) * pageSize
	stringOffset := entryOffset + len(args)*4
	p.argc = len(args)
	p.argv = entryOffset
	p.loadArguments(entryOffset, stringOffset, argv)

	return nil
}

func (p *UserProcess) loadSections(exe *machine.Executable, numPages int) error {
	pageTable, err := p.uk.pages.Acquire(numPages)
	if err != nil {
		return err
	}
	p.pageTable = pageTable
	p.numPages = numPages

	memory := p.uk.Machine().Processor().Memory()
	pageSize := p.uk.Machine().PageSize()
	frame := func(vpn int) []byte {
		start := p.pageTable[vpn].PPN * pageSize
		return memory[start : start+pageSize]
	}

	loaded := 0
	for _, section := range exe.Sections {
		slog.Debug("Inicializando sección", "pid", p.pid, "seccion", section.Name, "paginas", section.Length)
		for i := 0; i < section.Length; i++ {
			vpn := section.FirstVPN + i
			section.LoadPage(i, frame(vpn))
			p.pageTable[vpn].ReadOnly = section.ReadOnly
		}
		loaded += section.Length
	}

	// stack y argumentos arrancan en cero
	for vpn := loaded; vpn < numPages; vpn++ {
		clear(frame(vpn))
	}
	return nil
}

func (p *UserProcess) loadArguments(entryOffset, stringOffset int, argv [][]byte) {
	for _, arg := range argv {
		pointer := binary.LittleEndian.AppendUint32(nil, uint32(stringOffset))
		machine.Assert(p.WriteVirtualMemory(entryOffset, pointer) == 4, "no se pudo escribir argv")
		entryOffset += 4

		machine.Assert(p.WriteVirtualMemory(stringOffset, arg) == len(arg), "no se pudo escribir un argumento")
		stringOffset += len(arg)
		machine.Assert(p.WriteVirtualMemory(stringOffset, []byte{0}) == 1, "no se pudo terminar un argumento")
		stringOffset++
	}
}

func (p *UserProcess) unloadSections() {
	if p.pageTable == nil {
		return
	}
	p.uk.pages.Release(p.pageTable)
	p.pageTable = nil
	p.numPages = 0
}

// initRegisters deja todo en cero salvo PC, SP, A0 (argc) y A1 (argv).
func (p *UserProcess) initRegisters() {
	processor := p.uk.Machine().Processor()

	for i := 0; i < machine.NumUserRegisters; i++ {
		processor.WriteRegister(i, 0)
	}

	processor.WriteRegister(machine.RegPC, p.initialPC)
	processor.WriteRegister(machine.RegNextPC, p.initialPC+4)
	processor.WriteRegister(machine.RegSP, p.initialSP)

	processor.WriteRegister(machine.RegA0, p.argc)
	processor.WriteRegister(machine.RegA1, p.argv)
}

// discard deshace un proceso que nunca llegó a correr.
func (p *UserProcess) discard() {
	p.closeAll()
	p.unloadSections()

	p.uk.stateLock.Acquire()
	p.uk.running--
	p.uk.stateLock.Release()
}

func (p *UserProcess) closeAll() {
	for fd := range p.fileTable {
		if p.validFileDescriptor(fd) {
			p.handleClose(fd)
		}
	}
}

// HandleException atiende una excepción del hilo de usuario. Las syscalls vuelven al
// programa; cualquier otra excepción termina el proceso sin estado.
func (p *UserProcess) HandleException(cause int) {
	processor := p.uk.Machine().Processor()

	switch cause {
	case machine.ExceptionSyscall:
		result := p.HandleSyscall(
			processor.ReadRegister(machine.RegV0),
			processor.ReadRegister(machine.RegA0),
			processor.ReadRegister(machine.RegA1),
			processor.ReadRegister(machine.RegA2),
			processor.ReadRegister(machine.RegA3),
		)
		processor.WriteRegister(machine.RegV0, result)
		processor.AdvancePC()

	default:
		slog.Info(fmt.Sprintf("## (%d) - Excepción inesperada: %s en %#x",
			p.pid, machine.ExceptionName(cause), processor.ReadRegister(machine.RegBadVAddr)))
		p.terminate()
		machine.AssertNotReached("el proceso %d siguió después de una excepción", p.pid)
	}
}

// notifyChildExit guarda el estado de salida del hijo pid. Requiere treeLock.
func (p *UserProcess) notifyChildExit(pid int, status *int) {
	child, ok := p.children[pid]
	if !ok {
		return
	}
	child.process = nil
	child.status = status
}

// disown corta el vínculo con el padre, que ya terminó. Requiere treeLock.
func (p *UserProcess) disown() {
	p.parent = nil
}

// waitExit bloquea hasta que el proceso termine.
func (p *UserProcess) waitExit() {
	p.joinLock.Acquire()
	for !p.exited {
		p.joined.Sleep()
	}
	p.joinLock.Release()
}
