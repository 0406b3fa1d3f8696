package machine

import (
	"encoding/binary"
	"fmt"
	"log/slog"
)

// Registros de usuario. Siguen la convención MIPS de Nachos.
const (
	RegV0            = 2
	RegV1            = 3
	RegA0            = 4
	RegA1            = 5
	RegA2            = 6
	RegA3            = 7
	RegSP            = 29
	RegRA            = 31
	RegHi            = 32
	RegLo            = 33
	RegPC            = 34
	RegNextPC        = 35
	RegCause         = 36
	RegBadVAddr      = 37
	NumUserRegisters = 38
)

// Excepciones que puede levantar el procesador.
const (
	ExceptionSyscall = iota
	ExceptionPageFault
	ExceptionTLBMiss
	ExceptionReadOnly
	ExceptionBusError
	ExceptionAddressError
	ExceptionOverflow
	ExceptionIllegalInstruction
)

var exceptionNames = []string{
	"syscall", "page fault", "TLB miss", "read-only", "bus error",
	"address error", "overflow", "illegal instruction",
}

// ExceptionName retorna el nombre legible de una excepción.
func ExceptionName(cause int) string {
	if cause < 0 || cause >= len(exceptionNames) {
		return fmt.Sprintf("excepción %d", cause)
	}
	return exceptionNames[cause]
}

// TranslationEntry es una fila de la tabla de páginas.
type TranslationEntry struct {
	VPN      int
	PPN      int
	Valid    bool
	ReadOnly bool
	Used     bool
	Dirty    bool
}

// Processor simula la CPU de usuario: registros, memoria física y MMU con tabla de páginas.
type Processor struct {
	m                *Machine
	memory           []byte
	registers        [NumUserRegisters]int
	pageTable        []TranslationEntry
	exceptionHandler func()
}

func newProcessor(m *Machine) *Processor {
	return &Processor{
		m:      m,
		memory: make([]byte, m.config.PageSize*m.config.NumPhysPages),
	}
}

// Memory retorna la memoria física completa.
func (p *Processor) Memory() []byte { return p.memory }

func (p *Processor) PageSize() int     { return p.m.config.PageSize }
func (p *Processor) NumPhysPages() int { return p.m.config.NumPhysPages }

// PageFromAddress retorna el número de página de una dirección.
func (p *Processor) PageFromAddress(address int) int {
	return address / p.m.config.PageSize
}

// OffsetFromAddress retorna el desplazamiento dentro de la página.
func (p *Processor) OffsetFromAddress(address int) int {
	return address % p.m.config.PageSize
}

// MakeAddress arma una dirección a partir de página y desplazamiento.
func (p *Processor) MakeAddress(page, offset int) int {
	return page*p.m.config.PageSize + offset
}

func (p *Processor) ReadRegister(number int) int {
	Assert(number >= 0 && number < NumUserRegisters, "registro inválido %d", number)
	return p.registers[number]
}

func (p *Processor) WriteRegister(number, value int) {
	Assert(number >= 0 && number < NumUserRegisters, "registro inválido %d", number)
	if number == 0 {
		return
	}
	p.registers[number] = value
}

// SaveRegisters copia los registros de usuario en dst.
func (p *Processor) SaveRegisters(dst *[NumUserRegisters]int) {
	*dst = p.registers
}

// RestoreRegisters carga los registros de usuario desde src.
func (p *Processor) RestoreRegisters(src *[NumUserRegisters]int) {
	p.registers = *src
}

// SetPageTable fija la tabla de páginas que usa la MMU.
func (p *Processor) SetPageTable(pageTable []TranslationEntry) {
	p.pageTable = pageTable
}

func (p *Processor) PageTable() []TranslationEntry {
	return p.pageTable
}

// SetExceptionHandler registra el handler que atiende syscalls y excepciones.
func (p *Processor) SetExceptionHandler(handler func()) {
	p.exceptionHandler = handler
}

// AdvancePC avanza el PC a la próxima instrucción.
func (p *Processor) AdvancePC() {
	p.registers[RegPC] = p.registers[RegNextPC]
	p.registers[RegNextPC] += 4
}

// translate traduce una dirección virtual a física con la tabla de páginas actual.
// Si falla retorna la excepción que corresponde levantar.
func (p *Processor) translate(vaddr, size int, writing bool) (int, int, bool) {
	if vaddr < 0 || vaddr%size != 0 {
		return 0, ExceptionAddressError, false
	}

	vpn := p.PageFromAddress(vaddr)
	offset := p.OffsetFromAddress(vaddr)

	if p.pageTable == nil || vpn >= len(p.pageTable) {
		return 0, ExceptionAddressError, false
	}

	entry := &p.pageTable[vpn]
	if !entry.Valid {
		p.m.stats.PageFault()
		return 0, ExceptionPageFault, false
	}
	if writing && entry.ReadOnly {
		return 0, ExceptionReadOnly, false
	}
	if entry.PPN < 0 || entry.PPN >= p.m.config.NumPhysPages {
		return 0, ExceptionBusError, false
	}

	entry.Used = true
	if writing {
		entry.Dirty = true
	}

	return entry.PPN*p.m.config.PageSize + offset, 0, true
}

// readMem lee size bytes (1, 2 o 4) de memoria virtual en little endian.
func (p *Processor) readMem(vaddr, size int) int {
	paddr, cause, ok := p.translate(vaddr, size, false)
	if !ok {
		p.raise(cause, vaddr)
	}

	switch size {
	case 1:
		return int(p.memory[paddr])
	case 2:
		return int(binary.LittleEndian.Uint16(p.memory[paddr:]))
	default:
		return int(int32(binary.LittleEndian.Uint32(p.memory[paddr:])))
	}
}

func (p *Processor) writeMem(vaddr, size, value int) {
	paddr, cause, ok := p.translate(vaddr, size, true)
	if !ok {
		p.raise(cause, vaddr)
	}

	switch size {
	case 1:
		p.memory[paddr] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(p.memory[paddr:], uint16(value))
	default:
		binary.LittleEndian.PutUint32(p.memory[paddr:], uint32(int32(value)))
	}
}

// raise levanta una excepción hacia el kernel. Para todo lo que no sea una syscall
// el handler termina el proceso y no retorna.
func (p *Processor) raise(cause, badVAddr int) {
	slog.Debug("Excepción de usuario", "causa", ExceptionName(cause), "vaddr", badVAddr)

	p.registers[RegCause] = cause
	p.registers[RegBadVAddr] = badVAddr

	Assert(p.exceptionHandler != nil, "no hay handler de excepciones registrado")
	p.exceptionHandler()

	Assert(cause == ExceptionSyscall, "el handler retornó de la excepción %s", ExceptionName(cause))
}

// Run ejecuta el programa de usuario cuyo stub está en el PC actual. El valor que
// retorna el programa se entrega al kernel con la syscall exit, como hace el start de libc.
func (p *Processor) Run() {
	pc := p.registers[RegPC]

	name, ok := p.fetchNativeStub(pc)
	if !ok {
		p.raise(ExceptionIllegalInstruction, pc)
	}

	program, found := p.m.programs.Lookup(name)
	if !found {
		p.raise(ExceptionIllegalInstruction, pc)
	}

	u := &User{
		p:    p,
		argc: p.registers[RegA0],
		argv: p.registers[RegA1],
	}
	status := program(u)
	u.Exit(status)

	AssertNotReached("exit retornó al programa %s", name)
}

func (p *Processor) fetchNativeStub(pc int) (string, bool) {
	if p.readMem(pc, 4) != nativeStubMagic {
		return "", false
	}

	length := p.readMem(pc+4, 4)
	if length <= 0 || length > maxNativeNameLength {
		return "", false
	}

	name := make([]byte, length)
	for i := range name {
		name[i] = byte(p.readMem(pc+8+i, 1))
	}
	return string(name), true
}

// userTick avanza el reloj una instrucción de usuario.
func (p *Processor) userTick() {
	p.m.interrupt.tick(true)
}
