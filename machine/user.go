package machine

import "sync"

// Códigos de syscall del ABI de usuario: V0 lleva el código, A0..A3 los argumentos
// y el resultado vuelve en V0.
const (
	SyscallHalt   = 0
	SyscallExit   = 1
	SyscallExec   = 2
	SyscallJoin   = 3
	SyscallCreate = 4
	SyscallOpen   = 5
	SyscallRead   = 6
	SyscallWrite  = 7
	SyscallClose  = 8
	SyscallUnlink = 9
)

var syscallNames = map[int]string{
	SyscallHalt:   "HALT",
	SyscallExit:   "EXIT",
	SyscallExec:   "EXEC",
	SyscallJoin:   "JOIN",
	SyscallCreate: "CREATE",
	SyscallOpen:   "OPEN",
	SyscallRead:   "READ",
	SyscallWrite:  "WRITE",
	SyscallClose:  "CLOSE",
	SyscallUnlink: "UNLINK",
}

// SyscallName retorna el nombre de una syscall, o "DESCONOCIDA".
func SyscallName(code int) string {
	if name, ok := syscallNames[code]; ok {
		return name
	}
	return "DESCONOCIDA"
}

// Program es un programa de usuario nativo. Retorna el estado de salida de main.
type Program func(u *User) int

// ProgramTable asocia nombres de programa con su implementación nativa.
type ProgramTable struct {
	mx       sync.Mutex
	programs map[string]Program
}

func NewProgramTable() *ProgramTable {
	return &ProgramTable{programs: make(map[string]Program)}
}

func (t *ProgramTable) Register(name string, program Program) {
	t.mx.Lock()
	t.programs[name] = program
	t.mx.Unlock()
}

func (t *ProgramTable) Lookup(name string) (Program, bool) {
	t.mx.Lock()
	program, ok := t.programs[name]
	t.mx.Unlock()
	return program, ok
}

// User es la vista que tiene un programa de usuario de la máquina: registros,
// memoria virtual a través de la MMU y syscalls. Cada operación consume un tick de usuario.
// Un acceso inválido levanta la excepción y el proceso termina sin retornar.
type User struct {
	p    *Processor
	argc int
	argv int
}

// Argc retorna la cantidad de argumentos con los que se lanzó el programa.
func (u *User) Argc() int { return u.argc }

// Argv retorna la dirección virtual del vector de argumentos.
func (u *User) Argv() int { return u.argv }

// Args lee los argumentos desde la memoria del proceso.
func (u *User) Args() []string {
	args := make([]string, 0, u.argc)
	for i := 0; i < u.argc; i++ {
		args = append(args, u.ReadCString(u.LoadWord(u.argv+4*i), 256))
	}
	return args
}

// Syscall carga el código y los argumentos en los registros y atrapa al kernel.
func (u *User) Syscall(code int, args ...int) int {
	Assert(len(args) <= 4, "una syscall recibe a lo sumo 4 argumentos")

	u.p.userTick()
	u.p.WriteRegister(RegV0, code)
	for i := 0; i < 4; i++ {
		value := 0
		if i < len(args) {
			value = args[i]
		}
		u.p.WriteRegister(RegA0+i, value)
	}
	u.p.raise(ExceptionSyscall, 0)
	return u.p.ReadRegister(RegV0)
}

func (u *User) LoadByte(vaddr int) int {
	u.p.userTick()
	return u.p.readMem(vaddr, 1)
}

func (u *User) StoreByte(vaddr, value int) {
	u.p.userTick()
	u.p.writeMem(vaddr, 1, value)
}

func (u *User) LoadWord(vaddr int) int {
	u.p.userTick()
	return u.p.readMem(vaddr, 4)
}

func (u *User) StoreWord(vaddr, value int) {
	u.p.userTick()
	u.p.writeMem(vaddr, 4, value)
}

// ReadBytes copia n bytes de memoria virtual.
func (u *User) ReadBytes(vaddr, n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(u.LoadByte(vaddr + i))
	}
	return data
}

// WriteBytes copia data a memoria virtual.
func (u *User) WriteBytes(vaddr int, data []byte) {
	for i, b := range data {
		u.StoreByte(vaddr+i, int(b))
	}
}

// ReadCString lee un string terminado en NUL de a lo sumo max bytes.
func (u *User) ReadCString(vaddr, max int) string {
	var data []byte
	for i := 0; i < max; i++ {
		b := u.LoadByte(vaddr + i)
		if b == 0 {
			break
		}
		data = append(data, byte(b))
	}
	return string(data)
}

func (u *User) SP() int            { return u.p.ReadRegister(RegSP) }
func (u *User) SetSP(sp int)       { u.p.WriteRegister(RegSP, sp) }
func (u *User) Register(n int) int { return u.p.ReadRegister(n) }

// Alloca reserva n bytes en el stack (alineado a 4) y retorna su dirección.
func (u *User) Alloca(n int) int {
	sp := u.SP() - (n+3)&^3
	u.SetSP(sp)
	return sp
}

// CString copia s al stack como string terminado en NUL y retorna su dirección.
func (u *User) CString(s string) int {
	vaddr := u.Alloca(len(s) + 1)
	u.WriteBytes(vaddr, append([]byte(s), 0))
	return vaddr
}

// Halt pide detener la máquina. Solo lo logra el proceso raíz.
func (u *User) Halt() int {
	return u.Syscall(SyscallHalt)
}

// Exit termina el proceso con status. No retorna.
func (u *User) Exit(status int) {
	u.Syscall(SyscallExit, status)
	AssertNotReached("exit retornó")
}

// Los wrappers reservan sus buffers en el stack y lo restauran al volver de la syscall.
// No usan defer: si el proceso muere dentro de la syscall su goroutine no debe tocar más la CPU.

// Exec lanza name con args y retorna el pid del hijo o -1.
func (u *User) Exec(name string, args ...string) int {
	sp := u.SP()

	namePtr := u.CString(name)
	ptrs := make([]int, len(args))
	for i, arg := range args {
		ptrs[i] = u.CString(arg)
	}
	argv := u.Alloca(4 * len(args))
	for i, ptr := range ptrs {
		u.StoreWord(argv+4*i, ptr)
	}
	pid := u.Syscall(SyscallExec, namePtr, len(args), argv)

	u.SetSP(sp)
	return pid
}

// Join espera al hijo pid. Retorna el resultado de la syscall y el estado de salida.
func (u *User) Join(pid int) (int, int) {
	sp := u.SP()

	statusPtr := u.Alloca(4)
	u.StoreWord(statusPtr, 0)
	result := u.Syscall(SyscallJoin, pid, statusPtr)
	status := u.LoadWord(statusPtr)

	u.SetSP(sp)
	return result, status
}

func (u *User) Creat(name string) int {
	return u.withString(SyscallCreate, name)
}

func (u *User) Open(name string) int {
	return u.withString(SyscallOpen, name)
}

func (u *User) Unlink(name string) int {
	return u.withString(SyscallUnlink, name)
}

func (u *User) withString(code int, s string) int {
	sp := u.SP()
	result := u.Syscall(code, u.CString(s))
	u.SetSP(sp)
	return result
}

// Read lee hasta n bytes de fd. Retorna los bytes leídos y el resultado de la syscall.
func (u *User) Read(fd, n int) ([]byte, int) {
	sp := u.SP()

	buf := u.Alloca(n)
	result := u.Syscall(SyscallRead, fd, buf, n)
	var data []byte
	if result > 0 {
		data = u.ReadBytes(buf, result)
	}

	u.SetSP(sp)
	return data, result
}

func (u *User) Write(fd int, data []byte) int {
	sp := u.SP()

	buf := u.Alloca(len(data))
	u.WriteBytes(buf, data)
	result := u.Syscall(SyscallWrite, fd, buf, len(data))

	u.SetSP(sp)
	return result
}

func (u *User) Close(fd int) int {
	return u.Syscall(SyscallClose, fd)
}
