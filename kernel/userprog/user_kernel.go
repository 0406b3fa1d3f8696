package userprog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/models"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/threads"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

var ErrLoad = errors.New("no se pudo cargar el programa")

// UserKernel es el kernel de hilos más lo necesario para correr procesos de usuario:
// memoria física, tabla global de archivos abiertos y árbol de procesos.
type UserKernel struct {
	*threads.Kernel

	config *models.Config
	pages  *PageAllocator
	files  *FileReferences

	// stateLock protege el contador de pids y la cantidad de procesos vivos.
	stateLock *threads.Lock
	nextPID   int
	running   int

	// treeLock protege parent y children de todos los procesos.
	treeLock *threads.Lock
}

func NewUserKernel(m *machine.Machine, policy threads.Policy, config *models.Config) *UserKernel {
	if config == nil {
		config = models.DefaultConfig()
	}

	k := threads.NewKernel(m, policy)
	uk := &UserKernel{
		Kernel:    k,
		config:    config,
		pages:     NewPageAllocator(k, m.NumPhysPages()),
		files:     NewFileReferences(k),
		stateLock: threads.NewLock(k),
		treeLock:  threads.NewLock(k),
	}
	m.Processor().SetExceptionHandler(uk.exceptionHandler)
	return uk
}

func (uk *UserKernel) Pages() *PageAllocator  { return uk.pages }
func (uk *UserKernel) Files() *FileReferences { return uk.files }
func (uk *UserKernel) Config() *models.Config { return uk.config }

// Run arranca el proceso raíz (pid 0) con name y args. Retorna cuando la máquina se detiene.
func (uk *UserKernel) Run(name string, args []string) error {
	return uk.RunWith(func() {
		root := NewUserProcess(uk)
		if err := root.Execute(name, args); err != nil {
			root.discard()
			uk.Machine().Fail(fmt.Errorf("%w %s: %v", ErrLoad, name, err))
		}
	})
}

// RunWith corre boot en el hilo main del kernel. Sirve para arrancar procesos propios o pruebas.
func (uk *UserKernel) RunWith(boot func()) error {
	return uk.Kernel.Run(boot)
}

// RunningProcesses retorna la cantidad de procesos que todavía no terminaron.
func (uk *UserKernel) RunningProcesses() int {
	return uk.running
}

func (uk *UserKernel) exceptionHandler() {
	cur := uk.CurrentThread()
	process, ok := cur.Owner().(*UserProcess)
	machine.Assert(ok, "excepción de usuario en %s, que no pertenece a un proceso", cur)

	cause := uk.Machine().Processor().ReadRegister(machine.RegCause)
	process.HandleException(cause)
}

func (uk *UserKernel) registerProcess() int {
	uk.stateLock.Acquire()
	pid := uk.nextPID
	uk.nextPID++
	uk.running++
	uk.stateLock.Release()

	uk.Machine().Stats().ProcessCreated()
	return pid
}

// processExited descuenta un proceso. Con el último se detiene la máquina.
func (uk *UserKernel) processExited() {
	uk.stateLock.Acquire()
	uk.running--
	last := uk.running == 0
	uk.stateLock.Release()

	if last {
		slog.Debug("Terminó el último proceso")
		uk.Terminate()
	}
}
