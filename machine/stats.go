package machine

import (
	"fmt"
	"sync/atomic"
)

const (
	KernelTick = 10 // tiempo que avanza el reloj al reactivar interrupciones en modo kernel
	UserTick   = 1  // tiempo que avanza el reloj por cada instrucción de usuario
)

// Stats acumula las estadísticas de la máquina. Se leen desde fuera de la simulación
// (servidor de estado), por eso todos los contadores son atómicos.
type Stats struct {
	totalTicks      atomic.Uint64
	kernelTicks     atomic.Uint64
	userTicks       atomic.Uint64
	idleTicks       atomic.Uint64
	contextSwitches atomic.Uint64
	syscalls        atomic.Uint64
	pageFaults      atomic.Uint64
	processes       atomic.Uint64
}

// StatsSnapshot es la foto serializable de Stats.
type StatsSnapshot struct {
	TotalTicks      uint64 `json:"total_ticks"`
	KernelTicks     uint64 `json:"kernel_ticks"`
	UserTicks       uint64 `json:"user_ticks"`
	IdleTicks       uint64 `json:"idle_ticks"`
	ContextSwitches uint64 `json:"context_switches"`
	Syscalls        uint64 `json:"syscalls"`
	PageFaults      uint64 `json:"page_faults"`
	Processes       uint64 `json:"processes"`
}

func (s *Stats) TotalTicks() uint64 { return s.totalTicks.Load() }

func (s *Stats) advance(ticks uint64, userMode bool) {
	s.totalTicks.Add(ticks)
	if userMode {
		s.userTicks.Add(ticks)
	} else {
		s.kernelTicks.Add(ticks)
	}
}

func (s *Stats) idleUntil(when uint64) {
	now := s.totalTicks.Load()
	if when <= now {
		return
	}
	s.idleTicks.Add(when - now)
	s.totalTicks.Store(when)
}

func (s *Stats) ContextSwitch()  { s.contextSwitches.Add(1) }
func (s *Stats) Syscall()        { s.syscalls.Add(1) }
func (s *Stats) PageFault()      { s.pageFaults.Add(1) }
func (s *Stats) ProcessCreated() { s.processes.Add(1) }

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalTicks:      s.totalTicks.Load(),
		KernelTicks:     s.kernelTicks.Load(),
		UserTicks:       s.userTicks.Load(),
		IdleTicks:       s.idleTicks.Load(),
		ContextSwitches: s.contextSwitches.Load(),
		Syscalls:        s.syscalls.Load(),
		PageFaults:      s.pageFaults.Load(),
		Processes:       s.processes.Load(),
	}
}

func (s *Stats) String() string {
	snap := s.Snapshot()
	return fmt.Sprintf("Ticks: total %d, kernel %d, user %d, idle %d | Cambios de contexto: %d | Syscalls: %d | Fallos de página: %d | Procesos: %d",
		snap.TotalTicks, snap.KernelTicks, snap.UserTicks, snap.IdleTicks,
		snap.ContextSwitches, snap.Syscalls, snap.PageFaults, snap.Processes)
}
