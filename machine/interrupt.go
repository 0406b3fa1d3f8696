package machine

import (
	"log/slog"
	"sort"
)

type pendingInterrupt struct {
	time    uint64
	kind    string
	handler func()
}

// Interrupt simula el controlador de interrupciones y el reloj de la máquina.
// El reloj solo avanza cuando se reactivan las interrupciones, en cada instrucción
// de usuario o cuando la CPU queda ociosa.
type Interrupt struct {
	m             *Machine
	enabled       bool
	inHandler     bool
	yieldOnReturn bool
	pending       []*pendingInterrupt
	yieldHook     func()
}

func newInterrupt(m *Machine) *Interrupt {
	return &Interrupt{m: m}
}

// Enable habilita interrupciones.
func (i *Interrupt) Enable() {
	i.SetStatus(true)
}

// Disable deshabilita interrupciones y retorna el estado anterior.
//
// Ejemplo:
//
//	intStatus := interrupt.Disable()
//	defer interrupt.Restore(intStatus)
func (i *Interrupt) Disable() bool {
	return i.SetStatus(false)
}

// Restore vuelve al estado retornado por Disable.
func (i *Interrupt) Restore(status bool) {
	i.SetStatus(status)
}

// SetStatus fija el estado y retorna el anterior. Pasar de deshabilitado a habilitado
// avanza el reloj y atiende las interrupciones vencidas.
func (i *Interrupt) SetStatus(status bool) bool {
	old := i.enabled
	i.enabled = status
	if !old && status {
		i.tick(false)
	}
	return old
}

func (i *Interrupt) Enabled() bool  { return i.enabled }
func (i *Interrupt) Disabled() bool { return !i.enabled }

// SetYieldHook registra la función que cede la CPU cuando un handler pide YieldOnReturn.
func (i *Interrupt) SetYieldHook(hook func()) {
	i.yieldHook = hook
}

// Schedule programa una interrupción dentro de delay ticks.
func (i *Interrupt) Schedule(delay uint64, kind string, handler func()) {
	Assert(delay > 0, "la interrupción %s debe programarse en el futuro", kind)

	p := &pendingInterrupt{time: i.m.stats.TotalTicks() + delay, kind: kind, handler: handler}
	idx := sort.Search(len(i.pending), func(n int) bool { return i.pending[n].time > p.time })
	i.pending = append(i.pending, nil)
	copy(i.pending[idx+1:], i.pending[idx:])
	i.pending[idx] = p
}

// YieldOnReturn pide ceder la CPU una vez que terminen los handlers en curso.
func (i *Interrupt) YieldOnReturn() {
	Assert(i.inHandler, "YieldOnReturn fuera de un handler de interrupción")
	i.yieldOnReturn = true
}

// Pending retorna la cantidad de interrupciones programadas.
func (i *Interrupt) Pending() int {
	return len(i.pending)
}

func (i *Interrupt) tick(userMode bool) {
	i.m.checkHalted()

	if userMode {
		i.m.stats.advance(UserTick, true)
	} else {
		i.m.stats.advance(KernelTick, false)
	}

	i.checkIfDue(true)
}

func (i *Interrupt) checkIfDue(mayYield bool) {
	if i.inHandler {
		return
	}

	now := i.m.stats.TotalTicks()
	old := i.enabled
	i.enabled = false
	i.inHandler = true
	for len(i.pending) > 0 && i.pending[0].time <= now {
		p := i.pending[0]
		i.pending = i.pending[1:]
		slog.Debug("Atendiendo interrupción", "tipo", p.kind, "tick", now)
		p.handler()
	}
	i.inHandler = false
	i.enabled = old

	if i.yieldOnReturn {
		i.yieldOnReturn = false
		if mayYield && i.yieldHook != nil {
			i.yieldHook()
		}
	}
}

// Idle adelanta el reloj hasta la próxima interrupción programada y la atiende.
// Retorna false si no hay nada programado.
func (i *Interrupt) Idle() bool {
	Assert(i.Disabled(), "Idle requiere interrupciones deshabilitadas")
	i.m.checkHalted()

	if len(i.pending) == 0 {
		return false
	}

	i.m.stats.idleUntil(i.pending[0].time)
	// No hay hilo corriendo al que ceder la CPU.
	i.checkIfDue(false)
	return true
}
