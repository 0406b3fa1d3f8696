package machine

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// Config agrupa los parámetros del hardware simulado.
type Config struct {
	PageSize       int    `json:"page_size"`
	NumPhysPages   int    `json:"num_phys_pages"`
	TimerTicks     int    `json:"timer_ticks"`
	RandomSeed     uint64 `json:"random_seed"`
	RandomizeTimer bool   `json:"randomize_timer"`
}

const (
	DefaultPageSize     = 0x400
	DefaultNumPhysPages = 64
	DefaultTimerTicks   = 500
)

// DefaultConfig retorna la configuración con la que arranca Nachos si no se indica otra.
func DefaultConfig() Config {
	return Config{
		PageSize:     DefaultPageSize,
		NumPhysPages: DefaultNumPhysPages,
		TimerTicks:   DefaultTimerTicks,
	}
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.NumPhysPages <= 0 {
		c.NumPhysPages = DefaultNumPhysPages
	}
	if c.TimerTicks <= 0 {
		c.TimerTicks = DefaultTimerTicks
	}
	return c
}

// Machine es el hardware simulado: reloj, interrupciones, procesador, consola y disco.
// Solo el hilo simulado que tiene la CPU puede tocar su estado, salvo Stats, Halted y Err.
type Machine struct {
	config    Config
	interrupt *Interrupt
	timer     *Timer
	processor *Processor
	stats     *Stats
	console   *Console
	fs        FileSystem
	programs  *ProgramTable
	rng       *rand.Rand

	haltOnce sync.Once
	halted   chan struct{}
	stopped  atomic.Bool
	mx       sync.Mutex
	err      error
}

// New arma la máquina. fs y console pueden ser nil si el kernel no los usa.
func New(config Config, fs FileSystem, console *Console) *Machine {
	config = config.withDefaults()

	m := &Machine{
		config:   config,
		stats:    &Stats{},
		console:  console,
		fs:       fs,
		programs: NewProgramTable(),
		rng:      rand.New(rand.NewPCG(config.RandomSeed, config.RandomSeed^0x9e3779b97f4a7c15)),
		halted:   make(chan struct{}),
	}
	m.interrupt = newInterrupt(m)
	m.timer = newTimer(m)
	m.processor = newProcessor(m)

	slog.Debug("Máquina inicializada",
		"page_size", config.PageSize,
		"num_phys_pages", config.NumPhysPages,
		"timer_ticks", config.TimerTicks)

	return m
}

func (m *Machine) Config() Config              { return m.config }
func (m *Machine) Interrupt() *Interrupt       { return m.interrupt }
func (m *Machine) Timer() *Timer               { return m.timer }
func (m *Machine) Processor() *Processor       { return m.processor }
func (m *Machine) Stats() *Stats               { return m.stats }
func (m *Machine) Console() *Console           { return m.console }
func (m *Machine) FileSystem() FileSystem      { return m.fs }
func (m *Machine) Programs() *ProgramTable     { return m.programs }
func (m *Machine) Halted() <-chan struct{}     { return m.halted }
func (m *Machine) Rand() *rand.Rand            { return m.rng }
func (m *Machine) IsHalted() bool              { return m.stopped.Load() }
func (m *Machine) PageSize() int               { return m.config.PageSize }
func (m *Machine) NumPhysPages() int           { return m.config.NumPhysPages }
func (m *Machine) SetFileSystem(fs FileSystem) { m.fs = fs }

// Start arranca el timer. Se llama una sola vez, antes de ceder la CPU al primer hilo.
func (m *Machine) Start() {
	m.timer.start()
}

// Err retorna el motivo por el que se detuvo la máquina, o nil si fue un halt normal.
func (m *Machine) Err() error {
	m.mx.Lock()
	defer m.mx.Unlock()
	return m.err
}

// Halt detiene la máquina desde código simulado. No retorna: la goroutine queda estacionada.
func (m *Machine) Halt() {
	m.stop(nil)
	park()
}

// Fail detiene la máquina registrando err como causa. Tampoco retorna.
func (m *Machine) Fail(err error) {
	m.stop(err)
	park()
}

// Shutdown detiene la máquina desde fuera de la simulación (por ejemplo, ante una señal).
// El hilo simulado que tenga la CPU se detiene en el próximo tick.
func (m *Machine) Shutdown() {
	m.stop(nil)
}

func (m *Machine) stop(err error) {
	m.haltOnce.Do(func() {
		m.mx.Lock()
		m.err = err
		m.mx.Unlock()

		if err != nil {
			slog.Error(fmt.Sprintf("## Máquina detenida: %v", err))
		} else {
			slog.Info("## Máquina detenida")
		}
		slog.Info(m.stats.String())

		m.stopped.Store(true)
		close(m.halted)
	})
}

// checkHalted estaciona al hilo simulado actual si alguien detuvo la máquina.
func (m *Machine) checkHalted() {
	if m.stopped.Load() {
		park()
	}
}

// park bloquea la goroutine para siempre sin correr sus defers.
func park() {
	select {}
}

// RecoverPanic convierte un panic de un hilo simulado en un KernelPanic y detiene la máquina.
// Se usa como defer en el punto de entrada de cada hilo.
func (m *Machine) RecoverPanic(thread string) {
	r := recover()
	if r == nil {
		return
	}

	kp := &KernelPanic{Thread: thread, Value: r}
	var ae *AssertionError
	if err, ok := r.(error); ok && errors.As(err, &ae) {
		kp.Assertion = ae
	}
	m.stop(kp)
}
