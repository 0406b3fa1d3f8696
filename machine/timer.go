package machine

// Timer genera una interrupción periódica cada TimerTicks ticks. Con RandomizeTimer
// el período varía hasta un 10% en cada disparo, usando el generador sembrado de la máquina.
type Timer struct {
	m       *Machine
	handler func()
}

func newTimer(m *Machine) *Timer {
	return &Timer{m: m}
}

// SetInterruptHandler registra la función a ejecutar en cada interrupción del timer.
// Corre con interrupciones deshabilitadas.
func (t *Timer) SetInterruptHandler(handler func()) {
	t.handler = handler
}

// Time retorna el valor actual del reloj simulado.
func (t *Timer) Time() uint64 {
	return t.m.stats.TotalTicks()
}

func (t *Timer) start() {
	t.scheduleInterrupt()
}

func (t *Timer) timerDone() {
	t.scheduleInterrupt()
	if t.handler != nil {
		t.handler()
	}
}

func (t *Timer) scheduleInterrupt() {
	delay := t.m.config.TimerTicks
	if t.m.config.RandomizeTimer {
		spread := delay / 10
		if spread > 0 {
			delay += t.m.rng.IntN(2*spread+1) - spread
		}
	}
	t.m.interrupt.Schedule(uint64(delay), "timer", t.timerDone)
}
