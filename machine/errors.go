package machine

import (
	"fmt"
	"runtime/debug"
)

// AssertionError es un invariante del kernel que no se cumplió. No tiene recuperación.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return "assertion failed: " + e.Message
}

// KernelPanic es el motivo de detención cuando un hilo simulado entra en pánico.
type KernelPanic struct {
	Thread    string
	Value     any
	Assertion *AssertionError
}

func (p *KernelPanic) Error() string {
	return fmt.Sprintf("kernel panic en el hilo %s: %v", p.Thread, p.Value)
}

func (p *KernelPanic) Unwrap() error {
	if p.Assertion != nil {
		return p.Assertion
	}
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Assert entra en pánico con un AssertionError si cond es falso.
//
// Ejemplo:
//
//	machine.Assert(interrupt.Disabled(), "se esperaban interrupciones deshabilitadas")
func Assert(cond bool, format string, args ...any) {
	if cond {
		return
	}
	msg := fmt.Sprintf(format, args...)
	panic(&AssertionError{Message: msg + "\n" + string(debug.Stack())})
}

// AssertNotReached marca código que nunca debería ejecutarse.
func AssertNotReached(format string, args ...any) {
	Assert(false, format, args...)
}
