package machine

import (
	"testing"
)

func newTestProcessor(t *testing.T) (*Machine, *Processor) {
	t.Helper()

	config := DefaultConfig()
	config.PageSize = 64
	config.NumPhysPages = 4
	m := New(config, nil, nil)

	p := m.Processor()
	p.SetPageTable([]TranslationEntry{
		{VPN: 0, PPN: 2, Valid: true},
		{VPN: 1, PPN: 0, Valid: true, ReadOnly: true},
		{VPN: 2, PPN: 1, Valid: false},
		{VPN: 3, PPN: 9, Valid: true},
	})
	return m, p
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name    string
		vaddr   int
		size    int
		writing bool
		paddr   int
		cause   int
		ok      bool
	}{
		{name: "pagina valida", vaddr: 8, size: 4, paddr: 2*64 + 8, ok: true},
		{name: "solo lectura para leer", vaddr: 64 + 4, size: 4, paddr: 4, ok: true},
		{name: "solo lectura para escribir", vaddr: 64 + 4, size: 4, writing: true, cause: ExceptionReadOnly},
		{name: "no alineada", vaddr: 2, size: 4, cause: ExceptionAddressError},
		{name: "negativa", vaddr: -4, size: 4, cause: ExceptionAddressError},
		{name: "fuera de la tabla", vaddr: 4 * 64, size: 1, cause: ExceptionAddressError},
		{name: "pagina invalida", vaddr: 2 * 64, size: 1, cause: ExceptionPageFault},
		{name: "marco inexistente", vaddr: 3 * 64, size: 1, cause: ExceptionBusError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, p := newTestProcessor(t)

			paddr, cause, ok := p.translate(tt.vaddr, tt.size, tt.writing)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v (cause %s)", tt.ok, ok, ExceptionName(cause))
			}
			if ok && paddr != tt.paddr {
				t.Errorf("Expected paddr %d, got %d", tt.paddr, paddr)
			}
			if !ok && cause != tt.cause {
				t.Errorf("Expected %s, got %s", ExceptionName(tt.cause), ExceptionName(cause))
			}
		})
	}
}

func TestTranslate_SetsUsedAndDirty(t *testing.T) {
	m, p := newTestProcessor(t)

	p.translate(0, 4, false)
	if !p.PageTable()[0].Used || p.PageTable()[0].Dirty {
		t.Errorf("Expected used and clean after a read, got %+v", p.PageTable()[0])
	}

	p.translate(0, 4, true)
	if !p.PageTable()[0].Dirty {
		t.Errorf("Expected dirty after a write, got %+v", p.PageTable()[0])
	}

	p.translate(2*64, 4, false)
	if m.Stats().Snapshot().PageFaults != 1 {
		t.Errorf("Expected one page fault, got %d", m.Stats().Snapshot().PageFaults)
	}
}

func TestReadWriteMemory(t *testing.T) {
	_, p := newTestProcessor(t)

	p.writeMem(12, 4, -2)
	p.writeMem(16, 2, 0xbeef)
	p.writeMem(18, 1, 0x7f)

	if got := p.readMem(12, 4); got != -2 {
		t.Errorf("Expected -2, got %d", got)
	}
	if got := p.readMem(16, 2); got != 0xbeef {
		t.Errorf("Expected 0xbeef, got %#x", got)
	}
	if got := p.readMem(18, 1); got != 0x7f {
		t.Errorf("Expected 0x7f, got %#x", got)
	}

	// little endian sobre el marco 2
	if got := p.Memory()[2*64+12]; got != 0xfe {
		t.Errorf("Expected low byte 0xfe in physical memory, got %#x", got)
	}
}

func TestRaise_CallsHandlerWithCause(t *testing.T) {
	_, p := newTestProcessor(t)

	var cause, badVAddr int
	p.SetExceptionHandler(func() {
		cause = p.ReadRegister(RegCause)
		badVAddr = p.ReadRegister(RegBadVAddr)
	})

	p.raise(ExceptionSyscall, 40)
	if cause != ExceptionSyscall || badVAddr != 40 {
		t.Errorf("Expected syscall at 40, got %s at %d", ExceptionName(cause), badVAddr)
	}
}

func TestRegisters(t *testing.T) {
	_, p := newTestProcessor(t)

	p.WriteRegister(0, 99)
	if p.ReadRegister(0) != 0 {
		t.Errorf("Expected register 0 to stay zero, got %d", p.ReadRegister(0))
	}

	p.WriteRegister(RegPC, 100)
	p.WriteRegister(RegNextPC, 104)
	p.AdvancePC()
	if p.ReadRegister(RegPC) != 104 || p.ReadRegister(RegNextPC) != 108 {
		t.Errorf("Expected PC 104 and NextPC 108, got %d and %d", p.ReadRegister(RegPC), p.ReadRegister(RegNextPC))
	}

	var saved [NumUserRegisters]int
	p.SaveRegisters(&saved)
	p.WriteRegister(RegSP, 1)
	p.RestoreRegisters(&saved)
	if p.ReadRegister(RegSP) != 0 {
		t.Errorf("Expected SP restored to 0, got %d", p.ReadRegister(RegSP))
	}
}

func TestAddressHelpers(t *testing.T) {
	_, p := newTestProcessor(t)

	if p.PageFromAddress(130) != 2 || p.OffsetFromAddress(130) != 2 {
		t.Errorf("Expected page 2 offset 2, got %d and %d", p.PageFromAddress(130), p.OffsetFromAddress(130))
	}
	if p.MakeAddress(3, 5) != 197 {
		t.Errorf("Expected 197, got %d", p.MakeAddress(3, 5))
	}
}
