package userprog

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Workiva/go-datastructures/bitarray"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/threads"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

var ErrInadequatePages = errors.New("no hay suficientes páginas físicas libres")

// PageAllocator reparte los marcos de la memoria física entre los procesos.
// Un bit en uno es un marco ocupado.
type PageAllocator struct {
	lock  *threads.Lock
	used  bitarray.BitArray
	total int
	free  int
}

func NewPageAllocator(k *threads.Kernel, numPhysPages int) *PageAllocator {
	return &PageAllocator{
		lock:  threads.NewLock(k),
		used:  bitarray.NewBitArray(uint64(numPhysPages)),
		total: numPhysPages,
		free:  numPhysPages,
	}
}

// Acquire reserva n marcos y retorna una tabla de páginas con vpn 0..n-1 ya válida.
// Si no alcanzan no reserva ninguno.
func (a *PageAllocator) Acquire(n int) ([]machine.TranslationEntry, error) {
	a.lock.Acquire()

	if n > a.free {
		free := a.free
		a.lock.Release()
		return nil, fmt.Errorf("%w: se pidieron %d y hay %d", ErrInadequatePages, n, free)
	}

	pageTable := make([]machine.TranslationEntry, 0, n)
	for ppn := 0; ppn < a.total && len(pageTable) < n; ppn++ {
		inUse, err := a.used.GetBit(uint64(ppn))
		machine.Assert(err == nil, "bitmap de marcos: %v", err)
		if inUse {
			continue
		}
		machine.Assert(a.used.SetBit(uint64(ppn)) == nil, "no se pudo marcar el marco %d", ppn)
		pageTable = append(pageTable, machine.TranslationEntry{
			VPN:   len(pageTable),
			PPN:   ppn,
			Valid: true,
		})
	}
	a.free -= n
	machine.Assert(len(pageTable) == n, "el bitmap no coincide con la cuenta de marcos libres")

	slog.Debug("Marcos asignados", "cantidad", n, "libres", a.free)
	a.lock.Release()
	return pageTable, nil
}

// Release devuelve los marcos de pageTable.
func (a *PageAllocator) Release(pageTable []machine.TranslationEntry) {
	a.lock.Acquire()

	for _, entry := range pageTable {
		inUse, err := a.used.GetBit(uint64(entry.PPN))
		machine.Assert(err == nil && inUse, "se libera el marco %d que no estaba asignado", entry.PPN)
		machine.Assert(a.used.ClearBit(uint64(entry.PPN)) == nil, "no se pudo liberar el marco %d", entry.PPN)
		a.free++
	}

	slog.Debug("Marcos liberados", "cantidad", len(pageTable), "libres", a.free)
	a.lock.Release()
}

// Free retorna la cantidad de marcos libres.
func (a *PageAllocator) Free() int {
	return a.free
}
