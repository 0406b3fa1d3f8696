package userprog

type accessType int

const (
	accessRead accessType = iota
	accessWrite
)

// memoryAccess es el tramo de una lectura o escritura que cae dentro de una sola página.
type memoryAccess struct {
	kind   accessType
	data   []byte
	vpn    int
	offset int
}

func (p *UserProcess) validAddress(vaddr int) bool {
	if vaddr < 0 {
		return false
	}
	vpn := vaddr / p.uk.Machine().PageSize()
	return vpn < p.numPages
}

// ReadVirtualMemory copia a data desde vaddr. Retorna los bytes copiados, que son
// menos que len(data) si se llega a una página inválida. Nunca levanta excepciones.
func (p *UserProcess) ReadVirtualMemory(vaddr int, data []byte) int {
	return p.accessVirtualMemory(vaddr, data, accessRead)
}

// WriteVirtualMemory copia data a partir de vaddr. Igual que la lectura, corta en la
// primera página inválida o de solo lectura.
func (p *UserProcess) WriteVirtualMemory(vaddr int, data []byte) int {
	return p.accessVirtualMemory(vaddr, data, accessWrite)
}

// ReadVirtualMemoryString lee un string terminado en NUL de a lo sumo maxLength bytes
// (sin contar el NUL). Retorna false si no encontró el terminador.
func (p *UserProcess) ReadVirtualMemoryString(vaddr, maxLength int) (string, bool) {
	bytes := make([]byte, maxLength+1)
	n := p.ReadVirtualMemory(vaddr, bytes)

	for length := 0; length < n; length++ {
		if bytes[length] == 0 {
			return string(bytes[:length]), true
		}
	}
	return "", false
}

func (p *UserProcess) accessVirtualMemory(vaddr int, data []byte, kind accessType) int {
	if !p.validAddress(vaddr) {
		return 0
	}

	accesses := p.memoryAccesses(vaddr, data, kind)

	transferred := 0
	p.memoryLock.Acquire()
	for _, ma := range accesses {
		n := p.executeAccess(ma)
		if n == 0 {
			break
		}
		transferred += n
	}
	p.memoryLock.Release()

	return transferred
}

// memoryAccesses parte el rango en un tramo por página.
func (p *UserProcess) memoryAccesses(vaddr int, data []byte, kind accessType) []memoryAccess {
	pageSize := p.uk.Machine().PageSize()

	var accesses []memoryAccess
	for len(data) > 0 {
		offset := vaddr % pageSize
		size := min(len(data), pageSize-offset)

		accesses = append(accesses, memoryAccess{
			kind:   kind,
			data:   data[:size],
			vpn:    vaddr / pageSize,
			offset: offset,
		})
		data = data[size:]
		vaddr += size
	}
	return accesses
}

func (p *UserProcess) executeAccess(ma memoryAccess) int {
	if ma.vpn >= len(p.pageTable) {
		return 0
	}

	entry := &p.pageTable[ma.vpn]
	if !entry.Valid {
		return 0
	}

	pageSize := p.uk.Machine().PageSize()
	memory := p.uk.Machine().Processor().Memory()
	start := entry.PPN*pageSize + ma.offset
	frame := memory[start : start+len(ma.data)]

	switch ma.kind {
	case accessRead:
		copy(ma.data, frame)
		entry.Used = true
	case accessWrite:
		if entry.ReadOnly {
			return 0
		}
		copy(frame, ma.data)
		entry.Used = true
		entry.Dirty = true
	}
	return len(ma.data)
}
