package machine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Formato NOFF de ejecutables (little endian):
//
//	magic u32 | entry i32 | secciones i32
//	por sección: largo del nombre u16 | nombre | primer vpn i32 | páginas i32 | solo lectura u8 | largo de datos i32 | datos
const (
	noffMagic = 0x00badfad

	nativeStubMagic     = 0x4e415456
	maxNativeNameLength = 64
	maxSections         = 64
	maxSectionPages     = 1 << 12
	maxSectionData      = 1 << 20
)

var ErrBadExecutable = errors.New("ejecutable inválido")

// Section es un rango contiguo de páginas virtuales del ejecutable.
type Section struct {
	Name     string
	FirstVPN int
	Length   int
	ReadOnly bool
	data     []byte
}

// LoadPage copia la página spn de la sección sobre page. Lo que excede los datos queda en cero.
func (s *Section) LoadPage(spn int, page []byte) {
	Assert(spn >= 0 && spn < s.Length, "página %d fuera de la sección %s", spn, s.Name)

	start := spn * len(page)
	n := 0
	if start < len(s.data) {
		n = copy(page, s.data[start:])
	}
	clear(page[n:])
}

// Executable es un programa cargable: secciones ordenadas y punto de entrada.
type Executable struct {
	Entry    int
	Sections []*Section
}

// NewSection arma una sección con sus datos iniciales.
func NewSection(name string, firstVPN, length int, readOnly bool, data []byte) *Section {
	return &Section{Name: name, FirstVPN: firstVPN, Length: length, ReadOnly: readOnly, data: data}
}

// NewNativeExecutable arma el ejecutable de un programa nativo: una página de texto de
// solo lectura con el stub que invoca al programa y una página de datos.
func NewNativeExecutable(program string, pageSize int) *Executable {
	stub := make([]byte, 8+len(program))
	binary.LittleEndian.PutUint32(stub[0:], nativeStubMagic)
	binary.LittleEndian.PutUint32(stub[4:], uint32(len(program)))
	copy(stub[8:], program)

	textPages := (len(stub) + pageSize - 1) / pageSize
	return &Executable{
		Entry: 0,
		Sections: []*Section{
			NewSection(".text", 0, textPages, true, stub),
			NewSection(".data", textPages, 1, false, nil),
		},
	}
}

// ParseExecutable lee un ejecutable NOFF.
func ParseExecutable(r io.Reader) (*Executable, error) {
	var header struct {
		Magic       uint32
		Entry       int32
		NumSections int32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: encabezado: %v", ErrBadExecutable, err)
	}
	if header.Magic != noffMagic {
		return nil, fmt.Errorf("%w: magic %#x", ErrBadExecutable, header.Magic)
	}
	if header.NumSections < 0 || header.NumSections > maxSections {
		return nil, fmt.Errorf("%w: %d secciones", ErrBadExecutable, header.NumSections)
	}

	exe := &Executable{Entry: int(header.Entry)}
	for i := 0; i < int(header.NumSections); i++ {
		section, err := parseSection(r)
		if err != nil {
			return nil, fmt.Errorf("%w: sección %d: %v", ErrBadExecutable, i, err)
		}
		exe.Sections = append(exe.Sections, section)
	}
	return exe, nil
}

func parseSection(r io.Reader) (*Section, error) {
	var nameLength uint16
	if err := binary.Read(r, binary.LittleEndian, &nameLength); err != nil {
		return nil, err
	}
	name := make([]byte, nameLength)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, err
	}

	var fields struct {
		FirstVPN   int32
		Length     int32
		ReadOnly   uint8
		DataLength int32
	}
	if err := binary.Read(r, binary.LittleEndian, &fields); err != nil {
		return nil, err
	}
	if fields.FirstVPN < 0 || fields.Length < 0 || fields.DataLength < 0 {
		return nil, errors.New("campos negativos")
	}
	if fields.Length > maxSectionPages || fields.DataLength > maxSectionData {
		return nil, fmt.Errorf("sección %q demasiado grande: %d páginas, %d bytes", name, fields.Length, fields.DataLength)
	}

	data := make([]byte, fields.DataLength)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}

	return NewSection(string(name), int(fields.FirstVPN), int(fields.Length), fields.ReadOnly != 0, data), nil
}

// MarshalBinary serializa el ejecutable en formato NOFF.
func (e *Executable) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	w := func(v any) {
		_ = binary.Write(&buf, binary.LittleEndian, v)
	}

	w(uint32(noffMagic))
	w(int32(e.Entry))
	w(int32(len(e.Sections)))
	for _, s := range e.Sections {
		if len(s.Name) > 0xffff {
			return nil, fmt.Errorf("%w: nombre de sección demasiado largo", ErrBadExecutable)
		}
		w(uint16(len(s.Name)))
		buf.WriteString(s.Name)
		w(int32(s.FirstVPN))
		w(int32(s.Length))
		var readOnly uint8
		if s.ReadOnly {
			readOnly = 1
		}
		w(readOnly)
		w(int32(len(s.data)))
		buf.Write(s.data)
	}
	return buf.Bytes(), nil
}
