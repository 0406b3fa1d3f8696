package userprog

import (
	"log/slog"

	"github.com/sisoputnfrba/tp-2025-2c-nachos/kernel/threads"
	"github.com/sisoputnfrba/tp-2025-2c-nachos/machine"
)

type fileReference struct {
	references int
	delete     bool
}

// FileReferences cuenta cuántos descriptores abiertos tiene cada archivo entre todos los
// procesos. Un unlink sobre un archivo abierto se difiere hasta el último close.
type FileReferences struct {
	lock *threads.Lock
	m    *machine.Machine
	refs map[string]*fileReference
}

func NewFileReferences(k *threads.Kernel) *FileReferences {
	return &FileReferences{
		lock: threads.NewLock(k),
		m:    k.Machine(),
		refs: make(map[string]*fileReference),
	}
}

// Reference suma una referencia a name. Falla si name espera ser borrado.
func (f *FileReferences) Reference(name string) bool {
	ref := f.update(name)
	ok := !ref.delete
	if ok {
		ref.references++
	}
	f.lock.Release()
	return ok
}

// Unreference resta una referencia y, si era la última y había un unlink pendiente,
// borra el archivo. Retorna 0, o -1 si el borrado falló.
func (f *FileReferences) Unreference(name string) int {
	ref := f.update(name)
	ref.references--
	machine.Assert(ref.references >= 0, "referencias negativas para %s", name)
	result := f.removeIfNecessary(name, ref)
	f.lock.Release()
	return result
}

// Delete marca name para borrar y lo borra ya si nadie lo tiene abierto.
func (f *FileReferences) Delete(name string) int {
	ref := f.update(name)
	ref.delete = true
	result := f.removeIfNecessary(name, ref)
	f.lock.Release()
	return result
}

// Lookup retorna las referencias abiertas de name y si espera ser borrado.
func (f *FileReferences) Lookup(name string) (int, bool, bool) {
	f.lock.Acquire()
	ref, ok := f.refs[name]
	var references int
	var pending bool
	if ok {
		references, pending = ref.references, ref.delete
	}
	f.lock.Release()
	return references, pending, ok
}

// update toma el lock y retorna la entrada de name, creándola si no existe.
// Quien llama debe liberar el lock.
func (f *FileReferences) update(name string) *fileReference {
	f.lock.Acquire()
	ref, ok := f.refs[name]
	if !ok {
		ref = &fileReference{}
		f.refs[name] = ref
	}
	return ref
}

func (f *FileReferences) removeIfNecessary(name string, ref *fileReference) int {
	if ref.references > 0 {
		return 0
	}

	delete(f.refs, name)
	if !ref.delete {
		return 0
	}

	fs := f.m.FileSystem()
	if fs == nil {
		return -1
	}
	if err := fs.Remove(name); err != nil {
		slog.Debug("No se pudo borrar el archivo", "archivo", name, "error", err)
		return -1
	}
	slog.Debug("Archivo borrado", "archivo", name)
	return 0
}
