package list

import "sync"

// List es una secuencia ordenada por orden de llegada. Las colas del planificador
// se apoyan en ella para recorrer a los hilos en espera siempre en el mismo orden.
type List[T any] interface {
	Add(item T)                          // Añade un elemento al final
	ForEach(callback func(T))            // Aplica callback a cada elemento, en orden
	GetAll() []T                         // Copia de todos los elementos
	RemoveWhere(match func(T) bool) bool // Elimina el primer elemento que cumpla el predicado
	Size() int                           // Cantidad de elementos
}

// ArrayList implementa List sobre un slice protegido por un RWMutex.
// El valor cero es una lista vacía lista para usar.
type ArrayList[T any] struct {
	mu    sync.RWMutex
	items []T
}

// Add inserta un elemento al final de la lista.
//
// Ejemplo:
//
//	func main() {
//		waiting := &list.ArrayList[int]{}
//		waiting.Add(3)
//		waiting.Add(7)
//	}
func (list *ArrayList[T]) Add(item T) {
	list.mu.Lock()
	defer list.mu.Unlock()

	list.items = append(list.items, item)
}

// ForEach aplica callback a cada elemento en orden de llegada. callback no debe
// modificar la lista.
//
// Ejemplo:
//
//	func main() {
//		total := 0
//		tickets.ForEach(func(n int) {
//			total += n
//		})
//	}
func (list *ArrayList[T]) ForEach(callback func(T)) {
	list.mu.RLock()
	defer list.mu.RUnlock()

	for _, item := range list.items {
		callback(item)
	}
}

// GetAll retorna una copia de los elementos.
func (list *ArrayList[T]) GetAll() []T {
	list.mu.RLock()
	defer list.mu.RUnlock()

	itemsCopy := make([]T, len(list.items))
	copy(itemsCopy, list.items)
	return itemsCopy
}

// RemoveWhere elimina el primer elemento que cumpla match conservando el orden del resto.
// Retorna si eliminó algo.
func (list *ArrayList[T]) RemoveWhere(match func(T) bool) bool {
	list.mu.Lock()
	defer list.mu.Unlock()

	for i, item := range list.items {
		if match(item) {
			list.items = append(list.items[:i], list.items[i+1:]...)
			return true
		}
	}
	return false
}

// Size devuelve la cantidad de elementos.
func (list *ArrayList[T]) Size() int {
	list.mu.RLock()
	defer list.mu.RUnlock()

	return len(list.items)
}
