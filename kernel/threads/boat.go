package threads

import (
	"fmt"
	"log/slog"
)

// BoatGrader registra cada cruce del bote.
type BoatGrader interface {
	ChildRowToMolokai()
	ChildRowToOahu()
	ChildRideToMolokai()
	ChildRideToOahu()
	AdultRowToMolokai()
	AdultRowToOahu()
	AdultRideToMolokai()
	AdultRideToOahu()
}

// LogGrader es un BoatGrader que solo loguea los cruces.
type LogGrader struct{}

func (LogGrader) ChildRowToMolokai()  { slog.Info("** Un niño rema hacia Molokai") }
func (LogGrader) ChildRowToOahu()     { slog.Info("** Un niño rema hacia Oahu") }
func (LogGrader) ChildRideToMolokai() { slog.Info("** Un niño viaja como pasajero hacia Molokai") }
func (LogGrader) ChildRideToOahu()    { slog.Info("** Un niño viaja como pasajero hacia Oahu") }
func (LogGrader) AdultRowToMolokai()  { slog.Info("** Un adulto rema hacia Molokai") }
func (LogGrader) AdultRowToOahu()     { slog.Info("** Un adulto rema hacia Oahu") }
func (LogGrader) AdultRideToMolokai() { slog.Info("** Un adulto viaja como pasajero hacia Molokai") }
func (LogGrader) AdultRideToOahu()    { slog.Info("** Un adulto viaja como pasajero hacia Oahu") }

type location int

const (
	oahu location = iota
	molokai
)

// Boat resuelve el cruce de adultos y niños de Oahu a Molokai. Cada persona es un hilo
// que decide con lo que ve en su orilla y con lo último que informó quien cruzó.
// Todos comparten un lock y una condición: el que no puede avanzar despierta a otro y duerme.
type Boat struct {
	k         *Kernel
	grader    BoatGrader
	lock      *Lock
	condition *Condition

	childrenOnOahu    int
	childrenOnMolokai int
	adultsOnOahu      int
	childrenOnBoat    int

	lastReportedChildrenOnOahu    int
	lastReportedChildrenOnMolokai int
	lastReportedAdultsOnOahu      int

	boatLocation location
	finished     bool
	start        bool
}

func NewBoat(k *Kernel) *Boat {
	lock := NewLock(k)
	return &Boat{
		k:            k,
		lock:         lock,
		condition:    NewCondition(lock),
		boatLocation: oahu,
	}
}

// Begin lanza un hilo por persona y retorna cuando todos llegaron a Molokai.
// Con adultos hacen falta al menos dos niños, si no nadie puede devolver el bote.
func (b *Boat) Begin(adults, children int, grader BoatGrader) error {
	if adults < 0 || children < 0 {
		return fmt.Errorf("cantidades inválidas: %d adultos, %d niños", adults, children)
	}
	if adults > 0 && children < 2 {
		return fmt.Errorf("con %d adultos hacen falta al menos 2 niños, hay %d", adults, children)
	}
	if adults+children == 0 {
		return nil
	}
	b.grader = grader

	slog.Info(fmt.Sprintf("## Bote: %d adultos y %d niños en Oahu", adults, children))

	var people []*KThread
	b.lock.Acquire()

	for x := 0; x < adults; x++ {
		t := b.k.NewThread(fmt.Sprintf("Adult Boat Thread %d", x+1), b.adultItinerary)
		people = append(people, t)
		t.Fork()
		b.condition.Wake()
		b.condition.Sleep()
	}

	for x := 0; x < children; x++ {
		t := b.k.NewThread(fmt.Sprintf("Child Boat Thread %d", x+1), b.childItinerary)
		people = append(people, t)
		t.Fork()
		b.condition.Wake()
		b.condition.Sleep()
	}

	b.start = true
	for !b.finished {
		b.condition.Wake()
		b.condition.Sleep()
	}
	b.condition.WakeAll()
	b.lock.Release()

	for _, t := range people {
		t.Join()
	}

	slog.Info("## Bote: todos llegaron a Molokai")
	return nil
}

// passBaton despierta a otro y duerme hasta que alguien lo despierte.
func (b *Boat) passBaton() {
	b.condition.Wake()
	b.condition.Sleep()
}

// checkFinished declara el fin si el último cruce informó Oahu vacía.
func (b *Boat) checkFinished(currentLocation location) {
	if currentLocation == molokai && b.lastReportedAdultsOnOahu == 0 && b.lastReportedChildrenOnOahu == 0 && b.boatLocation == molokai {
		b.finished = true
		b.condition.WakeAll()
		return
	}
	b.passBaton()
}

func (b *Boat) adultItinerary() {
	b.lock.Acquire()

	currentLocation := oahu
	b.adultsOnOahu++

	for !b.start {
		b.passBaton()
	}

	for !b.finished {
		if currentLocation == oahu && b.boatLocation == oahu && b.lastReportedChildrenOnMolokai > 0 && b.childrenOnBoat == 0 {
			b.adultsOnOahu--

			childrenSeen := b.childrenOnOahu

			b.grader.AdultRowToMolokai()
			b.boatLocation = molokai
			currentLocation = molokai

			b.lastReportedChildrenOnOahu = childrenSeen

			b.passBaton()
		} else {
			b.checkFinished(currentLocation)
		}
	}

	b.lock.Release()
}

func (b *Boat) childItinerary() {
	b.lock.Acquire()

	currentLocation := oahu
	b.childrenOnOahu++

	for !b.start {
		b.passBaton()
	}

	for !b.finished {
		switch {
		case currentLocation == oahu && b.boatLocation == oahu && (b.childrenOnOahu > 1 || b.childrenOnBoat == 1):
			if b.childrenOnBoat == 0 {
				// Piloto: sube y espera al pasajero.
				b.childrenOnOahu--
				b.childrenOnBoat++

				for b.boatLocation == oahu {
					b.passBaton()
				}

				b.grader.ChildRowToMolokai()
				currentLocation = molokai

				b.childrenOnBoat--
				b.childrenOnMolokai++
			} else if b.childrenOnBoat == 1 {
				// Pasajero: con él a bordo el bote sale.
				b.childrenOnOahu--
				b.childrenOnBoat++

				adultsSeen := b.adultsOnOahu
				childrenSeen := b.childrenOnOahu

				b.grader.ChildRideToMolokai()
				b.boatLocation = molokai
				currentLocation = molokai

				b.childrenOnBoat--
				b.childrenOnMolokai++

				b.lastReportedChildrenOnOahu = childrenSeen
				b.lastReportedAdultsOnOahu = adultsSeen
			}

		case currentLocation == molokai && b.boatLocation == molokai && (b.lastReportedChildrenOnOahu > 0 || b.lastReportedAdultsOnOahu > 0) && b.childrenOnBoat == 0:
			b.childrenOnMolokai--
			b.childrenOnBoat++

			childrenSeen := b.childrenOnMolokai

			b.grader.ChildRowToOahu()
			b.boatLocation = oahu
			currentLocation = oahu

			b.childrenOnBoat--
			b.childrenOnOahu++

			b.lastReportedChildrenOnMolokai = childrenSeen

			b.passBaton()

		case currentLocation == oahu && b.boatLocation == oahu && b.adultsOnOahu == 0 && b.childrenOnOahu == 1 && b.childrenOnBoat == 0:
			b.childrenOnOahu--
			b.childrenOnBoat++

			adultsSeen := b.adultsOnOahu
			childrenSeen := b.childrenOnOahu

			b.grader.ChildRowToMolokai()
			b.boatLocation = molokai
			currentLocation = molokai

			b.childrenOnBoat--
			b.childrenOnMolokai++

			b.lastReportedChildrenOnOahu = childrenSeen
			b.lastReportedAdultsOnOahu = adultsSeen

			b.passBaton()

		default:
			b.checkFinished(currentLocation)
		}
	}

	b.lock.Release()
}
