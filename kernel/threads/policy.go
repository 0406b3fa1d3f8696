package threads

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Limits son los valores válidos de prioridad de una política.
type Limits struct {
	Min     int
	Max     int
	Default int
}

// Policy es la estrategia de selección del planificador.
type Policy interface {
	Name() string
	Limits() Limits
	// Combine suma a la prioridad efectiva acumulada lo que dona un hilo en espera.
	Combine(effective, donation int) int
	// Pick elige al ganador entre candidates (en orden de llegada). total es la suma
	// cacheada de sus prioridades efectivas.
	Pick(candidates []*threadState, total int) *threadState
}

const (
	PolicyLottery    = "lottery"
	PolicyPriority   = "priority"
	PolicyRoundRobin = "roundrobin"
)

// NewPolicy arma la política por nombre. rng solo lo usa lottery.
func NewPolicy(name string, rng *rand.Rand) (Policy, error) {
	switch name {
	case PolicyLottery, "":
		return &LotteryPolicy{rng: rng}, nil
	case PolicyPriority:
		return PriorityPolicy{}, nil
	case PolicyRoundRobin:
		return RoundRobinPolicy{}, nil
	default:
		return nil, fmt.Errorf("política de planificación desconocida: %s", name)
	}
}

// LotteryPolicy reparte la CPU por sorteo: cada hilo gana con probabilidad proporcional
// a sus tickets efectivos, que incluyen la suma de lo donado.
type LotteryPolicy struct {
	rng *rand.Rand
}

func (p *LotteryPolicy) Name() string { return PolicyLottery }

func (p *LotteryPolicy) Limits() Limits {
	return Limits{Min: 1, Max: math.MaxInt32, Default: 1}
}

func (p *LotteryPolicy) Combine(effective, donation int) int {
	if effective > math.MaxInt-donation {
		return math.MaxInt
	}
	return effective + donation
}

func (p *LotteryPolicy) Pick(candidates []*threadState, total int) *threadState {
	if total <= 0 {
		return candidates[0]
	}

	ticket := p.rng.IntN(total) + 1
	for _, ts := range candidates {
		ticket -= ts.effective
		if ticket <= 0 {
			return ts
		}
	}
	return candidates[len(candidates)-1]
}

// PriorityPolicy corre siempre al de mayor prioridad efectiva; a igual prioridad, al
// que llegó primero. La donación hereda el máximo.
type PriorityPolicy struct{}

func (PriorityPolicy) Name() string { return PolicyPriority }

func (PriorityPolicy) Limits() Limits {
	return Limits{Min: 0, Max: 7, Default: 1}
}

func (PriorityPolicy) Combine(effective, donation int) int {
	return max(effective, donation)
}

func (PriorityPolicy) Pick(candidates []*threadState, _ int) *threadState {
	best := candidates[0]
	for _, ts := range candidates[1:] {
		if ts.effective > best.effective {
			best = ts
		}
	}
	return best
}

// RoundRobinPolicy atiende en orden de llegada y no usa prioridades.
type RoundRobinPolicy struct{}

func (RoundRobinPolicy) Name() string { return PolicyRoundRobin }

func (RoundRobinPolicy) Limits() Limits {
	return Limits{Min: 1, Max: 1, Default: 1}
}

func (RoundRobinPolicy) Combine(effective, _ int) int {
	return effective
}

func (RoundRobinPolicy) Pick(candidates []*threadState, _ int) *threadState {
	return candidates[0]
}
