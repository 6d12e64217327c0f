package recall

// Source supplies uniform draws in [0, 1). *rand.Rand from math/rand and
// math/rand/v2 both satisfy it.
type Source interface {
	Float64() float64
}

// Choose returns the smallest outcome k whose cumulative probability
// exceeds r. It returns Stop when no item outcome has positive probability
// or when rounding leaves r above the final cumulative sum.
func Choose(p []float64, r float64) int {
	anyItem := false
	for _, v := range p[1:] {
		if v > 0 {
			anyItem = true
			break
		}
	}
	if !anyItem {
		return Stop
	}

	var cum float64
	for k, v := range p {
		cum += v
		if cum > r {
			return k
		}
	}
	return Stop
}

// Sampler draws categorical outcomes from an explicit source.
type Sampler struct {
	src Source
}

// NewSampler creates a sampler drawing from src.
func NewSampler(src Source) *Sampler {
	return &Sampler{src: src}
}

// Sample draws one outcome from p. Exactly one value is taken from the
// source per call, whether or not an item can be chosen, so identically
// seeded sources stay in lockstep.
func (s *Sampler) Sample(p []float64) int {
	return Choose(p, s.src.Float64())
}
