package dice

// Source yields die faces. *rand.Rand satisfies it.
type Source interface {
	Intn(n int) int
}

func rollSpec(rng Source, spec Spec) (Roll, error) {
	if spec.Sides <= 0 || spec.Count <= 0 {
		return Roll{}, ErrInvalidDiceSpec
	}
	results := make([]int, spec.Count)
	total := 0
	for i := range results {
		value := rollDie(rng, spec.Sides)
		results[i] = value
		total += value
	}
	return Roll{Sides: spec.Sides, Results: results, Total: total}, nil
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng Source, sides int) int {
	return rng.Intn(sides) + 1
}
