package game

import "math"

// ApplyEffects applies effects to vars in order. Each effect sees the writes
// of the ones before it. vars must be session-owned; authored defaults are
// never passed here. Results saturate at ±math.MaxFloat64 so a session
// always stays serializable.
func ApplyEffects(effects []Effect, vars Variables) {
	for _, ef := range effects {
		cur := vars.Get(ef.VariableID)
		nv := cur
		switch ef.Operation {
		case OpAdd:
			nv = cur + ef.Value
		case OpSubtract:
			nv = cur - ef.Value
		case OpSet:
			nv = ef.Value
		}
		vars[ef.VariableID] = finite(nv, cur)
	}
}

// finite clamps infinities to the largest float and replaces NaN with the
// previous value.
func finite(v, prev float64) float64 {
	switch {
	case math.IsNaN(v):
		return prev
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	return v
}
