package game

// Evaluate tests cond against vars. A nil condition or one without a
// variable is treated as satisfied, which is how choices default to
// visible. Unknown operators also pass.
func Evaluate(cond *Condition, vars Variables) bool {
	if cond == nil || cond.VariableID == "" {
		return true
	}
	cur := vars.Get(cond.VariableID)
	switch cond.Operator {
	case OpGreater:
		return cur > cond.Value
	case OpLess:
		return cur < cond.Value
	case OpGreaterEqual:
		return cur >= cond.Value
	case OpLessEqual:
		return cur <= cond.Value
	case OpEqual:
		return cur == cond.Value
	case OpNotEqual:
		return cur != cond.Value
	default:
		return true
	}
}

// triggers reports whether a scene script fires. Unlike choice visibility,
// a script with no condition never fires.
func triggers(sc SceneScript, vars Variables) bool {
	if sc.TriggerCondition == nil {
		return false
	}
	return Evaluate(sc.TriggerCondition, vars)
}
