// Package fn holds small generic helpers.
package fn

// T is short for ternary.
func T[V any](cond bool, a, b V) V {
	if cond {
		return a
	}
	return b
}
