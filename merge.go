package statebox

import "maps"

// Merge returns a new State holding the keys of base overridden by the keys
// of update. A key present in update always wins, even when its value is the
// zero value or nil
func Merge[V any](base State[V], update Update[V]) State[V] {
	res := make(State[V], len(base)+len(update))
	maps.Copy(res, base)
	maps.Copy(res, update)
	return res
}

// Replace returns a new State holding exactly the keys of update
func Replace[V any](update Update[V]) State[V] {
	res := make(State[V], len(update))
	maps.Copy(res, update)
	return res
}
