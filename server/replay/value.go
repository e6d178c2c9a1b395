package replay

// Value is a value emitted by a looped replay. LoopRestart is true for the first value of every loop iteration.
type Value[T any] struct {
	Value       T
	LoopRestart bool
}
