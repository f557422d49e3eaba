package mathutil

// Round32 marks a named subexpression that a forward pass and its paired
// backward pass must agree on bit-for-bit. Go's float32 arithmetic is
// already IEEE-754 single precision with no implicit widening (unlike x87
// C/C++ code, which is what originally required an explicit truncation
// step here), so this is the identity function. Callers still route every
// forward/backward-shared quantity through it so the sharing is visible at
// the call site and so the invariant survives if this code is ever built
// with a compiler that does promote intermediate precision.
func Round32(x float32) float32 {
	return x
}
