package link

// lpf is a fixed point exponential low pass filter:
// out += (in - out) / 2^beta.
type lpf struct {
	beta  uint
	fp    uint
	value int32
	out   int32
}

func newLPF(beta uint) lpf {
	return lpf{beta: beta, fp: 5}
}

func (f *lpf) init(v int32) {
	f.value = v << f.fp
	f.out = v
}

func (f *lpf) update(in int32) int32 {
	f.value = ((f.value << f.beta) - f.value + (in << f.fp)) >> f.beta
	f.out = (f.value + (1 << (f.fp - 1))) >> f.fp
	return f.out
}
