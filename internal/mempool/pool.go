// Package mempool recycles large slices on hot paths, such as the float32 input tensors
// built for every detector forward pass.
package mempool

import "sync"

// bucketStep is the granularity of pooled capacities. A 640x640 RGB tensor needs
// 1,228,800 floats, so small steps would create many near-identical buckets.
const bucketStep = 4096

// Pool hands out slices whose capacity is rounded up to a bucket, with one sync.Pool per
// bucket. The zero value is ready to use.
type Pool[T any] struct {
	buckets sync.Map // int -> *sync.Pool
}

// Float32 is the shared pool for tensor data.
var Float32 Pool[float32]

func bucket(n int) int {
	if n <= bucketStep {
		return bucketStep
	}
	return (n + bucketStep - 1) / bucketStep * bucketStep
}

func (p *Pool[T]) pool(size int) *sync.Pool {
	if sp, ok := p.buckets.Load(size); ok {
		return sp.(*sync.Pool)
	}
	sp, _ := p.buckets.LoadOrStore(size, &sync.Pool{
		New: func() any {
			s := make([]T, size)
			return &s
		},
	})
	return sp.(*sync.Pool)
}

// Get returns a slice of length n. Its contents are unspecified.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	size := bucket(n)
	sp := p.pool(size)
	s := *(sp.Get().(*[]T))
	if cap(s) < size {
		s = make([]T, size)
	}
	return s[:n]
}

// Put returns s for reuse. Slices whose capacity is not a bucket size were not handed out
// by Get and are dropped.
func (p *Pool[T]) Put(s []T) {
	c := cap(s)
	if c == 0 || bucket(c) != c {
		return
	}
	s = s[:c]
	p.pool(c).Put(&s)
}

// GetFloat32 is Float32.Get.
func GetFloat32(n int) []float32 { return Float32.Get(n) }

// PutFloat32 is Float32.Put.
func PutFloat32(s []float32) { Float32.Put(s) }
