package mempool

import (
	"sync"
)

// Sized pools for pixel storage ([]byte) and tensor input ([]float32) so the
// per-frame crop, scale and normalize steps reuse memory across frames.

// sizedPool keeps one sync.Pool per size class.
type sizedPool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

var (
	bytePools    sizedPool[byte]
	float32Pools sizedPool[float32]
)

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

func (s *sizedPool[T]) pool(cls int) *sync.Pool {
	pAny, _ := s.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return nil
	}
	return p
}

func (s *sizedPool[T]) get(n int) []T {
	cls := sizeClass(n)
	p := s.pool(cls)
	if p == nil {
		return make([]T, cls)[:n]
	}
	buf, ok := p.Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	return buf[:n]
}

func (s *sizedPool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	p := s.pool(sizeClass(cap(buf)))
	if p == nil {
		return
	}
	p.Put(buf[:cap(buf)]) //nolint:staticcheck
}

// GetBytes retrieves a zeroed []byte of length n from the pool.
// The caller must return it via PutBytes when done.
func GetBytes(n int) []byte {
	buf := bytePools.get(n)
	clear(buf)
	return buf
}

// PutBytes returns a buffer to the pool. It is safe to pass a nil slice.
func PutBytes(buf []byte) {
	bytePools.put(buf)
}

// GetFloat32 retrieves a []float32 buffer of at least n elements from the pool.
// The returned slice has length n but may have larger capacity; contents are
// not cleared. The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 {
	return float32Pools.get(n)
}

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) {
	float32Pools.put(buf)
}
