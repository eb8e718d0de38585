package hub

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultStripes = 256

// KeyedMutex serializes work per key using a fixed set of stripes. Two keys
// may share a stripe; a key never maps to two stripes.
type KeyedMutex struct {
	stripes []sync.Mutex
}

func NewKeyedMutex(stripes int) *KeyedMutex {
	if stripes <= 0 {
		stripes = defaultStripes
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, stripes)}
}

// Lock blocks until key is held and returns the matching unlock.
func (k *KeyedMutex) Lock(key string) func() {
	mu := &k.stripes[xxhash.Sum64String(key)%uint64(len(k.stripes))]
	mu.Lock()
	return mu.Unlock
}
