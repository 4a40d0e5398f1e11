package script

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kode4food/lru"
)

type (
	compileFunc[T any] func(script string) (T, error)

	// compiler caches compiled scripts by content hash
	compiler[T any] struct {
		cache *lru.Cache[T]
		build compileFunc[T]
	}
)

func newCompiler[T any](size int, build compileFunc[T]) *compiler[T] {
	return &compiler[T]{
		cache: lru.NewCache[T](size),
		build: build,
	}
}

// Validate compiles the script, caching the result on success
func (c *compiler[T]) Validate(script string) error {
	_, err := c.Compile(script)
	return err
}

// Compile returns the cached compiled form of the script, building it on
// first use
func (c *compiler[T]) Compile(script string) (T, error) {
	return c.cache.Get(hashScript(script), func() (T, error) {
		return c.build(script)
	})
}

func hashScript(script string) string {
	h := sha256.Sum256([]byte(script))
	return hex.EncodeToString(h[:])
}
