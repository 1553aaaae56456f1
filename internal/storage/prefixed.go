package storage

import "context"

// Prefixed scopes every key of an underlying store, so that several owners
// (one per chat) can share one backend.
type Prefixed struct {
	kv     KV
	prefix string
}

// NewPrefixed wraps kv so that all keys are prepended with prefix.
func NewPrefixed(kv KV, prefix string) *Prefixed {
	return &Prefixed{kv: kv, prefix: prefix}
}

func (p *Prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.kv.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key string, value []byte) error {
	return p.kv.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Delete(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = p.prefix + k
	}
	return p.kv.Delete(ctx, scoped...)
}
