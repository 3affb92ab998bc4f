package cache

import (
	"context"
	"time"
)

// DefaultPromoteTTL bounds how long a backing-tier hit stays in the hot tier
// after promotion.
const DefaultPromoteTTL = time.Minute

// Tiered composes a hot tier and a persistent backing tier. Reads go through
// the hot tier first; backing-tier hits are promoted. Writes go through to
// both tiers. Backing-tier failures degrade to the hot tier alone and are
// reported to the OnError hook.
type Tiered struct {
	hot     Cache
	backing Cache

	promoteTTL time.Duration
	onError    func(op, key string, err error)
}

// TieredOptions configures a Tiered cache.
type TieredOptions struct {
	// PromoteTTL is the hot-tier TTL applied when a backing hit is promoted.
	// Zero uses DefaultPromoteTTL.
	PromoteTTL time.Duration

	// OnError observes degraded backing-tier operations. Optional.
	OnError func(op, key string, err error)
}

// NewTiered composes hot and backing into a read-through, write-through
// cache. Pass nil opts for defaults.
func NewTiered(hot, backing Cache, opts *TieredOptions) *Tiered {
	t := &Tiered{hot: hot, backing: backing, promoteTTL: DefaultPromoteTTL}
	if opts != nil {
		if opts.PromoteTTL > 0 {
			t.promoteTTL = opts.PromoteTTL
		}
		t.onError = opts.OnError
	}
	return t
}

func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok, err := t.hot.Get(ctx, key)
	if err != nil {
		t.report("get", key, err)
	} else if ok {
		return v, true, nil
	}

	v, ok, err = t.backing.Get(ctx, key)
	if err != nil {
		// Degrade: a broken backing tier reads as a miss.
		t.report("get", key, err)
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	if err := t.hot.Set(ctx, key, v, t.promoteTTL); err != nil {
		t.report("promote", key, err)
	}
	return v, true, nil
}

func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.backing.Set(ctx, key, value, ttl); err != nil {
		t.report("set", key, err)
	}
	return t.hot.Set(ctx, key, value, ttl)
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	if err := t.backing.Delete(ctx, key); err != nil {
		t.report("delete", key, err)
	}
	return t.hot.Delete(ctx, key)
}

// Close closes both tiers.
func (t *Tiered) Close() error {
	berr := t.backing.Close()
	herr := t.hot.Close()
	if herr != nil {
		return herr
	}
	return berr
}

func (t *Tiered) report(op, key string, err error) {
	if t.onError != nil {
		t.onError(op, key, err)
	}
}
