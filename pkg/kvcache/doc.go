// Package kvcache is an embeddable key-value cache with a memory layer backed
// by one file per entry on local disk.
//
// Keys may be strings or any JSON-encodable value; structured keys are
// encoded canonically before normalization, so equal values always address
// the same entry. Values are tagged with a codec from a codec.Registry and
// written through to disk synchronously on every Set.
//
// Expiry is lazy: TryGetValue, Get and Exists re-check the expiry instant on
// every access and evict what they find expired. RemoveExpired sweeps memory
// and the whole store tree, so any process bound to a store can reclaim
// entries another process wrote.
//
// Caches opened without WithShared use a process-wide memory layer, so two
// caches on the same store never serve each other stale values. Call
// CloseDefaultShared at shutdown to drop it.
//
// Basic use:
//
//	c, err := kvcache.New("./data")
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	_ = c.SetWithTTL("greeting", "hello", time.Minute)
//	v, err := kvcache.Get[string](c, "greeting")
//
// User types must be registered before they are stored:
//
//	reg := codec.NewRegistry()
//	codec.MustRegister[Profile](reg, "profile")
//	c, err := kvcache.New("./data", kvcache.WithRegistry(reg))
package kvcache
