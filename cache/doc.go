// Package cache provides the concurrent LRU cache behind the layout and
// specialized-program caches.
//
// ShardedCache splits its keys over a fixed number of shards, each with its
// own lock and LRU list, so that encoding threads looking up unrelated layouts
// do not contend:
//
//	layouts := cache.NewSharded[string, *Layout](64, cache.StringHasher)
//	l, err := layouts.GetOrCreateErr(key, func() (*Layout, error) {
//	    return build(key)
//	})
//
// Creation functions that fail leave no entry behind, so a failed layout build
// is retried on the next lookup instead of being cached.
package cache
