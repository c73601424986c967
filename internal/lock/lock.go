// Package lock provides cross-process locks that keep two generation runs
// from processing series at the same time.
package lock

import "hash/fnv"

// KeyFromName maps a lock name to a Postgres advisory lock key.
func KeyFromName(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}
