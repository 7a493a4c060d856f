// Package bitmap provides the compressed identity sets used by the cache.
//
// Set wraps a 64-bit Roaring Bitmap. Identities are non-negative int64
// values, so they map one-to-one onto uint64 members and iterate in
// ascending order, which keeps multi-valued index queries deterministic.
package bitmap
