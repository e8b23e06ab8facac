// Package tick provides wraparound-safe interval gates for cooperative
// control loops. A single owner goroutine polls every gate once per
// pass and due callbacks run inline on that goroutine.
//
// Gates keep no goroutines and take no locks. Time comes from a Clock,
// a plain function returning milliseconds on a wrapping 32-bit counter,
// so state advances only when the owner polls. Nothing in this package
// is safe for concurrent use; a gate belongs to the goroutine that
// polls it.
package tick
