//go:build !linux

package store

// diskStats is unavailable off Linux; (0, 0) means "unknown", not "full".
func diskStats(_ string) (avail, total uint64) { return 0, 0 }
