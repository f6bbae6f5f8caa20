package storage

import "fmt"

// Key builds a slash-separated ASCII key path from the given segments, the
// schema convention every subsystem package below follows.
func Key(segments ...string) []byte {
	out := segments[0]
	for _, s := range segments[1:] {
		out = out + "/" + s
	}
	return []byte(out)
}

// Keyf is a convenience wrapper for building a key path with formatted
// segments.
func Keyf(format string, args ...interface{}) []byte {
	return []byte(fmt.Sprintf(format, args...))
}
