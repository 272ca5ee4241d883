package chat

// ShouldFlush reports whether the accumulated assistant content should be
// persisted after the latest accepted delta. Persisting every third chunk, or
// whenever the total length lands on a multiple of fifteen characters, bounds
// both the delay before a token becomes visible and the write rate against
// the store, without flushing on every single token.
func ShouldFlush(chunkCount, contentLen int) bool {
	return chunkCount%3 == 0 || contentLen%15 == 0
}
