package chat_test

import (
	"math/rand"
	"testing"

	"github.com/nfarrell/chat-stream-ui/internal/chat"
	"github.com/stretchr/testify/require"
)

func TestShouldFlush(t *testing.T) {
	tests := []struct {
		name       string
		chunkCount int
		contentLen int
		want       bool
	}{
		{name: "first chunk short content", chunkCount: 1, contentLen: 4, want: false},
		{name: "second chunk short content", chunkCount: 2, contentLen: 8, want: false},
		{name: "every third chunk", chunkCount: 3, contentLen: 11, want: true},
		{name: "length multiple of fifteen", chunkCount: 4, contentLen: 30, want: true},
		{name: "both triggers", chunkCount: 6, contentLen: 45, want: true},
		{name: "neither trigger", chunkCount: 7, contentLen: 31, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, chat.ShouldFlush(tt.chunkCount, tt.contentLen))
		})
	}
}

// TestFlushCadenceBound simulates random delta streams and checks that no
// more than two accepted deltas are ever skipped between flushes, and that
// every flush point satisfies at least one of the two triggers.
func TestFlushCadenceBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 100; run++ {
		contentLen := 0
		sinceFlush := 0

		deltas := rng.Intn(50) + 1
		for chunk := 1; chunk <= deltas; chunk++ {
			contentLen += rng.Intn(8) + 1

			if chat.ShouldFlush(chunk, contentLen) {
				require.True(t, chunk%3 == 0 || contentLen%15 == 0)
				sinceFlush = 0
				continue
			}

			sinceFlush++
			require.LessOrEqual(t, sinceFlush, 2,
				"more than two accepted deltas skipped without a flush")
		}
	}
}
