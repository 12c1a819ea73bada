package stats_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hit/internal/stats"
)

func TestTranscriptionAccuracy(t *testing.T) {
	so := assert.New(t)

	score, ok := stats.TranscriptionAccuracy("Hello World", "hello   world")
	so.True(ok)
	so.Equal(float64(100), score)

	score, ok = stats.TranscriptionAccuracy("abcd", "abcf")
	so.True(ok)
	so.Equal(float64(75), score)

	score, ok = stats.TranscriptionAccuracy("abcd", "")
	so.True(ok)
	so.Zero(score)

	_, ok = stats.TranscriptionAccuracy("   ", "anything")
	so.False(ok)
}
