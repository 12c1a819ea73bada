package stats

import (
	"math"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// TranscriptionAccuracy scores how closely the transcription reproduces the
// prompt, 0..100, by character edit distance after case and whitespace
// normalisation. ok is false when there is no prompt to compare against.
func TranscriptionAccuracy(prompt, transcription string) (score float64, ok bool) {
	want := []rune(normalizeText(prompt))
	if len(want) == 0 {
		return 0, false
	}
	got := []rune(normalizeText(transcription))

	distance := levenshtein.DistanceForStrings(want, got, levenshtein.DefaultOptionsWithSub)
	longest := len(want)
	if len(got) > longest {
		longest = len(got)
	}
	ratio := 1 - float64(distance)/float64(longest)
	if ratio < 0 {
		ratio = 0
	}
	return math.Round(ratio * 100), true
}

func normalizeText(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}
