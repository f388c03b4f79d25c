package gateway

import (
	"strings"

	"github.com/parla-labs/parla/internal/quota"
)

// wordsPerMinute converts reply length into conversation minutes. This
// is a deliberate post-hoc approximation of speaking time from word
// count; it is the defined cost function, not a stand-in for wall-clock
// session measurement.
const wordsPerMinute = 150.0

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// conversationCost returns the minute cost of a reply, rounded to two
// decimal places.
func conversationCost(reply string) float64 {
	return quota.RoundMinutes(float64(wordCount(reply)) / wordsPerMinute)
}

// truncateInput caps synthesis input at max characters, rune-safe.
func truncateInput(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
