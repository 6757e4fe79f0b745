// Package intent classifies user requests into coarse categories that
// select which tools the model is offered. Classification is a
// deterministic keyword scorer, no model call.
package intent

import (
	"strings"
	"unicode"

	"tinker/internal/logging"
)

// Intent is a coarse request category.
type Intent string

const (
	IntentCode     Intent = "/code"
	IntentResearch Intent = "/research"
	IntentTest     Intent = "/test"
	IntentGeneral  Intent = "/general"
)

// intentKeywords maps each intent to its signal words. Scoring counts
// keyword hits; ties and zero scores fall back to /general.
var intentKeywords = map[Intent][]string{
	IntentCode: {
		"fix", "implement", "refactor", "write", "create", "edit", "change",
		"add", "remove", "rename", "bug", "error", "broken", "function",
		"file", "code", "class", "method", "compile", "syntax", "patch",
	},
	IntentResearch: {
		"what", "why", "how", "explain", "research", "find", "search",
		"look", "documentation", "docs", "learn", "compare", "difference",
		"url", "website", "fetch", "read about",
	},
	IntentTest: {
		"test", "tests", "coverage", "verify", "check", "run", "build",
		"benchmark", "lint", "ci", "passes", "failing",
	},
}

// Classify returns the best matching intent for the input.
func Classify(input string) Intent {
	words := tokenize(input)
	if len(words) == 0 {
		return IntentGeneral
	}

	scores := make(map[Intent]int)
	for intent, keywords := range intentKeywords {
		for _, kw := range keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(strings.ToLower(input), kw) {
					scores[intent]++
				}
				continue
			}
			for _, w := range words {
				if w == kw {
					scores[intent]++
				}
			}
		}
	}

	best := IntentGeneral
	bestScore := 0
	// Fixed evaluation order keeps ties deterministic.
	for _, intent := range []Intent{IntentCode, IntentTest, IntentResearch} {
		if scores[intent] > bestScore {
			best = intent
			bestScore = scores[intent]
		}
	}

	logging.IntentDebug("Classified %q as %s (score=%d)", truncateForLog(input, 60), best, bestScore)
	return best
}

func tokenize(input string) []string {
	return strings.FieldsFunc(strings.ToLower(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func truncateForLog(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
