package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const localDimensions = 256

// LocalEngine is a deterministic, offline embedding engine. It hashes word
// trigrams into a fixed-size vector and L2-normalizes it. Quality is far
// below a real model but similar texts still land near each other, which
// keeps memory recall functional without an API key. Also used in tests.
type LocalEngine struct{}

// NewLocalEngine creates the hash-based local engine.
func NewLocalEngine() *LocalEngine {
	return &LocalEngine{}
}

// Embed generates a deterministic embedding for the text.
func (e *LocalEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, localDimensions)
	tokens := tokenize(text)

	for _, token := range tokens {
		for _, gram := range trigrams(token) {
			h := fnv.New32a()
			h.Write([]byte(gram))
			sum := h.Sum32()
			idx := sum % localDimensions
			// Low bit picks the sign so common grams don't all pile
			// into positive space.
			if sum&(1<<16) != 0 {
				vec[idx] += 1
			} else {
				vec[idx] -= 1
			}
		}
	}

	var mag float64
	for _, v := range vec {
		mag += float64(v) * float64(v)
	}
	if mag > 0 {
		norm := float32(math.Sqrt(mag))
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec, nil
}

// Dimensions returns the fixed local vector size.
func (e *LocalEngine) Dimensions() int {
	return localDimensions
}

// Name returns the engine name.
func (e *LocalEngine) Name() string {
	return "local:fnv-trigram"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func trigrams(token string) []string {
	if len(token) <= 3 {
		return []string{token}
	}
	grams := make([]string, 0, len(token)-2)
	for i := 0; i+3 <= len(token); i++ {
		grams = append(grams, token[i:i+3])
	}
	return grams
}
