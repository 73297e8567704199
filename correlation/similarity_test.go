package correlation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineIdenticalTexts(t *testing.T) {
	s := NewSimilarity()
	s.Observe("ICE agents at the corner of Lake and Nicollet")
	sim := s.Cosine(
		"ICE agents at the corner of Lake and Nicollet",
		"ICE agents at the corner of Lake and Nicollet",
	)
	assert.InDelta(t, 1.0, sim, 0.0001)
}

func TestCosineDisjointTexts(t *testing.T) {
	s := NewSimilarity()
	sim := s.Cosine("ICE raid happening downtown", "farmers market opens saturday morning")
	assert.Equal(t, 0.0, sim)
}

func TestCosineOverlappingTexts(t *testing.T) {
	s := NewSimilarity()
	s.Observe("ICE van in Uptown")
	sim := s.Cosine("ICE van in Uptown", "ICE vehicles Uptown Minneapolis")
	assert.Greater(t, sim, 0.25)
	assert.Less(t, sim, 1.0)
}

func TestCosineStopwordsIgnored(t *testing.T) {
	s := NewSimilarity()
	// Only stopwords and one-letter tokens in common: no similarity.
	sim := s.Cosine("they are at the corner now", "the and a of to in")
	assert.Equal(t, 0.0, sim)
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("ICE agents at 5th & Hennepin, right now!")
	assert.Equal(t, []string{"ice", "agents", "5th", "hennepin", "right", "now"}, tokens)
}
