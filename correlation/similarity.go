package correlation

import (
	"math"
	"strings"
	"unicode"

	"gonum.org/v1/gonum/floats"
)

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "he": true, "her": true, "his": true,
	"i": true, "in": true, "is": true, "it": true, "its": true, "just": true,
	"me": true, "my": true, "no": true, "not": true, "of": true, "on": true,
	"or": true, "our": true, "she": true, "so": true, "that": true,
	"the": true, "their": true, "them": true, "there": true, "they": true,
	"this": true, "to": true, "was": true, "we": true, "were": true,
	"what": true, "when": true, "where": true, "who": true, "will": true,
	"with": true, "you": true, "your": true,
}

// Similarity computes TF-IDF cosine similarity between texts. Document
// frequencies accumulate lazily from observed reports; the vocabulary is
// in-memory only and rebuilt from active cluster members after a restart.
type Similarity struct {
	df   map[string]int
	docs int
}

// NewSimilarity returns an empty engine.
func NewSimilarity() *Similarity {
	return &Similarity{df: make(map[string]int)}
}

func tokenize(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimFunc(word, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if len(word) < 2 || stopwords[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// Observe folds a document's tokens into the frequency table.
func (s *Similarity) Observe(text string) {
	s.docs++
	seen := make(map[string]bool)
	for _, t := range tokenize(text) {
		if !seen[t] {
			seen[t] = true
			s.df[t]++
		}
	}
}

func (s *Similarity) idf(token string) float64 {
	return math.Log(1 + float64(s.docs+1)/float64(s.df[token]+1))
}

func termFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	for t := range tf {
		tf[t] /= float64(len(tokens))
	}
	return tf
}

// Cosine returns the TF-IDF cosine similarity of two texts in [0,1].
func (s *Similarity) Cosine(a, b string) float64 {
	ta, tb := tokenize(a), tokenize(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	tfa, tfb := termFreq(ta), termFreq(tb)

	vocab := make([]string, 0, len(tfa)+len(tfb))
	for t := range tfa {
		vocab = append(vocab, t)
	}
	for t := range tfb {
		if _, ok := tfa[t]; !ok {
			vocab = append(vocab, t)
		}
	}

	va := make([]float64, len(vocab))
	vb := make([]float64, len(vocab))
	for i, t := range vocab {
		w := s.idf(t)
		va[i] = tfa[t] * w
		vb[i] = tfb[t] * w
	}

	na, nb := floats.Norm(va, 2), floats.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(va, vb) / (na * nb)
}
