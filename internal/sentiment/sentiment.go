// Package sentiment scores text polarity. The scorer contract is small on
// purpose: anything that maps text to a Score deterministically can stand in,
// including an external model.
package sentiment

import (
	"bufio"
	_ "embed"
	"math"
	"strconv"
	"strings"
)

// Score is the polarity record for one text sample. Negative, Positive and
// Neutral are proportions in [0,1]; Compound is the primary scalar signal
// in [-1,1].
type Score struct {
	Negative float64 `json:"neg"`
	Positive float64 `json:"pos"`
	Neutral  float64 `json:"neu"`
	Compound float64 `json:"compound"`
}

// Scorer maps text to a polarity score. Implementations must be
// deterministic and side-effect free.
type Scorer interface {
	Score(text string) Score
}

//go:embed lexicon.txt
var lexiconData string

// normalization constant for the compound score, matching the usual
// valence-sum normalization x / sqrt(x^2 + alpha)
const alpha = 15.0

const negationDampener = -0.74

const boosterIncrement = 0.293

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "none": true, "neither": true,
	"nobody": true, "nothing": true, "nowhere": true, "hardly": true,
	"barely": true, "cant": true, "cannot": true, "dont": true, "wont": true,
	"isnt": true, "wasnt": true, "couldnt": true, "shouldnt": true,
	"wouldnt": true, "didnt": true, "doesnt": true, "aint": true,
}

var boosters = map[string]bool{
	"very": true, "really": true, "extremely": true, "absolutely": true,
	"completely": true, "totally": true, "so": true, "incredibly": true,
	"super": true, "deeply": true,
}

// LexiconScorer is a lexicon-based polarity scorer with negation and
// intensity handling. Safe for concurrent use.
type LexiconScorer struct {
	lexicon map[string]float64
}

// NewLexiconScorer builds a scorer from the embedded valence lexicon.
func NewLexiconScorer() *LexiconScorer {
	return &LexiconScorer{lexicon: loadLexicon(lexiconData)}
}

func loadLexicon(data string) map[string]float64 {
	lex := make(map[string]float64)
	sc := bufio.NewScanner(strings.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		lex[fields[0]] = v
	}
	return lex
}

// Score computes the polarity of text. Empty or all-unknown text scores
// fully neutral with a zero compound.
func (s *LexiconScorer) Score(text string) Score {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return Score{Neutral: 1}
	}

	var sum, posSum, negSum float64
	var neuCount int

	for i, tok := range tokens {
		valence, ok := s.lexicon[tok]
		if !ok || valence == 0 {
			if !negations[tok] && !boosters[tok] {
				neuCount++
			}
			continue
		}

		if i > 0 && boosters[tokens[i-1]] {
			if valence > 0 {
				valence += boosterIncrement
			} else {
				valence -= boosterIncrement
			}
		}
		if negatedBefore(tokens, i) {
			valence *= negationDampener
		}

		sum += valence
		if valence > 0 {
			posSum += valence + 1
		} else {
			negSum += -valence + 1
		}
	}

	total := posSum + negSum + float64(neuCount)
	if total == 0 {
		return Score{Neutral: 1}
	}

	compound := sum / math.Sqrt(sum*sum+alpha)
	return Score{
		Negative: round4(negSum / total),
		Positive: round4(posSum / total),
		Neutral:  round4(float64(neuCount) / total),
		Compound: round4(compound),
	}
}

// negatedBefore reports whether a negation appears within the three tokens
// preceding position i.
func negatedBefore(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-3; j-- {
		if negations[tokens[j]] {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	lowered := strings.ToLower(text)
	// strip apostrophes so "can't" folds to "cant"
	lowered = strings.ReplaceAll(lowered, "'", "")
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	return fields
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
