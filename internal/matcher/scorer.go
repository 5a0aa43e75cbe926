package matcher

import (
	"fmt"

	"pos-closing-service/internal/models"
)

// ConfidenceScorer turns one candidate explanation into a confidence score
// between 0 and 100 plus human-readable reasons.
type ConfidenceScorer interface {
	Score(entry *models.BankEntry, candidate Candidate, poolSize int) (float64, []string)
}

// WeightedScorer is the default scorer: a weighted combination of amount
// exactness, date proximity inside the settlement window, and uniqueness of
// the candidate pool. Ambiguity lowers confidence; the scorer never breaks
// ties by silently preferring one of several equally plausible candidates.
type WeightedScorer struct {
	config *Config
}

// NewWeightedScorer creates the default scorer for the given configuration.
func NewWeightedScorer(config *Config) *WeightedScorer {
	return &WeightedScorer{config: config}
}

// Score implements ConfidenceScorer. poolSize is the total number of viable
// candidates found for the entry, including this one.
func (s *WeightedScorer) Score(entry *models.BankEntry, candidate Candidate, poolSize int) (float64, []string) {
	var reasons []string

	amountScore := s.amountScore(entry, candidate, &reasons)
	dateScore := s.dateScore(candidate, &reasons)
	uniquenessScore := s.uniquenessScore(poolSize, &reasons)

	w := s.config.Weights
	confidence := 100 * (w.Amount*amountScore + w.Date*dateScore + w.Uniqueness*uniquenessScore)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return confidence, reasons
}

func (s *WeightedScorer) amountScore(entry *models.BankEntry, candidate Candidate, reasons *[]string) float64 {
	diff := candidate.Total.Sub(entry.Amount).Abs()
	if diff.IsZero() {
		*reasons = append(*reasons, "amount matches exactly")
		return 1.0
	}
	if s.config.AmountTolerance.IsZero() {
		*reasons = append(*reasons, fmt.Sprintf("amount differs by %s", diff))
		return 0
	}
	// linear falloff inside the tolerance band
	ratio, _ := diff.Div(s.config.AmountTolerance).Float64()
	if ratio > 1 {
		ratio = 1
	}
	*reasons = append(*reasons, fmt.Sprintf("amount differs by %s (within tolerance)", diff))
	return 1.0 - 0.5*ratio
}

func (s *WeightedScorer) dateScore(candidate Candidate, reasons *[]string) float64 {
	profile := s.config.ProfileFor(candidate.Provider)
	window := profile.WindowSize()
	if window <= 1 {
		*reasons = append(*reasons, "settled same day")
		return 1.0
	}
	offset := candidate.LagDays - profile.SettlementLagMinDays
	if offset < 0 {
		offset = 0
	}
	*reasons = append(*reasons, fmt.Sprintf("settled %d day(s) after sale", candidate.LagDays))
	return 1.0 - float64(offset)/float64(window)
}

func (s *WeightedScorer) uniquenessScore(poolSize int, reasons *[]string) float64 {
	if poolSize <= 1 {
		*reasons = append(*reasons, "only viable candidate")
		return 1.0
	}
	*reasons = append(*reasons, fmt.Sprintf("%d plausible candidates", poolSize))
	return 1.0 / float64(poolSize)
}
