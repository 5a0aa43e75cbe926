package matcher

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"pos-closing-service/internal/models"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/google/uuid"
)

// Matcher scores bank entries against candidate pools and produces one
// pending ReconciliationMatch per entry.
type Matcher struct {
	config *Config
	scorer ConfidenceScorer
	logger logger.Logger

	// NewID mints match IDs; overridable for deterministic tests.
	NewID func() string
}

// New creates a matcher. A nil scorer gets the default WeightedScorer.
func New(config *Config, scorer ConfidenceScorer) (*Matcher, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matcher", nil, err)
	}
	if scorer == nil {
		scorer = NewWeightedScorer(config)
	}
	return &Matcher{
		config: config,
		scorer: scorer,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
		NewID:  uuid.NewString,
	}, nil
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() *Config {
	return m.config
}

// Match explains every bank entry of one period. Entries are independent of
// each other, so scoring runs in parallel across entries; the result order
// follows the input order. Every entry yields a match, including ones the
// matcher cannot explain.
func (m *Matcher) Match(ctx context.Context, organizationID string, periodKey models.PeriodKey, entries []*models.BankEntry, pools *Pools) ([]*models.ReconciliationMatch, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "reconciliation matching", nil)
	}
	if pools == nil {
		pools = &Pools{}
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.SystemicError(errors.CodeCancelled, "reconciliation matching", err)
	}

	matches := make([]*models.ReconciliationMatch, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry *models.BankEntry) {
			defer wg.Done()
			matches[i] = m.matchEntry(organizationID, periodKey, entry, pools)
		}(i, entry)
	}
	wg.Wait()

	m.logger.WithFields(logger.Fields{
		"organization": organizationID,
		"period_key":   periodKey,
		"entries":      len(entries),
	}).Info("reconciliation matching finished")

	return matches, nil
}

// matchEntry builds and scores candidates for one entry and picks the best
// scoring explanation. Pools are only read, never mutated, so concurrent
// calls are safe.
func (m *Matcher) matchEntry(organizationID string, periodKey models.PeriodKey, entry *models.BankEntry, pools *Pools) *models.ReconciliationMatch {
	match := &models.ReconciliationMatch{
		ID:             m.NewID(),
		OrganizationID: organizationID,
		PeriodKey:      periodKey,
		BankEntryID:    entry.ID,
		Status:         models.MatchPending,
		CreatedAt:      time.Now().UTC(),
	}

	candidates := buildCandidates(entry, pools, m.config)
	if len(candidates) == 0 {
		m.classifyUnexplained(entry, match)
		return match
	}

	best := candidates[0]
	bestConfidence, bestReasons := m.scorer.Score(entry, best, len(candidates))
	for _, candidate := range candidates[1:] {
		confidence, reasons := m.scorer.Score(entry, candidate, len(candidates))
		if confidence > bestConfidence {
			best, bestConfidence, bestReasons = candidate, confidence, reasons
		}
	}

	match.MatchType = best.Type
	match.MatchedRecords = best.Records
	match.Confidence = bestConfidence
	match.Reasons = bestReasons
	return match
}

// classifyUnexplained handles entries with no candidates at all: a large
// credit becomes a deposit guess, everything else stays unknown.
func (m *Matcher) classifyUnexplained(entry *models.BankEntry, match *models.ReconciliationMatch) {
	if entry.Direction == models.DirectionCredit && entry.Amount.GreaterThanOrEqual(m.config.DepositMinAmount) {
		match.MatchType = models.MatchDeposit
		match.Confidence = 25
		match.Reasons = []string{
			fmt.Sprintf("no candidates; credit of %s at or above deposit threshold %s",
				entry.Amount, m.config.DepositMinAmount),
		}
		return
	}
	match.MatchType = models.MatchUnknown
	match.Confidence = 0
	match.Reasons = []string{"no viable candidates"}
}
