package session

import (
	"time"

	"github.com/mr-valente/quacktuaries/internal/domain"
	"github.com/mr-valente/quacktuaries/internal/modules/sampling"
	"github.com/mr-valente/quacktuaries/internal/modules/scoring"
)

// Inspect spends one turn and n units of budget to draw a binomial sample
// from the batch's hidden rate, then folds the draw into the player's
// cumulative tally. Validation happens entirely before the first mutation.
func (s *Session) Inspect(playerID string, batchIndex, n int, now time.Time) (domain.InspectResult, error) {
	s.mu.RLock()
	res, rec, err := s.inspectLocked(playerID, batchIndex, n, now)
	s.mu.RUnlock()

	if err != nil {
		return domain.InspectResult{}, err
	}
	s.appendRecord(rec)
	s.notify()
	return res, nil
}

func (s *Session) inspectLocked(playerID string, batchIndex, n int, now time.Time) (domain.InspectResult, domain.ActionRecord, error) {
	if err := s.ensureRunningLocked(now); err != nil {
		return domain.InspectResult{}, domain.ActionRecord{}, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return domain.InspectResult{}, domain.ActionRecord{}, err
	}
	b, err := s.batch(batchIndex)
	if err != nil {
		return domain.InspectResult{}, domain.ActionRecord{}, err
	}
	if n < s.cfg.MinSample || n > s.cfg.MaxSample {
		return domain.InspectResult{}, domain.ActionRecord{}, domain.ErrSampleSizeOutOfRange
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.locked {
		return domain.InspectResult{}, domain.ActionRecord{}, domain.ErrBatchLocked
	}
	if !p.ledger.CanAfford(1, n) {
		return domain.InspectResult{}, domain.ActionRecord{}, domain.ErrInsufficientResources
	}

	// Commit point: spend, sample, record tally - as one unit under the locks.
	if err := p.ledger.Spend(1, n); err != nil {
		return domain.InspectResult{}, domain.ActionRecord{}, err
	}
	x, err := s.sampler.Binomial(b.trueRate, n)
	if err != nil {
		// Inputs were validated above; a sampler failure here is a bug.
		panic(err)
	}

	tally, ok := p.tallies[batchIndex]
	if !ok {
		tally = &inspectionTally{}
		p.tallies[batchIndex] = tally
	}
	tally.samples += n
	tally.defects += x

	res := domain.InspectResult{
		BatchIndex:   batchIndex,
		SampleSize:   n,
		Defects:      x,
		TotalSamples: tally.samples,
		TotalDefects: tally.defects,
		Estimate:     sampling.PointEstimate(tally.samples, tally.defects),
		TurnsLeft:    p.ledger.Turns(),
		BudgetLeft:   p.ledger.Budget(),
	}
	rec := domain.ActionRecord{
		SessionID: s.id,
		PlayerID:  p.id,
		Timestamp: now,
		Type:      domain.RecordInspect,
		Payload: map[string]any{
			"batch_index": batchIndex,
			"sample_size": n,
			"defects":     x,
		},
	}
	return res, rec, nil
}

// Sell spends one turn to sell a confidence-interval policy on a batch. The
// claim is priced, settled against the hidden true rate, and the net applied
// to the player's score; the batch is then locked session-wide and marked
// sold for this player. All of it commits atomically or not at all.
func (s *Session) Sell(playerID string, batchIndex int, confidence, lower, upper float64, now time.Time) (domain.SellResult, error) {
	s.mu.RLock()
	res, rec, err := s.sellLocked(playerID, batchIndex, confidence, lower, upper, now)
	s.mu.RUnlock()

	if err != nil {
		return domain.SellResult{}, err
	}
	s.appendRecord(rec)
	s.notify()
	return res, nil
}

func (s *Session) sellLocked(playerID string, batchIndex int, confidence, lower, upper float64, now time.Time) (domain.SellResult, domain.ActionRecord, error) {
	if err := s.ensureRunningLocked(now); err != nil {
		return domain.SellResult{}, domain.ActionRecord{}, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return domain.SellResult{}, domain.ActionRecord{}, err
	}
	b, err := s.batch(batchIndex)
	if err != nil {
		return domain.SellResult{}, domain.ActionRecord{}, err
	}

	width, err := scoring.Width(lower, upper)
	if err != nil {
		return domain.SellResult{}, domain.ActionRecord{}, err
	}
	tier, ok := s.cfg.TierByLevel(confidence)
	if !ok {
		return domain.SellResult{}, domain.ActionRecord{}, domain.ErrUnknownConfidence
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	// The seller's own repeat attempt reports AlreadySold; everyone else sees
	// the session-wide lock.
	if _, soldIt := p.sold[batchIndex]; soldIt {
		return domain.SellResult{}, domain.ActionRecord{}, domain.ErrAlreadySold
	}
	if b.locked {
		return domain.SellResult{}, domain.ActionRecord{}, domain.ErrBatchLocked
	}
	if s.cfg.RequireInspectBeforeSell {
		if tally, ok := p.tallies[batchIndex]; !ok || tally.samples == 0 {
			return domain.SellResult{}, domain.ActionRecord{}, domain.ErrInspectionRequired
		}
	}
	if !p.ledger.CanAfford(1, 0) {
		return domain.SellResult{}, domain.ActionRecord{}, domain.ErrInsufficientResources
	}

	// Commit point.
	if err := p.ledger.Spend(1, 0); err != nil {
		return domain.SellResult{}, domain.ActionRecord{}, err
	}
	premium := scoring.Price(width, s.cfg.PremiumScale, tier)
	hit, net := scoring.Settle(b.trueRate, lower, upper, premium, tier.Penalty)
	p.ledger.AdjustScore(net)

	b.locked = true
	b.lockedBy = p.id
	p.sold[batchIndex] = struct{}{}

	penalty := 0
	if !hit {
		penalty = tier.Penalty
	}

	res := domain.SellResult{
		BatchIndex: batchIndex,
		Confidence: confidence,
		Lower:      lower,
		Upper:      upper,
		Width:      width,
		Premium:    premium,
		Penalty:    penalty,
		Hit:        hit,
		Net:        net,
		NewScore:   p.ledger.Score(),
		TurnsLeft:  p.ledger.Turns(),
	}
	rec := domain.ActionRecord{
		SessionID:  s.id,
		PlayerID:   p.id,
		Timestamp:  now,
		Type:       domain.RecordSell,
		DeltaScore: net,
		Payload: map[string]any{
			"batch_index": batchIndex,
			"confidence":  confidence,
			"lower":       lower,
			"upper":       upper,
			"width":       width,
			"premium":     premium,
			"penalty":     penalty,
			"hit":         hit,
			"net":         net,
		},
	}
	return res, rec, nil
}

// Purchase exchanges score for an extra turn or extra inspection budget at
// the session's configured prices.
func (s *Session) Purchase(playerID string, kind domain.PurchaseKind, now time.Time) (domain.PurchaseResult, error) {
	s.mu.RLock()
	res, rec, err := s.purchaseLocked(playerID, kind, now)
	s.mu.RUnlock()

	if err != nil {
		return domain.PurchaseResult{}, err
	}
	s.appendRecord(rec)
	s.notify()
	return res, nil
}

func (s *Session) purchaseLocked(playerID string, kind domain.PurchaseKind, now time.Time) (domain.PurchaseResult, domain.ActionRecord, error) {
	if err := s.ensureRunningLocked(now); err != nil {
		return domain.PurchaseResult{}, domain.ActionRecord{}, err
	}
	p, err := s.player(playerID)
	if err != nil {
		return domain.PurchaseResult{}, domain.ActionRecord{}, err
	}

	prices := s.cfg.PurchasePrices

	p.mu.Lock()
	defer p.mu.Unlock()

	var res domain.PurchaseResult
	switch kind {
	case domain.PurchaseTurn:
		if err := p.ledger.PurchaseTurn(prices.TurnCost); err != nil {
			return domain.PurchaseResult{}, domain.ActionRecord{}, err
		}
		p.turnsPurchased++
		res = domain.PurchaseResult{
			Kind:     kind,
			Cost:     prices.TurnCost,
			Amount:   1,
			NewScore: p.ledger.Score(),
			NewTurns: p.ledger.Turns(),
		}
	case domain.PurchaseBudget:
		if err := p.ledger.PurchaseBudget(prices.BudgetCost, prices.BudgetAmount); err != nil {
			return domain.PurchaseResult{}, domain.ActionRecord{}, err
		}
		p.budgetPurchased += prices.BudgetAmount
		res = domain.PurchaseResult{
			Kind:      kind,
			Cost:      prices.BudgetCost,
			Amount:    prices.BudgetAmount,
			NewScore:  p.ledger.Score(),
			NewBudget: p.ledger.Budget(),
		}
	default:
		return domain.PurchaseResult{}, domain.ActionRecord{}, domain.ErrUnknownPurchaseKind
	}

	rec := domain.ActionRecord{
		SessionID:  s.id,
		PlayerID:   p.id,
		Timestamp:  now,
		Type:       domain.RecordPurchase,
		DeltaScore: -res.Cost,
		Payload: map[string]any{
			"kind":   string(kind),
			"cost":   res.Cost,
			"amount": res.Amount,
		},
	}
	return res, rec, nil
}
