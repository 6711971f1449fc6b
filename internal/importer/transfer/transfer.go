// Package transfer detects transfer pairs among committed ledger entries.
// An outgoing entry in one account and an incoming entry in another with
// matching amount, close dates and similar text are either linked as a
// transfer pair or emitted as a review suggestion.
package transfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/contalivre/backend/internal/importer/cardpay"
	"github.com/contalivre/backend/internal/importer/normalize"
	"github.com/contalivre/backend/internal/models"
)

const (
	weightAmount  = 0.55
	weightDate    = 0.25
	weightKeyword = 0.10
	weightText    = 0.10

	merchantPenalty = 0.08

	autoThreshold    = 0.82
	suggestThreshold = 0.62

	// amount tolerance: scores fade linearly and cut off at 150 cents
	maxDeltaCents   = 150
	amountFadeCents = 165.0
)

var transferKeywords = []string{"PIX", "TED", "DOC", "TRANSFER", "ENVIADO", "RECEBIDO"}

// Suggestion is a near-match the user should review. It is persisted with
// the batch but never applied automatically.
type Suggestion struct {
	FromAccountID          uuid.UUID `json:"fromAccountId"`
	ToAccountID            uuid.UUID `json:"toAccountId"`
	AmountCents            int64     `json:"amountCents"`
	Date                   string    `json:"date"`
	Confidence             float64   `json:"confidence"`
	Description            string    `json:"description"`
	CounterpartDescription string    `json:"counterpartDescription"`
}

// Result carries the matcher outcome for one window pass.
type Result struct {
	Created     int
	Suggestions []Suggestion
}

// Match scans the user's entries posted in [from, to], links auto-matched
// pairs in place and collects suggestions. It runs inside the commit
// transaction.
func Match(db *gorm.DB, userID uuid.UUID, from, to time.Time) (Result, error) {
	result := Result{}

	transactions, err := models.TransactionsInWindow(db, userID, from, to)
	if err != nil {
		return result, err
	}

	accounts, err := models.AccountsForUser(db, userID)
	if err != nil {
		return result, err
	}
	accountNames := make(map[uuid.UUID]string, len(accounts))
	for _, account := range accounts {
		accountNames[account.ID] = account.Name
	}

	var outgoing, incoming []*models.Transaction
	for i := range transactions {
		t := &transactions[i]
		if !eligible(t) {
			continue
		}
		if t.AmountCents < 0 {
			outgoing = append(outgoing, t)
		} else {
			incoming = append(incoming, t)
		}
	}

	matched := make(map[uuid.UUID]bool)
	for _, out := range outgoing {
		best, bestScore := bestCandidate(out, incoming, matched)
		if best == nil {
			continue
		}

		delta := out.AmountCents + best.AmountCents
		if delta < 0 {
			delta = -delta
		}

		switch {
		case bestScore >= autoThreshold && delta == 0:
			if err := link(db, out, best, accountNames); err != nil {
				return result, err
			}
			matched[best.ID] = true
			result.Created++
		case bestScore >= suggestThreshold && delta <= maxDeltaCents:
			result.Suggestions = append(result.Suggestions, Suggestion{
				FromAccountID:          out.AccountID,
				ToAccountID:            best.AccountID,
				AmountCents:            -out.AmountCents,
				Date:                   out.PostedAt.Format("2006-01-02"),
				Confidence:             bestScore,
				Description:            out.Description,
				CounterpartDescription: best.Description,
			})
		}
	}

	return result, nil
}

// eligible filters out entries that are already linked and card payments,
// which the dedicated router owns.
func eligible(t *models.Transaction) bool {
	if t.TransferGroupID != nil || t.Type == models.TransactionTransfer {
		return false
	}
	return !cardpay.IsCardPayment(t.NormalizedDescription)
}

func bestCandidate(out *models.Transaction, incoming []*models.Transaction, matched map[uuid.UUID]bool) (*models.Transaction, float64) {
	var best *models.Transaction
	bestScore := 0.0

	for _, in := range incoming {
		if matched[in.ID] || in.AccountID == out.AccountID {
			continue
		}

		score, ok := Score(out, in)
		if ok && score > bestScore {
			best, bestScore = in, score
		}
	}

	return best, bestScore
}

// Score rates one outgoing/incoming pair. The bool is false when the pair
// is outside the amount or date window.
func Score(out, in *models.Transaction) (float64, bool) {
	delta := out.AmountCents + in.AmountCents
	if delta < 0 {
		delta = -delta
	}
	if delta > maxDeltaCents {
		return 0, false
	}
	amountScore := 1 - float64(delta)/amountFadeCents

	windowDays := 1
	if containsAny(out.NormalizedDescription, "TED", "DOC") || containsAny(in.NormalizedDescription, "TED", "DOC") {
		windowDays = 3
	}

	deltaMs := out.PostedAt.Sub(in.PostedAt).Milliseconds()
	if deltaMs < 0 {
		deltaMs = -deltaMs
	}
	dayMs := (24 * time.Hour).Milliseconds()
	if deltaMs > int64(windowDays)*dayMs {
		return 0, false
	}
	dateScore := 1 - float64(deltaMs)/float64(int64(windowDays+1)*dayMs)
	if dateScore < 0 {
		dateScore = 0
	}

	keywordScore := 0.45
	if containsAny(out.NormalizedDescription, transferKeywords...) || containsAny(in.NormalizedDescription, transferKeywords...) {
		keywordScore = 1
	}

	textScore := jaccard(tokens(out.NormalizedDescription), tokens(in.NormalizedDescription))

	score := weightAmount*amountScore + weightDate*dateScore + weightKeyword*keywordScore + weightText*textScore

	outKey := normalize.MerchantKey(out.Description)
	inKey := normalize.MerchantKey(in.Description)
	if outKey != normalize.MerchantKeyNone && inKey != normalize.MerchantKeyNone && outKey != inKey {
		score -= merchantPenalty
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return score, true
}

// link writes both legs as one transfer pair and rewrites their
// descriptions to the canonical transfer form.
func link(db *gorm.DB, out, in *models.Transaction, accountNames map[uuid.UUID]string) error {
	groupID := uuid.New()

	description := fmt.Sprintf("TRANSFER: %s -> %s",
		normalize.ForMatch(accountNames[out.AccountID]),
		normalize.ForMatch(accountNames[in.AccountID]))

	for _, leg := range []*models.Transaction{out, in} {
		leg.Type = models.TransactionTransfer
		leg.TransferGroupID = &groupID
		leg.TransferFromAccountID = &out.AccountID
		leg.TransferToAccountID = &in.AccountID
		leg.Description = description
		leg.NormalizedDescription = normalize.ForMatch(description)
	}
	out.TransferPeerID = &in.ID
	in.TransferPeerID = &out.ID

	if err := db.Save(out).Error; err != nil {
		return err
	}
	return db.Save(in).Error
}

func containsAny(s string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}

func tokens(normalized string) map[string]bool {
	set := map[string]bool{}
	for _, token := range strings.Fields(normalized) {
		if len(token) >= 3 {
			set[token] = true
		}
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for token := range a {
		if b[token] {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}
