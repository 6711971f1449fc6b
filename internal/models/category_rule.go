package models

import (
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RuleMatchType selects how a rule pattern is evaluated.
type RuleMatchType string

const (
	RuleMatchContains RuleMatchType = "contains"
	RuleMatchRegex    RuleMatchType = "regex"
)

// CategoryRule assigns a category to imported entries whose text matches
// the pattern. Rules are evaluated in ascending priority, ties broken by
// creation order; the first match wins.
type CategoryRule struct {
	DefaultModel
	UserID         uuid.UUID `gorm:"index"`
	Name           string
	Priority       uint
	Enabled        bool
	MatchType      RuleMatchType `gorm:"type:text"`
	Pattern        string
	AccountID      *uuid.UUID
	MinAmountCents *int64
	MaxAmountCents *int64
	CategoryID     uuid.UUID
}

var (
	ErrRuleMatchTypeInvalid = errors.New("the rule match type must be contains or regex")
	ErrRulePatternInvalid   = errors.New("the rule pattern does not compile")
	ErrRulePatternEmpty     = errors.New("the rule pattern must not be empty")
)

// BeforeSave validates the pattern. Regex patterns are compiled
// case-insensitively so that a bad pattern fails at rule creation,
// not during an import commit.
func (r *CategoryRule) BeforeSave(_ *gorm.DB) error {
	r.Pattern = strings.TrimSpace(r.Pattern)
	if r.Pattern == "" {
		return ErrRulePatternEmpty
	}

	switch r.MatchType {
	case RuleMatchContains:
	case RuleMatchRegex:
		if _, err := regexp.Compile("(?i)" + r.Pattern); err != nil {
			return ErrRulePatternInvalid
		}
	default:
		return ErrRuleMatchTypeInvalid
	}

	return nil
}

// RulesForUser returns all rules of the user in evaluation order.
func RulesForUser(db *gorm.DB, userID uuid.UUID) ([]CategoryRule, error) {
	var rules []CategoryRule
	err := db.Where(&CategoryRule{UserID: userID}).
		Order("priority asc").
		Order("created_at asc").
		Find(&rules).Error
	return rules, err
}

// RuleForUser returns the rule with the given ID if the user owns it.
func RuleForUser(db *gorm.DB, userID, id uuid.UUID) (CategoryRule, error) {
	var rule CategoryRule
	err := db.First(&rule, "id = ? AND user_id = ?", id, userID).Error
	return rule, err
}
