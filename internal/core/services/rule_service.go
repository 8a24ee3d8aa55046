package services

import (
	"context"
	"log"

	"splitsub/internal/adapters/persistence/repositories"
	"splitsub/internal/core/domain"
)

// RuleService manages owner-configured auto-approve rule sets
type RuleService struct {
	ruleRepo repositories.RuleRepository
	poolRepo repositories.PoolRepository
}

// NewRuleService creates a new rule service
func NewRuleService(ruleRepo repositories.RuleRepository, poolRepo repositories.PoolRepository) *RuleService {
	return &RuleService{
		ruleRepo: ruleRepo,
		poolRepo: poolRepo,
	}
}

// RuleInput is one rule row in an update request, flattened for transport
type RuleInput struct {
	Kind    string  `json:"kind" validate:"required"`
	Value   float64 `json:"value"`
	Enabled bool    `json:"enabled"`
}

// RuleView is one rule row in a response
type RuleView struct {
	Kind    string  `json:"kind"`
	Value   float64 `json:"value"`
	Enabled bool    `json:"enabled"`
}

// GetRuleSet returns the pool's rule set as flattened views, in order
func (s *RuleService) GetRuleSet(ctx context.Context, poolID uint) ([]RuleView, error) {
	if _, err := s.poolRepo.GetByID(ctx, poolID); err != nil {
		return nil, err
	}
	rs, err := s.ruleRepo.GetByPool(ctx, poolID)
	if err != nil {
		return nil, err
	}

	views := make([]RuleView, 0, len(rs.Rules))
	for _, t := range rs.Rules {
		kind, value := domain.EncodeRule(t.Rule)
		views = append(views, RuleView{Kind: string(kind), Value: value, Enabled: t.Enabled})
	}
	return views, nil
}

// UpdateRuleSet replaces the pool's rule set. Owner-only.
func (s *RuleService) UpdateRuleSet(ctx context.Context, ownerID, poolID uint, inputs []RuleInput) error {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return err
	}
	if pool.OwnerID != ownerID {
		return domain.ErrForbidden
	}

	toggles := make([]domain.RuleToggle, 0, len(inputs))
	for _, in := range inputs {
		rule, err := domain.DecodeRule(domain.RuleKind(in.Kind), in.Value)
		if err != nil {
			return err
		}
		toggles = append(toggles, domain.RuleToggle{Rule: rule, Enabled: in.Enabled})
	}

	if err := s.ruleRepo.Replace(ctx, poolID, toggles); err != nil {
		return err
	}
	log.Printf("⚙️ Rule set replaced for pool %d (%d rules)", poolID, len(toggles))
	return nil
}

// Preview evaluates the pool's rule set against a profile without touching
// membership state. Safe to call concurrently and speculatively.
func (s *RuleService) Preview(ctx context.Context, poolID uint, profile domain.RequesterProfile) (domain.Decision, error) {
	if _, err := s.poolRepo.GetByID(ctx, poolID); err != nil {
		return "", err
	}
	rs, err := s.ruleRepo.GetByPool(ctx, poolID)
	if err != nil {
		return "", err
	}
	return rs.Evaluate(profile), nil
}
