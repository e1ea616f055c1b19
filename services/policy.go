package services

import (
	"context"
	"fmt"

	"github.com/pilab-dev/shadow-uma/config"
	"github.com/pilab-dev/shadow-uma/domain"
	serrors "github.com/pilab-dev/shadow-uma/errors"
	"github.com/pilab-dev/shadow-uma/internal/metrics"
)

// PolicyDecision is the outcome of evaluating one ticket line. Denials carry
// the union of claim types the rules asked for but were not presented, so
// the requesting party can gather them and retry.
type PolicyDecision struct {
	Allowed       bool
	MissingClaims []string
	Reason        string
}

// PolicyEvaluator adjudicates a single ticket line against a resource set.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, in PolicyInput) (*PolicyDecision, error)
}

// PolicyInput carries everything one evaluation needs.
type PolicyInput struct {
	Resource    *domain.ResourceSet
	Line        domain.TicketLine
	ClientID    string
	RequesterID string
	Claims      map[string]string

	// OwnerApproved substitutes for a stored consent record on rules that
	// require consent.
	OwnerApproved bool
}

// PolicyService evaluates resource-set policy rules. Rules on a resource
// set are disjunctive: any single rule that fully covers the line grants
// it. A resource set without rules falls back to the configured default.
type PolicyService struct {
	cfg      *config.EngineConfig
	consents domain.ConsentRepository
}

// NewPolicyService creates a PolicyService.
func NewPolicyService(cfg *config.EngineConfig, consents domain.ConsentRepository) *PolicyService {
	return &PolicyService{
		cfg:      cfg,
		consents: consents,
	}
}

// Evaluate implements PolicyEvaluator.
func (p *PolicyService) Evaluate(ctx context.Context, in PolicyInput) (*PolicyDecision, error) {
	for _, s := range in.Line.Scopes {
		if !containsScope(in.Resource.Scopes, s) {
			return &PolicyDecision{
				Reason: fmt.Sprintf("resource set %s does not expose scope %q", in.Resource.ID, s),
			}, nil
		}
	}

	if len(in.Resource.Rules) == 0 {
		if p.cfg.DefaultPolicyOpen {
			return &PolicyDecision{Allowed: true}, nil
		}
		metrics.PolicyDenialsTotal.Inc()
		return &PolicyDecision{Reason: "no policy grants access to this resource"}, nil
	}

	missing := make(map[string]struct{})
	for _, rule := range in.Resource.Rules {
		decision, err := p.evaluateRule(ctx, in, rule)
		if err != nil {
			return nil, err
		}
		if decision.Allowed {
			return decision, nil
		}
		for _, c := range decision.MissingClaims {
			missing[c] = struct{}{}
		}
	}

	metrics.PolicyDenialsTotal.Inc()
	denied := &PolicyDecision{Reason: "no policy grants the requested scopes"}
	for c := range missing {
		denied.MissingClaims = append(denied.MissingClaims, c)
	}
	return denied, nil
}

func (p *PolicyService) evaluateRule(ctx context.Context, in PolicyInput, rule domain.PolicyRule) (*PolicyDecision, error) {
	if len(rule.ClientIDsAllowed) > 0 {
		allowed := false
		for _, id := range rule.ClientIDsAllowed {
			if id == in.ClientID {
				allowed = true
				break
			}
		}
		if !allowed {
			return &PolicyDecision{Reason: "client not allowed by rule"}, nil
		}
	}
	for _, s := range in.Line.Scopes {
		if !containsScope(rule.Scopes, s) {
			return &PolicyDecision{Reason: "rule does not cover requested scopes"}, nil
		}
	}

	var missing []string
	for _, required := range rule.Claims {
		presented, ok := in.Claims[required.Type]
		if !ok {
			missing = append(missing, required.Type)
			continue
		}
		if required.Value != "" && presented != required.Value {
			return &PolicyDecision{Reason: fmt.Sprintf("claim %q does not match", required.Type)}, nil
		}
	}
	if len(missing) > 0 {
		return &PolicyDecision{MissingClaims: missing, Reason: "required claims not presented"}, nil
	}

	if rule.ConsentRequired && !in.OwnerApproved {
		ok, err := p.hasConsent(ctx, in)
		if err != nil {
			return nil, err
		}
		if !ok {
			return &PolicyDecision{Reason: "resource owner has not consented"}, nil
		}
	}

	return &PolicyDecision{Allowed: true}, nil
}

func (p *PolicyService) hasConsent(ctx context.Context, in PolicyInput) (bool, error) {
	if in.RequesterID == "" {
		return false, nil
	}
	consents, err := p.consents.GetConsentsForUser(ctx, in.Resource.OwnerID, in.RequesterID)
	if err != nil {
		return false, serrors.NewServerError("consent lookup failed")
	}
	for _, c := range consents {
		if c.Covers(in.Resource.ID, in.Line.Scopes) {
			return true, nil
		}
	}
	return false, nil
}
