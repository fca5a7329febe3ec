package feedback

import (
	"context"
	"fmt"
	"sort"
)

// ActionOutcome is the result of one Apply call.
type ActionOutcome struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
}

// AdaptationAction is a registered, re-appliable remediation associated
// with a specific metric violation. Apply may block (a real remediation
// may resize a pool or call an external system); it reports failure
// through the returned outcome and must never panic out — the catalog
// recovers panics into failed outcomes regardless.
type AdaptationAction interface {
	Name() string
	TargetMetric() string
	EstimatedImpact() float64
	Apply(ctx context.Context) ActionOutcome
}

// ActionFunc builds an AdaptationAction from a closure.
type ActionFunc struct {
	ActionName string
	Metric     string
	Impact     float64
	Fn         func(ctx context.Context) error
}

func (a ActionFunc) Name() string             { return a.ActionName }
func (a ActionFunc) TargetMetric() string     { return a.Metric }
func (a ActionFunc) EstimatedImpact() float64 { return a.Impact }

func (a ActionFunc) Apply(ctx context.Context) ActionOutcome {
	if err := a.Fn(ctx); err != nil {
		appErr := &ActionApplicationError{Action: a.ActionName, Cause: err}
		return ActionOutcome{Action: a.ActionName, Success: false, Detail: appErr.Error()}
	}
	return ActionOutcome{Action: a.ActionName, Success: true, Detail: "applied"}
}

type catalogKey struct {
	domain string
	metric string
}

// Catalog maps (domain, metric) pairs to candidate corrective actions.
// It is populated through a CatalogBuilder and read-only afterwards, so
// it is safely shared across all loops.
type Catalog struct {
	actions map[catalogKey][]AdaptationAction
}

// CatalogBuilder accumulates action registrations. Registration order is
// preserved per (domain, metric) key, which keeps selection deterministic.
type CatalogBuilder struct {
	actions map[catalogKey][]AdaptationAction
}

// NewCatalogBuilder creates an empty builder.
func NewCatalogBuilder() *CatalogBuilder {
	return &CatalogBuilder{actions: make(map[catalogKey][]AdaptationAction)}
}

// Register adds an action for a domain, keyed by the action's target metric.
func (b *CatalogBuilder) Register(domain string, action AdaptationAction) *CatalogBuilder {
	key := catalogKey{domain: domain, metric: action.TargetMetric()}
	b.actions[key] = append(b.actions[key], action)
	return b
}

// Build freezes the registrations into an immutable catalog.
func (b *CatalogBuilder) Build() *Catalog {
	frozen := make(map[catalogKey][]AdaptationAction, len(b.actions))
	for key, list := range b.actions {
		frozen[key] = append([]AdaptationAction(nil), list...)
	}
	return &Catalog{actions: frozen}
}

// ActionsFor returns the registered actions for one violation. An empty
// slice, not an error, means nothing is registered: the loop controller
// logs and continues.
func (c *Catalog) ActionsFor(domain string, violation Violation) []AdaptationAction {
	if c == nil {
		return nil
	}
	return c.actions[catalogKey{domain: domain, metric: violation.Metric}]
}

// PlanActions gathers candidate actions for every violation, ordered by
// severity descending; within equal severity the violation order and the
// per-metric registration order are preserved.
func (c *Catalog) PlanActions(domain string, violations []Violation) []AdaptationAction {
	ordered := append([]Violation(nil), violations...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity > ordered[j].Severity
	})

	var plan []AdaptationAction
	for _, v := range ordered {
		plan = append(plan, c.ActionsFor(domain, v)...)
	}
	return plan
}

// safeApply runs one action and converts any panic into a failed outcome.
func safeApply(ctx context.Context, action AdaptationAction) (outcome ActionOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = ActionOutcome{
				Action:  action.Name(),
				Success: false,
				Detail:  fmt.Sprintf("action %q panicked: %v", action.Name(), r),
			}
		}
	}()
	return action.Apply(ctx)
}
