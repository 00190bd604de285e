package company

import (
	"fmt"

	"rewards-controlplane/pkg/celengine"
)

// PolicyAttributes is the variable set a reward policy is evaluated against.
func PolicyAttributes(c *Company, cost int64, category string) map[string]any {
	allowed := c.Settings.Data().AllowedCategories
	if allowed == nil {
		allowed = []string{}
	}
	return map[string]any{
		"cost":           cost,
		"category":       category,
		"allowed":        allowed,
		"monthly_budget": c.MonthlyBudget,
	}
}

// ValidatePolicy compiles expr against the policy variable set.
func ValidatePolicy(expr string) error {
	if expr == "" {
		return nil
	}
	env, err := celengine.GetOrBuildEnv(PolicyAttributes(&Company{}, 0, ""))
	if err != nil {
		return err
	}
	return celengine.ValidateExpression(env, expr)
}

// Allows reports whether a package of cost and category passes the company
// policy. Categories outside a non-empty allow list are always rejected.
func (c *Company) Allows(cost int64, category string) (bool, error) {
	settings := c.Settings.Data()
	if len(settings.AllowedCategories) > 0 {
		found := false
		for _, a := range settings.AllowedCategories {
			if a == category {
				found = true
				break
			}
		}
		if !found {
			return false, nil
		}
	}

	if settings.RewardPolicy == "" {
		return true, nil
	}

	ok, err := celengine.EvaluateAttrs(settings.RewardPolicy, PolicyAttributes(c, cost, category))
	if err != nil {
		return false, fmt.Errorf("evaluate reward policy: %w", err)
	}
	return ok, nil
}
