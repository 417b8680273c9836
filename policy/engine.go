// Package policy evaluates merchant guardrails before a tool call executes.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.shopchat.tools.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks one tool call against the policy. Input carries tool_name,
// args and customer_id. Returns the decision ("allow" or "block") and an
// optional reason.
func (e *Engine) Evaluate(ctx context.Context, input map[string]any) (string, string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "allow", "default", nil
	}

	val := results[0].Expressions[0].Value
	switch v := val.(type) {
	case string:
		return v, "", nil
	case map[string]any:
		decision, _ := v["decision"].(string)
		reason, _ := v["reason"].(string)
		if decision == "" {
			decision = "allow"
		}
		return decision, reason, nil
	}
	return "allow", "", nil
}

// DefaultPolicy allows every tool call, except cart updates with an absurd
// line quantity. Merchants can ship their own module to tighten this.
const DefaultPolicy = `
package shopchat.tools

default decision := "allow"

decision := "block" if {
	input.tool_name == "update_cart"
	some i
	input.args.items[i].quantity > 100
}
`
