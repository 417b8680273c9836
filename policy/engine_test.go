package policy

import (
	"context"
	"testing"
)

func TestDefaultPolicyAllows(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, _, err := engine.Evaluate(ctx, map[string]any{
		"tool_name":   "search_shop_catalog",
		"args":        map[string]any{"query": "shoes"},
		"customer_id": "cust_1",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "allow" {
		t.Fatalf("expected allow, got %q", decision)
	}
}

func TestDefaultPolicyBlocksOversizedQuantity(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, _, err := engine.Evaluate(ctx, map[string]any{
		"tool_name": "update_cart",
		"args": map[string]any{
			"items": []any{
				map[string]any{"variantId": "v1", "quantity": 2},
				map[string]any{"variantId": "v2", "quantity": 250},
			},
		},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "block" {
		t.Fatalf("expected block, got %q", decision)
	}
}

func TestCustomPolicyWithReason(t *testing.T) {
	const module = `
package shopchat.tools

default decision := {"decision": "allow"}

decision := {"decision": "block", "reason": "guests cannot modify carts"} if {
	input.tool_name == "update_cart"
	input.customer_id == ""
}
`
	ctx := context.Background()
	engine, err := NewEngine(ctx, module)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	decision, reason, err := engine.Evaluate(ctx, map[string]any{
		"tool_name":   "update_cart",
		"args":        map[string]any{},
		"customer_id": "",
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "block" {
		t.Fatalf("expected block, got %q", decision)
	}
	if reason != "guests cannot modify carts" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestInvalidPolicyRejected(t *testing.T) {
	_, err := NewEngine(context.Background(), "this is not rego")
	if err == nil {
		t.Fatalf("expected error for invalid policy content")
	}
}
