package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xiaot623/shopchat/domain"
	"github.com/xiaot623/shopchat/policy"
)

// ErrUnknownTool is returned for names outside the catalog. The caller maps
// it to a tool_error event; it never fails the turn.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolExecution wraps backend failures for a single tool call.
var ErrToolExecution = errors.New("tool execution failed")

// readOnlyTools are idempotent lookups that may be retried once on failure.
// Mutating tools (update_cart) are never retried automatically.
var readOnlyTools = map[string]bool{
	ToolSearchCatalog:  true,
	ToolSearchPolicies: true,
	ToolOrderStatus:    true,
}

// Executor executes catalog tool calls for one shop against its commerce
// backend, applying the guardrail policy first.
type Executor struct {
	client     *StorefrontClient
	engine     *policy.Engine
	timeout    time.Duration
	customerID string
	logger     *slog.Logger
}

// NewExecutor creates an executor bound to one shop's storefront client.
// engine may be nil, in which case every call is allowed.
func NewExecutor(client *StorefrontClient, engine *policy.Engine, timeout time.Duration, customerID string, logger *slog.Logger) *Executor {
	return &Executor{
		client:     client,
		engine:     engine,
		timeout:    timeout,
		customerID: customerID,
		logger:     logger,
	}
}

// Catalog exposes the tool declarations for the completion request.
func (e *Executor) Catalog() []domain.ToolDeclaration {
	return Catalog()
}

// Execute runs one named tool call and returns its JSON-serializable result.
// Unknown names fail with ErrUnknownTool; backend and policy failures with
// ErrToolExecution. Per-call failures are the caller's to convert into
// tool_error events; they must not abort the turn.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	if e.engine != nil {
		decision, reason, err := e.engine.Evaluate(ctx, map[string]any{
			"tool_name":   name,
			"args":        args,
			"customer_id": e.customerID,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: policy evaluation: %v", ErrToolExecution, err)
		}
		if decision == "block" {
			if reason == "" {
				reason = "blocked by store policy"
			}
			e.logger.Warn("tool call blocked by policy", "tool", name, "reason", reason)
			return nil, fmt.Errorf("%w: %s: %s", ErrToolExecution, name, reason)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	result, err := e.dispatch(ctx, name, args)
	if err != nil && readOnlyTools[name] && ctx.Err() == nil {
		e.logger.Warn("retrying read-only tool call", "tool", name, "error", err)
		result, err = e.dispatch(ctx, name, args)
	}
	if errors.Is(err, ErrUnknownTool) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrToolExecution, name, err)
	}
	return result, nil
}

func (e *Executor) dispatch(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ToolSearchCatalog:
		return e.client.SearchCatalog(ctx, stringArg(args, "query"))
	case ToolGetCart:
		return e.client.GetCart(ctx, stringArg(args, "cartId"))
	case ToolUpdateCart:
		items, _ := args["items"].([]any)
		return e.client.UpdateCart(ctx, stringArg(args, "cartId"), items)
	case ToolSearchPolicies:
		return e.client.SearchPolicies(ctx, stringArg(args, "query"))
	case ToolOrderStatus:
		return e.client.OrderStatus(ctx, stringArg(args, "orderNumber"), stringArg(args, "email"))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}
