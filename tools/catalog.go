// Package tools declares the assistant's tool catalog and executes tool calls
// against the commerce backend.
package tools

import (
	"github.com/xiaot623/shopchat/domain"
)

// Tool names known to the catalog.
const (
	ToolSearchCatalog  = "search_shop_catalog"
	ToolGetCart        = "get_cart"
	ToolUpdateCart     = "update_cart"
	ToolSearchPolicies = "search_shop_policies_and_faqs"
	ToolOrderStatus    = "get_order_status"
)

// Catalog returns the tool declarations in a stable, deterministic order.
// The set is fixed at build time; callers look tools up by name, not position.
func Catalog() []domain.ToolDeclaration {
	return []domain.ToolDeclaration{
		{
			Name:        ToolSearchCatalog,
			Description: "Search the store's product catalog by natural language query. Returns products matching the search terms.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Natural language search query for products",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        ToolGetCart,
			Description: "Get the current shopping cart contents for the customer.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]any{
					"cartId": map[string]any{
						"type":        "string",
						"description": "Optional cart ID. If not provided, returns current session cart.",
					},
				},
			},
		},
		{
			Name:        ToolUpdateCart,
			Description: "Add, update, or remove items from the shopping cart.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]any{
					"cartId": map[string]any{
						"type":        "string",
						"description": "Optional cart ID. If not provided, uses current session cart.",
					},
					"items": map[string]any{
						"type":        "array",
						"description": "Array of cart items to add or update",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"variantId": map[string]any{"type": "string"},
								"quantity":  map[string]any{"type": "number"},
							},
						},
					},
				},
				Required: []string{"items"},
			},
		},
		{
			Name:        ToolSearchPolicies,
			Description: "Search store policies (shipping, returns, privacy) and FAQ content.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query for policies or FAQs",
					},
				},
				Required: []string{"query"},
			},
		},
		{
			Name:        ToolOrderStatus,
			Description: "Get order status and tracking information by order number or email.",
			InputSchema: domain.InputSchema{
				Type: "object",
				Properties: map[string]any{
					"orderNumber": map[string]any{
						"type":        "string",
						"description": "Order number (e.g., #1001)",
					},
					"email": map[string]any{
						"type":        "string",
						"description": "Customer email address",
					},
				},
			},
		},
	}
}
