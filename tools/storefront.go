package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StorefrontClient queries a shop's storefront GraphQL endpoint for catalog
// and policy data. Cart and order operations are extension points: the
// backend capability may be absent, so they return documented placeholder
// results instead of failing.
type StorefrontClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewStorefrontClient creates a client for one shop's storefront API.
// shopDomain is the fully-qualified store domain; apiVersion selects the
// GraphQL endpoint version.
func NewStorefrontClient(shopDomain, token, apiVersion string, timeout time.Duration) *StorefrontClient {
	return &StorefrontClient{
		baseURL:    fmt.Sprintf("https://%s/api/%s/graphql.json", shopDomain, apiVersion),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewStorefrontClientURL creates a client against an explicit endpoint URL
// (used by tests against a local server).
func NewStorefrontClientURL(endpoint, token string, timeout time.Duration) *StorefrontClient {
	return &StorefrontClient{
		baseURL:    endpoint,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Product is one catalog search hit.
type Product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Handle    string `json:"handle,omitempty"`
	Price     string `json:"price"`
	Currency  string `json:"currency"`
	Image     string `json:"image,omitempty"`
	VariantID string `json:"variantId,omitempty"`
}

// Policy is one shop policy or FAQ entry.
type Policy struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

const searchProductsQuery = `
query searchProducts($query: String!) {
  products(first: 10, query: $query) {
    edges {
      node {
        id
        title
        handle
        priceRange { minVariantPrice { amount currencyCode } }
        images(first: 1) { edges { node { url } } }
        variants(first: 1) { edges { node { id } } }
      }
    }
  }
}`

const shopPoliciesQuery = `
query {
  shop {
    privacyPolicy { title body }
    refundPolicy { title body }
    termsOfService { title body }
    shippingPolicy { title body }
  }
}`

// SearchCatalog runs a free-text product search and returns ranked summaries.
func (c *StorefrontClient) SearchCatalog(ctx context.Context, query string) (map[string]any, error) {
	var resp struct {
		Products struct {
			Edges []struct {
				Node struct {
					ID         string `json:"id"`
					Title      string `json:"title"`
					Handle     string `json:"handle"`
					PriceRange struct {
						MinVariantPrice struct {
							Amount       string `json:"amount"`
							CurrencyCode string `json:"currencyCode"`
						} `json:"minVariantPrice"`
					} `json:"priceRange"`
					Images struct {
						Edges []struct {
							Node struct {
								URL string `json:"url"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"images"`
					Variants struct {
						Edges []struct {
							Node struct {
								ID string `json:"id"`
							} `json:"node"`
						} `json:"edges"`
					} `json:"variants"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}
	if err := c.graphql(ctx, searchProductsQuery, map[string]any{"query": query}, &resp); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(resp.Products.Edges))
	for _, edge := range resp.Products.Edges {
		p := Product{
			ID:       edge.Node.ID,
			Title:    edge.Node.Title,
			Handle:   edge.Node.Handle,
			Price:    edge.Node.PriceRange.MinVariantPrice.Amount,
			Currency: edge.Node.PriceRange.MinVariantPrice.CurrencyCode,
		}
		if len(edge.Node.Images.Edges) > 0 {
			p.Image = edge.Node.Images.Edges[0].Node.URL
		}
		if len(edge.Node.Variants.Edges) > 0 {
			p.VariantID = edge.Node.Variants.Edges[0].Node.ID
		}
		products = append(products, p)
	}
	return map[string]any{"products": products}, nil
}

// SearchPolicies retrieves the shop's policies and matches query against
// title and content. When nothing matches, all policies are returned rather
// than an empty list, so the model always has material to answer from.
func (c *StorefrontClient) SearchPolicies(ctx context.Context, query string) (map[string]any, error) {
	var resp struct {
		Shop map[string]*struct {
			Title string `json:"title"`
			Body  string `json:"body"`
		} `json:"shop"`
	}
	if err := c.graphql(ctx, shopPoliciesQuery, nil, &resp); err != nil {
		return nil, err
	}

	kinds := []struct{ field, typ string }{
		{"privacyPolicy", "privacy"},
		{"refundPolicy", "refund"},
		{"termsOfService", "terms"},
		{"shippingPolicy", "shipping"},
	}
	var policies []Policy
	for _, k := range kinds {
		p := resp.Shop[k.field]
		if p == nil || p.Body == "" {
			continue
		}
		policies = append(policies, Policy{Type: k.typ, Title: p.Title, Content: p.Body})
	}

	q := strings.ToLower(query)
	var matched []Policy
	for _, p := range policies {
		if strings.Contains(strings.ToLower(p.Content), q) || strings.Contains(strings.ToLower(p.Title), q) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		matched = policies
	}
	return map[string]any{"query": query, "policies": matched}, nil
}

// GetCart returns the cart projection. Cart reads need Storefront API cart
// support that is not wired yet, so this returns a placeholder shape.
func (c *StorefrontClient) GetCart(ctx context.Context, cartID string) (map[string]any, error) {
	if cartID == "" {
		cartID = "current"
	}
	return map[string]any{
		"cartId":   cartID,
		"items":    []any{},
		"total":    "0.00",
		"currency": "USD",
		"message":  "Cart functionality requires cart creation via the Storefront API",
	}, nil
}

// UpdateCart echoes the requested line items. Cart mutations need Storefront
// API cart support that is not wired yet.
func (c *StorefrontClient) UpdateCart(ctx context.Context, cartID string, items []any) (map[string]any, error) {
	if cartID == "" {
		cartID = "new"
	}
	return map[string]any{
		"cartId":  cartID,
		"items":   items,
		"message": "Cart update functionality requires Storefront API cart mutations",
	}, nil
}

// OrderStatus returns a "not yet available" sentinel; order lookup needs
// Customer Account API access the service does not hold.
func (c *StorefrontClient) OrderStatus(ctx context.Context, orderNumber, email string) (map[string]any, error) {
	if orderNumber == "" {
		orderNumber = "unknown"
	}
	if email == "" {
		email = "unknown"
	}
	return map[string]any{
		"orderNumber": orderNumber,
		"email":       email,
		"status":      "pending",
		"message":     "Order status checking requires Customer Account API access",
	}, nil
}

// graphql posts one query and decodes the data object into out.
func (c *StorefrontClient) graphql(ctx context.Context, query string, variables map[string]any, out any) error {
	payload := map[string]any{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to query storefront: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql errors: %s", envelope.Errors[0].Message)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
