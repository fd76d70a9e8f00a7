package store

import (
	"context"
	"fmt"
)

// Product is one catalogue entry. Prices are GST-exclusive minor units.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  int64  `json:"price_cents"`
}

// ListProducts returns the active catalogue in display order.
func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.pool.QueryContext(ctx, `
		SELECT id, name, description, price_cents
		FROM products
		WHERE active
		ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents); err != nil {
			return nil, fmt.Errorf("store: scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list products: %w", err)
	}
	return products, nil
}

// GetProduct returns one catalogue entry by id. sql.ErrNoRows passes through
// unchanged so callers can errors.Is on it.
func (s *Store) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := s.pool.QueryRowContext(ctx, `
		SELECT id, name, description, price_cents
		FROM products
		WHERE id = $1 AND active`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}
