// Package catalog provides the immutable product catalog loaded at startup.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Product is a single catalog record. Products are immutable once loaded.
type Product struct {
	ID          string
	Title       string
	Price       float64
	Rating      float64
	Categories  []string
	Features    []string
	Description string
}

// EmbeddingText returns the text a product is embedded from: title,
// description and features concatenated, matching what the index builder
// used at build time.
func (p Product) EmbeddingText() string {
	parts := []string{p.Title}
	if p.Description != "" {
		parts = append(parts, p.Description)
	}
	if len(p.Features) > 0 {
		parts = append(parts, strings.Join(p.Features, " "))
	}
	return strings.Join(parts, " ")
}

// Catalog is a read-only product set with identifier lookup.
type Catalog struct {
	products []Product
	byID     map[string]int
}

// New builds a catalog from records. Duplicate identifiers keep the first
// occurrence.
func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// All returns the product records in load order. Callers must not mutate
// the returned slice.
func (c *Catalog) All() []Product {
	return c.products
}

// Get returns the product with the given identifier.
func (c *Catalog) Get(id string) (Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[idx], true
}

// Fingerprint returns a stable digest of the catalog contents. Two catalogs
// with the same records produce the same fingerprint regardless of load
// order.
func (c *Catalog) Fingerprint() string {
	ids := make([]string, 0, len(c.products))
	for _, p := range c.products {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		p, _ := c.Get(id)
		fmt.Fprintf(h, "%s|%s|%.2f|%.2f|%s\n", p.ID, p.Title, p.Price, p.Rating, p.Description)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
