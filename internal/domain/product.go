package domain

// Product represents a product in the catalog mirror. The backend owns it;
// the client only ever replaces its copy with a full-list fetch.
type Product struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Price         int64  `json:"price"`
	Category      string `json:"category"`
	Image         string `json:"image"`
	StockQuantity int    `json:"stock_quantity"`
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// ProductIndex maps product ids to products for lookups during reconciliation
func ProductIndex(products []Product) map[string]Product {
	index := make(map[string]Product, len(products))
	for _, p := range products {
		index[p.ID] = p
	}
	return index
}
