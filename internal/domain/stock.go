package domain

// StockItem is the per-category availability view. It is derived from the
// device table and never persisted except as a cache snapshot.
type StockItem struct {
	ID                     string `json:"id"`
	Name                   string `json:"name"`
	Total                  int    `json:"total"`
	Rented                 int    `json:"rented"`
	Available              int    `json:"available"`
	LowStockAlert          int    `json:"low_stock_alert"`
	LowStock               bool   `json:"low_stock"`
	MaxControllers         int    `json:"max_controllers"`
	ExtraControllerEnabled bool   `json:"extra_controller_enabled"`
}

// CategoryInfo is catalog metadata for a stock category.
type CategoryInfo struct {
	Name                   string
	LowStockAlert          int
	MaxControllers         int
	ExtraControllerEnabled bool
}

const (
	DefaultLowStockAlert  = 2
	DefaultMaxControllers = 2
)

// Catalog maps normalized category keys to their metadata.
type Catalog map[string]CategoryInfo

// Lookup returns the metadata for key, falling back to defaults named after raw.
func (c Catalog) Lookup(key, raw string) CategoryInfo {
	if info, ok := c[key]; ok {
		if info.Name == "" {
			info.Name = raw
		}
		return info
	}
	return CategoryInfo{
		Name:           raw,
		LowStockAlert:  DefaultLowStockAlert,
		MaxControllers: DefaultMaxControllers,
	}
}

// Eligibility is the rental gate verdict. A denial is a normal result, not an error.
type Eligibility struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}
