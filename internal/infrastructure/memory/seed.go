package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/account"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/product"
)

// Seed is the fixture format used to populate the in-memory gateways.
type Seed struct {
	Accounts []SeedAccount      `json:"accounts"`
	Products []product.Snapshot `json:"products"`
}

type SeedAccount struct {
	ID     int64          `json:"id"`
	Status account.Status `json:"status"`
}

// DecodeSeed reads a seed document.
func DecodeSeed(r io.Reader) (Seed, error) {
	var s Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Seed{}, fmt.Errorf("memory: decode seed: %w", err)
	}
	for _, p := range s.Products {
		if p.ID <= 0 || p.StockQty < 0 {
			return Seed{}, fmt.Errorf("memory: invalid seed product %d", p.ID)
		}
	}
	return s, nil
}

// LoadSeedFile decodes the seed at path.
func LoadSeedFile(path string) (Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return Seed{}, fmt.Errorf("memory: open seed: %w", err)
	}
	defer f.Close()
	return DecodeSeed(f)
}

// Apply loads the seed into the given directory and catalog.
func (s Seed) Apply(accounts *AccountDirectory, products *ProductCatalog) {
	for _, a := range s.Accounts {
		accounts.Put(a.ID, a.Status)
	}
	for _, p := range s.Products {
		products.Put(p)
	}
}
