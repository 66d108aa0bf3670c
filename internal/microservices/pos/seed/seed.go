// Package seed loads a demo catalog of tables and products.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Product struct {
	Name  string          `yaml:"name"`
	Price decimal.Decimal `yaml:"price"`
	Stock int             `yaml:"stock"`
}

type Catalog struct {
	Tables   []int     `yaml:"tables"`
	Products []Product `yaml:"products"`
}

// Result counts what a run inserted. Existing tables and products, matched
// by number and name, are left alone.
type Result struct {
	Tables   int
	Products int
}

func Default() (Catalog, error) {
	return Parse(defaultCatalog)
}

func Parse(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	for _, p := range c.Products {
		if p.Name == "" || p.Price.IsNegative() || p.Stock < 0 {
			return Catalog{}, fmt.Errorf("%w: bad catalog product %+v", domain.ErrInvalidInput, p)
		}
	}
	return c, nil
}

// Load inserts whatever part of the catalog is missing and can be run
// repeatedly. Statements run one by one: a duplicate table number must not
// abort the rest of the load.
func Load(ctx context.Context, store repository.Store, c Catalog) (Result, error) {
	var res Result
	q := store.Read()
	now := time.Now().UTC()

	existing, err := q.ListTables(ctx)
	if err != nil {
		return res, err
	}
	haveTable := make(map[int]bool, len(existing))
	for _, t := range existing {
		haveTable[t.Number] = true
	}
	for _, n := range c.Tables {
		if haveTable[n] {
			continue
		}
		err := q.InsertTable(ctx, domain.Table{ID: id.New(id.PrefixTable), Number: n, IsActive: true, CreatedAt: now})
		if errors.Is(err, domain.ErrInvalidInput) {
			// archived table with that number
			continue
		}
		if err != nil {
			return res, err
		}
		haveTable[n] = true
		res.Tables++
	}

	products, err := q.ListProducts(ctx)
	if err != nil {
		return res, err
	}
	haveProduct := make(map[string]bool, len(products))
	for _, p := range products {
		haveProduct[p.Name] = true
	}
	for _, p := range c.Products {
		if haveProduct[p.Name] {
			continue
		}
		err := q.InsertProduct(ctx, domain.Product{
			ID: id.New(id.PrefixProduct), Name: p.Name, Price: p.Price, Stock: p.Stock,
			IsActive: true, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return res, err
		}
		haveProduct[p.Name] = true
		res.Products++
	}
	return res, nil
}

// Run loads the embedded demo catalog.
func Run(ctx context.Context, store repository.Store, lg *logger.Logger) error {
	c, err := Default()
	if err != nil {
		return err
	}
	res, err := Load(ctx, store, c)
	if err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}
	lg.Info("catalog_seeded", map[string]any{"tables": res.Tables, "products": res.Products})
	return nil
}
