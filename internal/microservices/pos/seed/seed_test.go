package seed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

func newRepo(t *testing.T) *repository.Repository {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "seed.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.ApplySchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return repository.New(conn)
}

func TestDefaultCatalogParses(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if len(c.Tables) == 0 || len(c.Products) == 0 {
		t.Fatalf("catalog is empty: %+v", c)
	}
	for _, p := range c.Products {
		if !p.Price.IsPositive() {
			t.Errorf("%s has price %s", p.Name, p.Price)
		}
	}
}

func TestParseRejectsBadProducts(t *testing.T) {
	_, err := Parse([]byte("products:\n  - name: Soup\n    price: \"-1\"\n    stock: 3\n"))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if _, err := Parse([]byte("tables: [one")); err == nil {
		t.Fatal("malformed yaml parsed")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	c := Catalog{
		Tables: []int{1, 2},
		Products: []Product{
			{Name: "Soup", Price: decimal.RequireFromString("12.50"), Stock: 4},
			{Name: "Tea", Price: decimal.RequireFromString("3"), Stock: 10},
		},
	}

	res, err := Load(ctx, repo, c)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if res.Tables != 2 || res.Products != 2 {
		t.Errorf("first load = %+v, want 2 tables and 2 products", res)
	}

	c.Tables = append(c.Tables, 3)
	res, err = Load(ctx, repo, c)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if res.Tables != 1 || res.Products != 0 {
		t.Errorf("second load = %+v, want only table 3", res)
	}

	products, err := repo.Read().ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 || products[0].Name != "Soup" || products[0].Stock != 4 {
		t.Errorf("products = %+v", products)
	}
}

func TestRunSeedsDefaultCatalog(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if err := Run(ctx, repo, logger.Nop()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	c, _ := Default()
	tables, err := repo.Read().ListTables(ctx)
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != len(c.Tables) {
		t.Errorf("tables = %d, want %d", len(tables), len(c.Tables))
	}
}
