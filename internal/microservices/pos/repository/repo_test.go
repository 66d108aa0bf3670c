package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/domain"
)

func openSQLite(t *testing.T) *db.Conn {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.ApplySchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// openPostgres runs against POS_TEST_DATABASE_URL inside a throwaway schema.
func openPostgres(t *testing.T) *db.Conn {
	t.Helper()
	url := os.Getenv("POS_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("POS_TEST_DATABASE_URL not set")
	}
	var suffix [4]byte
	_, _ = rand.Read(suffix[:])
	schema := "pos_test_" + hex.EncodeToString(suffix[:])

	admin, err := sql.Open("pgx", url)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}
	if _, err := admin.Exec(`CREATE SCHEMA ` + schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		_, _ = admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`)
		_ = admin.Close()
	})

	cfg, err := pgx.ParseConfig(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	cfg.RuntimeParams["search_path"] = schema
	conn := &db.Conn{DB: stdlib.OpenDB(*cfg), Dialect: db.Postgres}
	if err := conn.ApplySchema(context.Background()); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func eachStore(t *testing.T, fn func(t *testing.T, r *Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, New(openSQLite(t))) })
	t.Run("postgres", func(t *testing.T) { fn(t, New(openPostgres(t))) })
}

type fixture struct {
	table    domain.Table
	session  domain.Session
	product  domain.Product
	register domain.CashRegister
}

func seed(t *testing.T, r *Repository, stock int) fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()
	f := fixture{
		table:    domain.Table{ID: id.New(id.PrefixTable), Number: 1, IsActive: true, CreatedAt: now},
		product:  domain.Product{ID: id.New(id.PrefixProduct), Name: "Lemonade", Price: decimal.RequireFromString("4.50"), Stock: stock, IsActive: true, CreatedAt: now, UpdatedAt: now},
		register: domain.CashRegister{ID: id.New(id.PrefixRegister), Status: domain.RegisterOpen, InitialValue: decimal.NewFromInt(100), OpenedAt: now},
	}
	f.session = domain.Session{ID: id.New(id.PrefixSession), Code: "ABC123", TableID: f.table.ID,
		Status: domain.SessionActive, CreatedAt: now, UpdatedAt: now}

	q := r.Read()
	if err := q.InsertTable(ctx, f.table); err != nil {
		t.Fatalf("insert table: %v", err)
	}
	if err := q.InsertProduct(ctx, f.product); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	if err := q.InsertRegister(ctx, f.register); err != nil {
		t.Fatalf("insert register: %v", err)
	}
	if err := q.InsertSession(ctx, f.session); err != nil {
		t.Fatalf("insert session: %v", err)
	}
	return f
}

func insertOrder(t *testing.T, r *Repository, f fixture, status domain.OrderStatus, qty int) domain.Order {
	t.Helper()
	now := time.Now().UTC()
	line := f.product.Price.Mul(decimal.NewFromInt(int64(qty)))
	o := domain.Order{ID: id.New(id.PrefixOrder), SessionID: f.session.ID, CashRegisterID: f.register.ID,
		Status: status, TotalAmount: line, CreatedAt: now, UpdatedAt: now}
	err := r.InTx(context.Background(), func(q *Queries) error {
		if err := q.InsertOrder(context.Background(), o); err != nil {
			return err
		}
		return q.InsertOrderItem(context.Background(), domain.OrderItem{
			ID: id.New(id.PrefixItem), OrderID: o.ID, ProductID: f.product.ID, Quantity: qty,
			UnitPrice: f.product.Price, TotalPrice: line, CreatedAt: now,
		})
	})
	if err != nil {
		t.Fatalf("insert order: %v", err)
	}
	return o
}

func TestDecrementStockNeverOversells(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		f := seed(t, r, 5)

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			sold int
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := r.InTx(context.Background(), func(q *Queries) error {
					ok, err := q.DecrementStock(context.Background(), f.product.ID, 2, time.Now())
					if err != nil {
						return err
					}
					if !ok {
						return domain.ErrInsufficientStock
					}
					return nil
				})
				if err == nil {
					mu.Lock()
					sold += 2
					mu.Unlock()
				} else if !errors.Is(err, domain.ErrInsufficientStock) {
					t.Errorf("decrement: %v", err)
				}
			}()
		}
		wg.Wait()

		stock, err := r.Read().StockOf(context.Background(), f.product.ID)
		if err != nil {
			t.Fatalf("stock: %v", err)
		}
		if sold != 4 || stock != 1 {
			t.Fatalf("sold %d, stock %d; want 4 and 1", sold, stock)
		}
	})
}

func TestOneActiveSessionPerTable(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 1)
		now := time.Now().UTC()

		second := domain.Session{ID: id.New(id.PrefixSession), Code: "XYZ789", TableID: f.table.ID,
			Status: domain.SessionActive, CreatedAt: now, UpdatedAt: now}
		if err := r.Read().InsertSession(ctx, second); !errors.Is(err, domain.ErrSessionAlreadyActive) {
			t.Fatalf("second active session: got %v", err)
		}

		closed, err := r.Read().CloseSession(ctx, f.session.ID, now)
		if err != nil || !closed {
			t.Fatalf("close session: %v %v", closed, err)
		}
		if err := r.Read().InsertSession(ctx, second); err != nil {
			t.Fatalf("session after close: %v", err)
		}
	})
}

func TestSessionCodeCollision(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 1)
		now := time.Now().UTC()

		other := domain.Table{ID: id.New(id.PrefixTable), Number: 2, IsActive: true, CreatedAt: now}
		if err := r.Read().InsertTable(ctx, other); err != nil {
			t.Fatalf("insert table: %v", err)
		}
		dup := domain.Session{ID: id.New(id.PrefixSession), Code: f.session.Code, TableID: other.ID,
			Status: domain.SessionActive, CreatedAt: now, UpdatedAt: now}
		if err := r.Read().InsertSession(ctx, dup); !errors.Is(err, ErrSessionCodeTaken) {
			t.Fatalf("duplicate code: got %v", err)
		}
	})
}

func TestOneOpenRegister(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		seed(t, r, 1)

		again := domain.CashRegister{ID: id.New(id.PrefixRegister), Status: domain.RegisterOpen,
			InitialValue: decimal.Zero, OpenedAt: time.Now()}
		if err := r.Read().InsertRegister(ctx, again); !errors.Is(err, domain.ErrRegisterAlreadyOpen) {
			t.Fatalf("second open register: got %v", err)
		}
	})
}

func TestCloseSessionIfIdle(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 10)
		o := insertOrder(t, r, f, domain.OrderPreparing, 1)

		closed, err := r.Read().CloseSessionIfIdle(ctx, f.session.ID, time.Now())
		if err != nil || closed {
			t.Fatalf("close with order in kitchen: closed=%v err=%v", closed, err)
		}

		if ok, err := r.Read().UpdateOrderStatus(ctx, o.ID, domain.OrderPreparing, domain.OrderReady, time.Now()); err != nil || !ok {
			t.Fatalf("update status: %v %v", ok, err)
		}
		if ok, err := r.Read().UpdateOrderStatus(ctx, o.ID, domain.OrderReady, domain.OrderDelivered, time.Now()); err != nil || !ok {
			t.Fatalf("update status: %v %v", ok, err)
		}

		closed, err = r.Read().CloseSessionIfIdle(ctx, f.session.ID, time.Now())
		if err != nil || !closed {
			t.Fatalf("close idle session: closed=%v err=%v", closed, err)
		}
		s, err := r.Read().GetSession(ctx, f.session.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if s.Status != domain.SessionClosed || s.ClosedAt == nil || s.TableNumber != 1 {
			t.Fatalf("session after close: %+v", s)
		}
	})
}

func TestCloseSessionIfIdleWithConfirmedOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		f := seed(t, r, 10)
		insertOrder(t, r, f, domain.OrderConfirmed, 1)

		closed, err := r.Read().CloseSessionIfIdle(context.Background(), f.session.ID, time.Now())
		if err != nil || !closed {
			t.Fatalf("close with confirmed order: closed=%v err=%v", closed, err)
		}
	})
}

// Orders are created under the session lock the same way the service
// does it, racing a locked idle close. A closed session must never end
// up holding an order the kitchen still owes.
func TestLockedCloseRacingOrderInsert(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 100)

		var wg sync.WaitGroup
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				now := time.Now().UTC()
				err := r.InTx(ctx, func(q *Queries) error {
					if err := q.LockActiveSession(ctx, f.session.ID, now); err != nil {
						return err
					}
					return q.InsertOrder(ctx, domain.Order{ID: id.New(id.PrefixOrder), SessionID: f.session.ID,
						CashRegisterID: f.register.ID, Status: domain.OrderPending, TotalAmount: decimal.Zero,
						CreatedAt: now, UpdatedAt: now})
				})
				if err != nil && !errors.Is(err, domain.ErrInvalidSession) {
					t.Errorf("insert order: %v", err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.InTx(ctx, func(q *Queries) error {
				if err := q.LockSession(ctx, f.session.ID, time.Now()); err != nil {
					return err
				}
				_, err := q.CloseSessionIfIdle(ctx, f.session.ID, time.Now())
				return err
			})
			if err != nil {
				t.Errorf("close session: %v", err)
			}
		}()
		wg.Wait()

		s, err := r.Read().GetSession(ctx, f.session.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if s.Status != domain.SessionClosed {
			return
		}
		orders, err := r.Read().OrdersBySession(ctx, f.session.ID)
		if err != nil {
			t.Fatalf("orders: %v", err)
		}
		for _, o := range orders {
			if o.Status.InKitchen() {
				t.Fatalf("closed session holds %s order %s", o.Status, o.ID)
			}
		}
	})
}

func TestLockTable(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 1)

		if err := r.Read().LockTable(ctx, f.table.ID); err != nil {
			t.Fatalf("lock active table: %v", err)
		}
		if err := r.Read().LockTable(ctx, id.New(id.PrefixTable)); !errors.Is(err, domain.ErrTableNotFound) {
			t.Fatalf("lock unknown table: got %v", err)
		}

		if _, err := r.Read().ArchiveTables(ctx, []string{f.table.ID}); !errors.Is(err, domain.ErrTableHasActiveSession) {
			t.Fatalf("archive with active session: got %v", err)
		}
		if _, err := r.Read().CloseSession(ctx, f.session.ID, time.Now()); err != nil {
			t.Fatalf("close session: %v", err)
		}
		if n, err := r.Read().ArchiveTables(ctx, []string{f.table.ID}); err != nil || n != 1 {
			t.Fatalf("archive: n=%d err=%v", n, err)
		}
		if err := r.Read().LockTable(ctx, f.table.ID); !errors.Is(err, domain.ErrTableNotFound) {
			t.Fatalf("lock archived table: got %v", err)
		}
	})
}

func TestUpdateOrderStatusIsGuarded(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		f := seed(t, r, 10)
		o := insertOrder(t, r, f, domain.OrderPending, 1)

		ok, err := r.Read().UpdateOrderStatus(context.Background(), o.ID, domain.OrderConfirmed, domain.OrderPreparing, time.Now())
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if ok {
			t.Fatalf("stale from-status must not match")
		}
	})
}

func TestClaimOutstandingOrders(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 20)
		insertOrder(t, r, f, domain.OrderDelivered, 2)
		insertOrder(t, r, f, domain.OrderPending, 1)
		insertOrder(t, r, f, domain.OrderCancelled, 3)

		claimed, err := r.Read().ClaimOutstandingOrders(ctx, f.session.ID, time.Now())
		if err != nil {
			t.Fatalf("claim: %v", err)
		}
		if len(claimed) != 2 {
			t.Fatalf("claimed %d orders, want 2", len(claimed))
		}
		total := decimal.Zero
		for _, c := range claimed {
			total = total.Add(c.TotalAmount)
		}
		if !total.Equal(decimal.RequireFromString("13.50")) {
			t.Fatalf("claimed total = %s, want 13.50", total)
		}

		again, err := r.Read().ClaimOutstandingOrders(ctx, f.session.ID, time.Now())
		if err != nil || len(again) != 0 {
			t.Fatalf("second claim: %v %v", again, err)
		}
	})
}

func TestRecomputeOrderTotal(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 20)
		o := insertOrder(t, r, f, domain.OrderPending, 2)

		got, err := r.Read().GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if len(got.Items) != 1 || got.Items[0].Product.Name != "Lemonade" {
			t.Fatalf("items = %+v", got.Items)
		}

		if err := r.Read().DeleteOrderItem(ctx, got.Items[0].ID); err != nil {
			t.Fatalf("delete item: %v", err)
		}
		total, err := r.Read().RecomputeOrderTotal(ctx, o.ID, time.Now())
		if err != nil {
			t.Fatalf("recompute: %v", err)
		}
		if !total.IsZero() {
			t.Fatalf("total = %s, want 0", total)
		}
	})
}

func TestClosedRegistersHistory(t *testing.T) {
	eachStore(t, func(t *testing.T, r *Repository) {
		ctx := context.Background()
		f := seed(t, r, 1)

		closeAt := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
		summary := domain.RegisterSummary{
			RegisterID:    f.register.ID,
			TotalPayments: decimal.NewFromInt(80),
			FinalValue:    decimal.NewFromInt(180),
			PaymentsByMethod: []domain.MethodTotal{
				{Method: domain.PaymentCash, Total: decimal.NewFromInt(80), Count: 2},
			},
		}
		if err := r.Read().CloseRegister(ctx, summary, closeAt); err != nil {
			t.Fatalf("close register: %v", err)
		}
		if err := r.Read().CloseRegister(ctx, summary, closeAt); !errors.Is(err, domain.ErrNoOpenRegister) {
			t.Fatalf("second close: got %v", err)
		}

		before := closeAt.Add(-time.Hour)
		after := closeAt.Add(time.Hour)
		got, err := r.Read().ClosedRegisters(ctx, &before, &after)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("history len = %d", len(got))
		}
		if got[0].FinalValue == nil || !got[0].FinalValue.Equal(decimal.NewFromInt(180)) {
			t.Fatalf("final value = %v", got[0].FinalValue)
		}
		if len(got[0].PaymentsBreakdown) != 1 || got[0].PaymentsBreakdown[0].Count != 2 {
			t.Fatalf("breakdown = %+v", got[0].PaymentsBreakdown)
		}

		got, err = r.Read().ClosedRegisters(ctx, &after, nil)
		if err != nil || len(got) != 0 {
			t.Fatalf("history after close time: %v %v", got, err)
		}
	})
}
