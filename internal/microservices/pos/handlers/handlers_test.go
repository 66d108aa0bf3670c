package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"restaurant-pos/internal/common/db"
	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/notificator/hub"
	"restaurant-pos/internal/microservices/pos/repository"
	"restaurant-pos/internal/microservices/pos/service"
)

type testServer struct {
	router *gin.Engine
	repo   *repository.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	if err := conn.ApplySchema(ctx); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	h := hub.New(logger.Nop())
	hubCtx, cancel := context.WithCancel(ctx)
	t.Cleanup(cancel)
	go h.Run(hubCtx)

	repo := repository.New(conn)
	svc := service.New(repo, h, logger.Nop())
	return &testServer{router: Router(New(svc, h, conn, logger.Nop())), repo: repo}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) product(t *testing.T, name, price string, stock int) domain.Product {
	t.Helper()
	ts := time.Now().UTC()
	p := domain.Product{ID: id.New(id.PrefixProduct), Name: name, Price: decimal.RequireFromString(price),
		Stock: stock, IsActive: true, CreatedAt: ts, UpdatedAt: ts}
	if err := s.repo.Read().InsertProduct(context.Background(), p); err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return p
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func expect(t *testing.T, w *httptest.ResponseRecorder, code int) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d, want %d; body %s", w.Code, code, w.Body.String())
	}
}

type problem struct {
	Type      string `json:"type"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	expect(t, s.do(t, http.MethodGet, "/healthz", nil), http.StatusOK)
}

func TestCheckoutOverHTTP(t *testing.T) {
	s := newTestServer(t)
	pizza := s.product(t, "Pizza", "25.00", 3)

	w := s.do(t, http.MethodPost, "/tables", map[string]any{"number": 4})
	expect(t, w, http.StatusCreated)
	table := decode[domain.Table](t, w)

	w = s.do(t, http.MethodPost, "/sessions", map[string]any{"tableId": table.ID})
	expect(t, w, http.StatusCreated)
	sess := decode[domain.Session](t, w)

	expect(t, s.do(t, http.MethodPost, "/sessions", map[string]any{"tableId": table.ID}), http.StatusConflict)

	w = s.do(t, http.MethodPost, "/cash-register/open", map[string]any{"initialValue": 50})
	expect(t, w, http.StatusCreated)

	order := map[string]any{"sessionId": sess.ID, "items": []map[string]any{{"productId": pizza.ID, "quantity": 2}}}
	w = s.do(t, http.MethodPost, "/orders", order)
	expect(t, w, http.StatusCreated)
	created := decode[domain.Order](t, w)
	if !created.TotalAmount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("total = %s, want 50", created.TotalAmount)
	}

	w = s.do(t, http.MethodPost, "/orders", order)
	expect(t, w, http.StatusConflict)
	if p := decode[problem](t, w); p.Type != "insufficient_stock" || p.Available != 1 || p.Requested != 2 {
		t.Errorf("problem = %+v", p)
	}

	w = s.do(t, http.MethodGet, "/orders?status=PENDING", nil)
	expect(t, w, http.StatusOK)
	if got := decode[[]domain.Order](t, w); len(got) != 1 {
		t.Errorf("pending orders = %d, want 1", len(got))
	}

	expect(t, s.do(t, http.MethodPatch, "/sessions/"+sess.ID+"/close", nil), http.StatusConflict)

	expect(t, s.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", map[string]any{"status": "PREPARING"}), http.StatusConflict)
	expect(t, s.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", map[string]any{"status": "CONFIRMED"}), http.StatusOK)

	w = s.do(t, http.MethodPost, "/payments/close-bill", map[string]any{"sessionId": sess.ID, "method": "CASH"})
	expect(t, w, http.StatusOK)
	bill := decode[domain.BillResult](t, w)
	if bill.Payment == nil || !bill.Payment.Amount.Equal(decimal.NewFromInt(50)) || !bill.SessionClosed {
		t.Errorf("bill = %+v", bill)
	}

	w = s.do(t, http.MethodGet, "/cash-register/active", nil)
	expect(t, w, http.StatusOK)
	if live := decode[domain.RegisterSummary](t, w); !live.FinalValue.Equal(decimal.NewFromInt(100)) {
		t.Errorf("live final = %s, want 100", live.FinalValue)
	}

	w = s.do(t, http.MethodPost, "/cash-register/close", nil)
	expect(t, w, http.StatusOK)
	if closed := decode[domain.RegisterSummary](t, w); closed.Status != domain.RegisterClosed {
		t.Errorf("closed status = %s", closed.Status)
	}

	w = s.do(t, http.MethodGet, "/cash-register/history?start=2000-01-01T00:00:00Z", nil)
	expect(t, w, http.StatusOK)
	if history := decode[[]domain.CashRegister](t, w); len(history) != 1 {
		t.Errorf("history = %d registers, want 1", len(history))
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/tables", map[string]any{"number": 1})
	expect(t, w, http.StatusCreated)
	table := decode[domain.Table](t, w)
	w = s.do(t, http.MethodPost, "/sessions", map[string]any{"tableId": table.ID})
	expect(t, w, http.StatusCreated)
	sess := decode[domain.Session](t, w)

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		code   int
		typ    string
	}{
		{"unknown session", http.MethodGet, "/sessions/" + id.New(id.PrefixSession), nil, http.StatusNotFound, "session_not_found"},
		{"unknown order", http.MethodGet, "/orders/" + id.New(id.PrefixOrder), nil, http.StatusNotFound, "order_not_found"},
		{"bad json", http.MethodPost, "/tables", "{", http.StatusBadRequest, "invalid_input"},
		{"bad status filter", http.MethodGet, "/orders?status=COOKING", nil, http.StatusBadRequest, "invalid_input"},
		{"no register for order", http.MethodPost, "/orders",
			map[string]any{"sessionId": sess.ID, "items": []map[string]any{{"productId": "prd_x", "quantity": 1}}},
			http.StatusUnprocessableEntity, "no_open_register"},
		{"no register for bill", http.MethodPost, "/payments/close-bill",
			map[string]any{"sessionId": sess.ID, "method": "PIX"}, http.StatusUnprocessableEntity, "no_open_register"},
		{"close without register", http.MethodPost, "/cash-register/close", nil, http.StatusUnprocessableEntity, "no_open_register"},
		{"bad history date", http.MethodGet, "/cash-register/history?start=yesterday", nil, http.StatusBadRequest, "invalid_input"},
		{"archive busy table", http.MethodPost, "/tables/archive", map[string]any{"ids": []string{table.ID}}, http.StatusConflict, "table_has_active_session"},
		{"socket for unknown session", http.MethodGet, "/ws/session/" + id.New(id.PrefixSession), nil, http.StatusNotFound, "session_not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := s.do(t, tc.method, tc.path, tc.body)
			expect(t, w, tc.code)
			if p := decode[problem](t, w); p.Type != tc.typ || p.Status != tc.code {
				t.Errorf("problem = %+v, want type %s", p, tc.typ)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("content type = %q", ct)
			}
		})
	}
}

func TestSessionLookups(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/tables", map[string]any{"number": 9})
	expect(t, w, http.StatusCreated)
	table := decode[domain.Table](t, w)
	w = s.do(t, http.MethodPost, "/sessions", map[string]any{"tableId": table.ID})
	expect(t, w, http.StatusCreated)
	sess := decode[domain.Session](t, w)

	w = s.do(t, http.MethodGet, "/sessions/code/"+sess.Code, nil)
	expect(t, w, http.StatusOK)
	if got := decode[domain.Session](t, w); got.ID != sess.ID || got.TableNumber != 9 {
		t.Errorf("by code = %+v", got)
	}

	w = s.do(t, http.MethodGet, "/tables/"+table.ID+"/session", nil)
	expect(t, w, http.StatusOK)
	if got := decode[domain.Session](t, w); got.ID != sess.ID {
		t.Errorf("active session = %s, want %s", got.ID, sess.ID)
	}

	w = s.do(t, http.MethodPatch, "/sessions/"+sess.ID+"/close", nil)
	expect(t, w, http.StatusOK)
	expect(t, s.do(t, http.MethodGet, "/tables/"+table.ID+"/session", nil), http.StatusNotFound)

	w = s.do(t, http.MethodPost, "/tables/archive", map[string]any{"ids": []string{table.ID}})
	expect(t, w, http.StatusOK)
	w = s.do(t, http.MethodGet, "/tables", nil)
	expect(t, w, http.StatusOK)
	if got := decode[[]domain.Table](t, w); len(got) != 0 {
		t.Errorf("tables after archive = %d, want 0", len(got))
	}
}
