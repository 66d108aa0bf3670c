package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"go.opentelemetry.io/otel/attribute"

	"restaurant-pos/internal/common/id"
	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/domain"
	"restaurant-pos/internal/microservices/pos/repository"
)

const (
	sessionCodeAlphabet = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	sessionCodeLength   = 6
	maxCodeAttempts     = 5
)

type SessionServiceInterface interface {
	CreateTable(ctx context.Context, number int) (domain.Table, error)
	ListTables(ctx context.Context) ([]domain.Table, error)
	ArchiveTables(ctx context.Context, ids []string) (int64, error)

	CreateSession(ctx context.Context, tableID string) (domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSessionByCode(ctx context.Context, code string) (domain.Session, error)
	ActiveSessionForTable(ctx context.Context, tableID string) (domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
}

type SessionService struct {
	store  repository.Store
	notify domain.Notifier
	log    *logger.Logger
}

func NewSessionService(store repository.Store, notifier domain.Notifier, lg *logger.Logger) SessionServiceInterface {
	return &SessionService{store: store, notify: notifier, log: lg}
}

func (s *SessionService) CreateTable(ctx context.Context, number int) (domain.Table, error) {
	if number <= 0 {
		return domain.Table{}, fmt.Errorf("%w: table number must be a positive integer", domain.ErrInvalidInput)
	}
	t := domain.Table{ID: id.New(id.PrefixTable), Number: number, IsActive: true, CreatedAt: now()}
	if err := s.store.Read().InsertTable(ctx, t); err != nil {
		return domain.Table{}, err
	}
	return t, nil
}

func (s *SessionService) ListTables(ctx context.Context) ([]domain.Table, error) {
	return s.store.Read().ListTables(ctx)
}

func (s *SessionService) ArchiveTables(ctx context.Context, ids []string) (int64, error) {
	var n int64
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		var err error
		n, err = q.ArchiveTables(ctx, ids)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("tables_archived", map[string]any{"count": n})
	return n, nil
}

func (s *SessionService) CreateSession(ctx context.Context, tableID string) (created domain.Session, err error) {
	ctx, span := tracer.Start(ctx, "session.create")
	span.SetAttributes(attribute.String("table.id", tableID))
	defer func() { endSpan(span, err) }()

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := newSessionCode()
		if err != nil {
			return domain.Session{}, err
		}
		created, err = s.createSession(ctx, tableID, code)
		if errors.Is(err, repository.ErrSessionCodeTaken) {
			s.log.Debug("session_code_collision", map[string]any{"attempt": attempt})
			continue
		}
		if err != nil {
			return domain.Session{}, err
		}
		s.log.Info("session_created", map[string]any{"session_id": created.ID, "table_id": tableID, "code": created.Code})
		return created, nil
	}
	return domain.Session{}, fmt.Errorf("failed to generate a unique session code after %d attempts", maxCodeAttempts)
}

func (s *SessionService) createSession(ctx context.Context, tableID, code string) (domain.Session, error) {
	var created domain.Session
	err := s.store.InTx(ctx, func(q *repository.Queries) error {
		if err := q.LockTable(ctx, tableID); err != nil {
			return err
		}
		_, err := q.ActiveSessionForTable(ctx, tableID)
		switch {
		case err == nil:
			return domain.ErrSessionAlreadyActive
		case !errors.Is(err, domain.ErrSessionNotFound):
			return err
		}

		ts := now()
		sess := domain.Session{
			ID:        id.New(id.PrefixSession),
			Code:      code,
			TableID:   tableID,
			Status:    domain.SessionActive,
			CreatedAt: ts,
			UpdatedAt: ts,
		}
		if err := q.InsertSession(ctx, sess); err != nil {
			return err
		}
		created, err = q.GetSession(ctx, sess.ID)
		return err
	})
	return created, err
}

func (s *SessionService) CloseSession(ctx context.Context, sessionID string) (closed domain.Session, err error) {
	ctx, span := tracer.Start(ctx, "session.close")
	span.SetAttributes(attribute.String("session.id", sessionID))
	defer func() { endSpan(span, err) }()

	var wasActive bool
	err = s.store.InTx(ctx, func(q *repository.Queries) error {
		ts := now()
		// Lock first, in its own statement. The order check below then runs
		// on a snapshot taken after any order creation holding the row has
		// committed.
		if err := q.LockSession(ctx, sessionID, ts); err != nil {
			return err
		}
		cur, err := q.GetSession(ctx, sessionID)
		if err != nil {
			return err
		}
		wasActive = cur.Status == domain.SessionActive

		ok, err := q.CloseSessionIfIdle(ctx, sessionID, ts)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrActiveOrdersPending
		}
		closed, err = q.GetSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return domain.Session{}, err
	}

	if wasActive {
		publishSessionClosed(s.notify, sessionID)
		s.log.Info("session_closed", map[string]any{"session_id": sessionID})
	}
	return closed, nil
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.withOrders(ctx, func(q *repository.Queries) (domain.Session, error) {
		return q.GetSession(ctx, sessionID)
	})
}

func (s *SessionService) GetSessionByCode(ctx context.Context, code string) (domain.Session, error) {
	return s.withOrders(ctx, func(q *repository.Queries) (domain.Session, error) {
		return q.GetSessionByCode(ctx, code)
	})
}

func (s *SessionService) ActiveSessionForTable(ctx context.Context, tableID string) (domain.Session, error) {
	return s.withOrders(ctx, func(q *repository.Queries) (domain.Session, error) {
		return q.ActiveSessionForTable(ctx, tableID)
	})
}

func (s *SessionService) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.store.Read().ListSessions(ctx)
}

func (s *SessionService) withOrders(ctx context.Context, find func(q *repository.Queries) (domain.Session, error)) (domain.Session, error) {
	q := s.store.Read()
	sess, err := find(q)
	if err != nil {
		return domain.Session{}, err
	}
	sess.Orders, err = q.OrdersBySession(ctx, sess.ID)
	if err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

func newSessionCode() (string, error) {
	size := big.NewInt(int64(len(sessionCodeAlphabet)))
	b := make([]byte, sessionCodeLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", fmt.Errorf("failed to generate session code: %w", err)
		}
		b[i] = sessionCodeAlphabet[n.Int64()]
	}
	return string(b), nil
}
