package handlers

import (
	"context"

	"restaurant-pos/internal/common/logger"
	"restaurant-pos/internal/microservices/notificator/hub"
	"restaurant-pos/internal/microservices/pos/service"
)

// Pinger reports whether storage is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	sessions service.SessionServiceInterface
	orders   service.OrderServiceInterface
	register service.RegisterServiceInterface
	billing  service.BillingServiceInterface

	hub *hub.Hub
	db  Pinger
	log *logger.Logger
}

func New(s *service.Service, h *hub.Hub, db Pinger, lg *logger.Logger) *Handler {
	return &Handler{
		sessions: s.SessionService,
		orders:   s.OrderService,
		register: s.RegisterService,
		billing:  s.BillingService,
		hub:      h,
		db:       db,
		log:      lg,
	}
}
