package handler

import (
	"tourbook/pkg/contracts"

	"github.com/julienschmidt/httprouter"
)

// Router registers every API handler on one router.
type Router struct {
	handlers []contracts.Handler
}

func NewRouter(handlers ...contracts.Handler) *Router {
	return &Router{handlers: handlers}
}

func (r *Router) RegisterRoutes(router *httprouter.Router) {
	for _, h := range r.handlers {
		h.RegisterRoutes(router)
	}
}
