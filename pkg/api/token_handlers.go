package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/httputil"
)

// TokenHandlers manages the caller's API tokens. Every route needs a
// secure session.
type TokenHandlers struct {
	server   *Server
	accounts *accounts.Service
}

// NewTokenHandlers creates token handlers
func NewTokenHandlers(server *Server, svc *accounts.Service) *TokenHandlers {
	return &TokenHandlers{server: server, accounts: svc}
}

// RegisterRoutes registers token routes
func (h *TokenHandlers) RegisterRoutes(router *mux.Router) {
	s := h.server
	secure := s.authMW.Secure()

	router.Handle("/api/internal/token/list/", guard(h.list, secure)).Methods("GET")
	router.Handle("/api/internal/token/create/", guard(h.create, secure, s.limit("token.create"))).Methods("POST")
	router.Handle("/api/internal/token/edit/", guard(h.edit, secure)).Methods("POST")
	router.Handle("/api/internal/token/delete/", guard(h.delete, secure, s.limit("token.delete"))).Methods("DELETE")
}

func (h *TokenHandlers) list(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.accounts.ListTokens(r.Context(), identity(r))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	resp := make([]TokenResponse, 0, len(tokens))
	for _, t := range tokens {
		t.Secret = ""
		resp = append(resp, newTokenResponse(t))
	}
	_ = httputil.WriteSuccess(w, resp)
}

func (h *TokenHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req TokenCreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	id := identity(r)
	tok, err := h.accounts.CreateToken(r.Context(), id, req.Name, req.Perms)
	h.server.recordAudit(r, auth.ActionTokenCreate, id.Owner().ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteCreated(w, newTokenResponse(tok))
}

func (h *TokenHandlers) edit(w http.ResponseWriter, r *http.Request) {
	var req TokenEditRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Ident == "" {
		httputil.WriteBadRequest(w, "ident is required")
		return
	}

	id := identity(r)
	err := h.accounts.EditToken(r.Context(), id, req.Ident, req.Name, req.Perms)
	h.server.recordAudit(r, auth.ActionTokenEdit, id.Owner().ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *TokenHandlers) delete(w http.ResponseWriter, r *http.Request) {
	var req TokenDeleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Ident == "" {
		httputil.WriteBadRequest(w, "ident is required")
		return
	}

	id := identity(r)
	err := h.accounts.DeleteToken(r.Context(), id, req.Ident)
	h.server.recordAudit(r, auth.ActionTokenDelete, id.Owner().ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
