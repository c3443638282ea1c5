package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pastebin/pkg/httputil"
	"github.com/platinummonkey/pastebin/pkg/middleware"
	"github.com/platinummonkey/pastebin/pkg/pastes"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// PasteHandlers serves paste reads and writes
type PasteHandlers struct {
	server *Server
	pastes *pastes.Service
}

// NewPasteHandlers creates paste handlers
func NewPasteHandlers(server *Server, svc *pastes.Service) *PasteHandlers {
	return &PasteHandlers{server: server, pastes: svc}
}

// RegisterRoutes registers paste routes
func (h *PasteHandlers) RegisterRoutes(router *mux.Router) {
	s := h.server
	optional := s.authMW.Optional()
	required := s.authMW.Required()

	router.Handle("/api/paste/get/{id}", guard(h.get, optional)).Methods("GET")
	router.Handle("/api/paste/raw/get/{id}", guard(h.raw, optional)).Methods("GET")
	router.Handle("/api/paste/search/", guard(h.search, optional)).Methods("GET")
	router.Handle("/api/paste/latest/", guard(h.latest, optional)).Methods("GET")

	router.Handle("/api/paste/create/", guard(h.create, required)).Methods("POST")
	router.Handle("/api/paste/edit/", guard(h.edit, required)).Methods("POST")
	router.Handle("/api/paste/delete/", guard(h.delete, required)).Methods("POST")

	router.Handle("/api/internal/paste/list/", guard(h.listOwn, s.authMW.Session())).Methods("GET")
}

func (h *PasteHandlers) get(w http.ResponseWriter, r *http.Request) {
	pasteID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	view, err := h.pastes.Get(r.Context(), middleware.IdentityFromRequest(r), pasteID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, view)
}

func (h *PasteHandlers) raw(w http.ResponseWriter, r *http.Request) {
	pasteID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}
	content, err := h.pastes.Raw(r.Context(), middleware.IdentityFromRequest(r), pasteID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteText(w, http.StatusOK, content)
}

func (h *PasteHandlers) search(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "limit must be an integer")
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "offset must be an integer")
		return
	}

	hits, err := h.pastes.Search(r.Context(), middleware.IdentityFromRequest(r), pastes.SearchQuery{
		Title:   httputil.ParseQueryString(r, "title", ""),
		Creator: httputil.ParseQueryString(r, "creator", ""),
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if hits == nil {
		hits = []pastes.Summary{}
	}
	_ = httputil.WriteSuccess(w, hits)
}

func (h *PasteHandlers) latest(w http.ResponseWriter, r *http.Request) {
	list, err := h.pastes.Latest(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

func (h *PasteHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req pastes.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	p, err := h.pastes.Create(r.Context(), middleware.IdentityFromRequest(r), req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteCreated(w, p)
}

func (h *PasteHandlers) edit(w http.ResponseWriter, r *http.Request) {
	var req pastes.EditRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	p, err := h.pastes.Edit(r.Context(), middleware.IdentityFromRequest(r), req)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, p)
}

func (h *PasteHandlers) delete(w http.ResponseWriter, r *http.Request) {
	var req PasteDeleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := h.pastes.Delete(r.Context(), middleware.IdentityFromRequest(r), req.ID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *PasteHandlers) listOwn(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "limit must be an integer")
		return
	}
	list, err := h.pastes.ListOwn(r.Context(), middleware.IdentityFromRequest(r), limit)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	if list == nil {
		list = []storage.Paste{}
	}
	_ = httputil.WriteSuccess(w, list)
}
