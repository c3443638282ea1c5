package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/pastebin/pkg/accounts"
	"github.com/platinummonkey/pastebin/pkg/auth"
	"github.com/platinummonkey/pastebin/pkg/httputil"
	"github.com/platinummonkey/pastebin/pkg/storage"
)

// AccountHandlers serves signup, login and the caller's own account
type AccountHandlers struct {
	server   *Server
	accounts *accounts.Service
}

// NewAccountHandlers creates account handlers
func NewAccountHandlers(server *Server, svc *accounts.Service) *AccountHandlers {
	return &AccountHandlers{server: server, accounts: svc}
}

// RegisterRoutes registers account routes
func (h *AccountHandlers) RegisterRoutes(router *mux.Router) {
	s := h.server

	router.Handle("/api/signup/", guard(h.signup, s.limit("signup"))).Methods("POST")
	router.Handle("/api/login/", guard(h.login, s.limit("login"))).Methods("POST")
	router.Handle("/api/logout/", guard(h.logout, s.authMW.Session())).Methods("POST")

	router.Handle("/api/internal/user/get/", guard(h.getUser, s.authMW.Session())).Methods("GET")
	router.Handle("/api/internal/user/edit/", guard(h.editUser, s.authMW.Secure(), s.limit("user.edit"))).Methods("POST")
	router.Handle("/api/internal/user/delete/", guard(h.deleteUser, s.authMW.Secure(), s.limit("user.delete"))).Methods("DELETE")
}

func (h *AccountHandlers) signup(w http.ResponseWriter, r *http.Request) {
	var req accounts.SignupRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	u, err := h.accounts.Signup(r.Context(), req)
	h.server.recordAudit(r, auth.ActionSignup, u.ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteCreated(w, newUserResponse(u))
}

func (h *AccountHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req accounts.LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	res, err := h.accounts.Login(r.Context(), req)
	h.server.recordAudit(r, auth.ActionLogin, res.User.ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	h.server.cookies.SetSession(w, res.Token, res.Secure, res.User.RememberMe)
	_ = httputil.WriteSuccess(w, LoginResponse{
		User:   newUserResponse(res.User),
		Token:  res.Token,
		Secure: res.Secure,
	})
}

func (h *AccountHandlers) logout(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	err := h.accounts.Logout(r.Context(), id)
	h.server.recordAudit(r, auth.ActionLogout, id.Owner().ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	h.server.cookies.Clear(w)
	httputil.WriteNoContent(w)
}

func (h *AccountHandlers) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.accounts.Me(r.Context(), identity(r))
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, newUserResponse(u))
}

// editUser applies credential changes before profile changes, so a wrong
// current password leaves the account untouched
func (h *AccountHandlers) editUser(w http.ResponseWriter, r *http.Request) {
	var req UserEditRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !req.changesCredentials() && !req.changesProfile() {
		httputil.WriteBadRequest(w, "nothing to change")
		return
	}

	ctx := r.Context()
	id := identity(r)
	userID := id.Owner().ID

	// nothing is written unless the profile fields are valid
	profile := storage.ProfileUpdate{
		Email:      req.Email,
		Avatar:     req.Avatar,
		RememberMe: req.RememberMe,
	}
	if req.changesProfile() {
		if _, err := accounts.ValidateProfile(profile); err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	if req.changesCredentials() {
		pair, err := h.accounts.ChangeCredentials(ctx, id, accounts.CredentialChange{
			CurrentPassword: req.CurrentPassword,
			NewName:         req.Name,
			NewPassword:     req.Password,
		})
		action := auth.ActionPasswordChange
		if req.Name != nil {
			action = auth.ActionRename
		}
		h.server.recordAudit(r, action, userID, err)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}

		remember := id.Owner().RememberMe
		if req.RememberMe != nil {
			remember = *req.RememberMe
		}
		h.server.cookies.SetPair(w, pair, remember)
	}

	if req.changesProfile() {
		_, err := h.accounts.UpdateProfile(ctx, id, profile)
		h.server.recordAudit(r, auth.ActionProfileUpdate, userID, err)
		if err != nil {
			httputil.WriteServiceError(w, err)
			return
		}
	}

	fresh, err := h.accounts.Refresh(ctx, id)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	_ = httputil.WriteSuccess(w, newUserResponse(fresh.Owner()))
}

func (h *AccountHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	keepPastes, err := httputil.ParseQueryBool(r, "keep_pastes", false)
	if err != nil {
		httputil.WriteBadRequest(w, "keep_pastes must be a boolean")
		return
	}

	id := identity(r)
	err = h.accounts.DeleteAccount(r.Context(), id, keepPastes)
	h.server.recordAudit(r, auth.ActionUserDelete, id.Owner().ID, err)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	h.server.cookies.Clear(w)
	httputil.WriteNoContent(w)
}
