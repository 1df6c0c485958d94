package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("malformed request body")

type handlers struct {
	engine *authcore.Engine
	users  authcore.CredentialStore
	logger zerolog.Logger
}

type registerBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

type identityResponse struct {
	UserID       string   `json:"user_id"`
	Email        string   `json:"email"`
	RoleID       uint32   `json:"role_id"`
	IsAdmin      bool     `json:"is_admin"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type authResponse struct {
	User             identityResponse `json:"user"`
	AccessToken      string           `json:"access_token"`
	RefreshToken     string           `json:"refresh_token"`
	AccessExpiresAt  time.Time        `json:"access_expires_at"`
	RefreshExpiresAt time.Time        `json:"refresh_expires_at"`
}

type userResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	RoleID    uint32    `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var body registerBody
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.engine.Register(r.Context(), authcore.RegisterRequest{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, h.authResponse(res))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var body loginBody
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.engine.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.authResponse(res))
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !h.decode(w, r, &body) {
		return
	}

	res, err := h.engine.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, h.authResponse(res))
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if !h.decode(w, r, &body) {
		return
	}

	if err := h.engine.Logout(r.Context(), body.RefreshToken); err != nil {
		if errors.Is(err, authcore.ErrRevocationUnavailable) && !h.engine.RevocationEnabled() {
			// Stateless deployments: the client discards its tokens.
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, h.identity(id))
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	c, err := h.users.FindByID(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		if errors.Is(err, authcore.ErrUserNotFound) {
			middleware.WriteJSON(w, http.StatusNotFound, middleware.ErrorBody{Error: "not_found", Message: "user not found"})
			return
		}
		h.fail(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, userResponse{
		UserID:    c.UserID,
		Email:     c.Email,
		Name:      c.Name,
		RoleID:    uint32(c.RoleID),
		CreatedAt: c.CreatedAt,
	})
}

func (h *handlers) adminPing(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, middleware.ErrorBody{Error: "invalid_input", Message: errBadBody.Error()})
		return false
	}
	return true
}

// fail logs server-side failures before writing the mapped response.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if middleware.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	middleware.WriteError(w, err)
}

func (h *handlers) authResponse(res *authcore.AuthResult) authResponse {
	return authResponse{
		User:             h.identity(res.Identity),
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
}

func (h *handlers) identity(id authcore.Identity) identityResponse {
	return identityResponse{
		UserID:       id.UserID,
		Email:        id.Email,
		RoleID:       uint32(id.RoleID),
		IsAdmin:      id.IsAdmin,
		Capabilities: id.Capabilities.Names(h.engine.Roles().Registry()),
	}
}
