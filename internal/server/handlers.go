package server

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Email           string `json:"email"`
}

type activateRequest struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

type changePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed",
			"operation", "healthz",
			"outcome", "failure",
			"error", err.Error(),
		)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(sessionauth.CodeInvalidFormat, "Malformed request body."))
		return
	}
	token, _ := middleware.Token(r, h.opts.CookieName)

	res, err := h.engine.Login(r.Context(), sessionauth.LoginRequest{
		Username: req.Username,
		Password: req.Password,
		Token:    token,
		Origin:   h.readIP(r),
	})
	if err == nil && !res.AlreadyAuthenticated {
		h.setCookie(w, res.Token, res.ExpiresAt)
	}
	writeResult(w, http.StatusOK, res, err)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.Token(r, h.opts.CookieName)
	res, err := h.engine.Logout(r.Context(), sessionauth.SessionRequest{
		Token:  token,
		Origin: h.readIP(r),
	})
	if err == nil {
		middleware.ClearCookie(w, h.opts.CookieName)
	}
	writeResult(w, http.StatusOK, res, err)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.Token(r, h.opts.CookieName)
	if !ok {
		writeResult[*sessionauth.SessionInfo](w, http.StatusOK, nil, sessionauth.ErrSessionInvalid)
		return
	}
	info, err := h.engine.CurrentSession(r.Context(), sessionauth.SessionRequest{
		Token:  token,
		Origin: h.readIP(r),
	})
	if err != nil && statusFor(err) == http.StatusUnauthorized {
		middleware.ClearCookie(w, h.opts.CookieName)
	}
	writeResult(w, http.StatusOK, info, err)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	h.registerWith(w, r, h.engine.Register)
}

func (h *Handler) registerDirect(w http.ResponseWriter, r *http.Request) {
	h.registerWith(w, r, h.engine.DirectRegister)
}

func (h *Handler) registerWith(w http.ResponseWriter, r *http.Request, call func(context.Context, sessionauth.RegisterRequest) (*sessionauth.RegisterResult, error)) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(sessionauth.CodeInvalidFormat, "Malformed request body."))
		return
	}
	token, _ := middleware.Token(r, h.opts.CookieName)

	res, err := call(r.Context(), sessionauth.RegisterRequest{
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Email:           req.Email,
		Token:           token,
		Origin:          h.readIP(r),
	})
	writeResult(w, http.StatusCreated, res, err)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if r.Method == http.MethodGet {
		req.Username = r.URL.Query().Get("username")
		req.Key = r.URL.Query().Get("key")
	} else if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(sessionauth.CodeInvalidFormat, "Malformed request body."))
		return
	}

	err := h.engine.Activate(r.Context(), sessionauth.ActivateRequest{
		Username: req.Username,
		Key:      req.Key,
		Origin:   h.readIP(r),
	})
	writeResult(w, http.StatusOK, map[string]bool{"activated": err == nil}, err)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		writeResult[*sessionauth.ChangePasswordResult](w, http.StatusOK, nil, sessionauth.ErrSessionInvalid)
		return
	}

	var req changePasswordRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(sessionauth.CodeInvalidFormat, "Malformed request body."))
		return
	}

	res, err := h.engine.ChangePassword(r.Context(), sessionauth.ChangePasswordRequest{
		Username:   info.Username,
		Current:    req.CurrentPassword,
		New:        req.NewPassword,
		ConfirmNew: req.ConfirmNewPassword,
		Origin:     h.readIP(r),
	})
	if err == nil && res.SessionsRevoked > 0 {
		middleware.ClearCookie(w, h.opts.CookieName)
	}
	writeResult(w, http.StatusOK, res, err)
}

func (h *Handler) setCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
