package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/cookieauth"
	"github.com/MrEthical07/cookieauth/transport"
)

const maxBodyBytes = 1 << 20

type handlers struct {
	svc     Service
	cookies transport.Cookies
	logger  *slog.Logger
}

var errBadBody = &cookieauth.Error{Kind: cookieauth.KindValidation, Message: "Invalid request body"}

// decode reads a JSON object into dst. An empty body decodes to the zero
// value so field validation reports what is missing.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	transport.WriteError(w, r, h.logger, err)
}

// POST /auth/register
func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var in cookieauth.RegisterInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ClientDescriptor = r.UserAgent()

	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cookies.SetBoth(w, res.AccessToken, res.RefreshToken)
	transport.WriteJSON(w, http.StatusCreated, res.User)
}

// POST /auth/login
func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var in cookieauth.LoginInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ClientDescriptor = r.UserAgent()

	res, err := h.svc.Login(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cookies.SetBoth(w, res.AccessToken, res.RefreshToken)
	transport.WriteMessage(w, http.StatusOK, "Login successful.")
}

// GET /auth/refresh
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Refresh(r.Context(), transport.RefreshToken(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cookies.SetBoth(w, res.AccessToken, res.RefreshToken)
	transport.WriteMessage(w, http.StatusOK, "Access token refreshed")
}

// GET /auth/logout
func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context(), transport.AccessToken(r))
	h.cookies.Clear(w)
	transport.WriteMessage(w, http.StatusOK, "Logout successful")
}

// GET /auth/email/verify/{code}
func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.VerifyEmail(r.Context(), chi.URLParam(r, "code")); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteMessage(w, http.StatusOK, "Email was successfully verified")
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// POST /auth/password/forgot
func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var in forgotPasswordRequest
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.svc.RequestPasswordReset(r.Context(), in.Email); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteMessage(w, http.StatusOK, "Password reset email sent")
}

// POST /auth/password/reset
func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var in cookieauth.ResetPasswordInput
	if err := decode(r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	if _, err := h.svc.ResetPassword(r.Context(), in); err != nil {
		h.fail(w, r, err)
		return
	}
	h.cookies.Clear(w)
	transport.WriteMessage(w, http.StatusOK, "Password was reset successfully")
}

// GET /user
func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	p, _ := cookieauth.PrincipalFromContext(r.Context())
	u, err := h.svc.GetUser(r.Context(), p.UserID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteJSON(w, http.StatusOK, u)
}

// GET /sessions
func (h *handlers) listSessions(w http.ResponseWriter, r *http.Request) {
	p, _ := cookieauth.PrincipalFromContext(r.Context())
	views, err := h.svc.ListSessions(r.Context(), p.UserID, p.SessionID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if views == nil {
		views = []cookieauth.SessionView{}
	}
	transport.WriteJSON(w, http.StatusOK, views)
}

// DELETE /sessions/{id}
func (h *handlers) revokeSession(w http.ResponseWriter, r *http.Request) {
	p, _ := cookieauth.PrincipalFromContext(r.Context())
	if err := h.svc.RevokeSession(r.Context(), p.UserID, chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	transport.WriteMessage(w, http.StatusOK, "Session removed")
}

// GET /healthz
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.logger.WarnContext(r.Context(), "health check failed", slog.Any("error", err))
		transport.WriteMessage(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	transport.WriteMessage(w, http.StatusOK, "ok")
}
