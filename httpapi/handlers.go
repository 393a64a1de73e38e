package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/middleware"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 16

type signUpBody struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type signInBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type accessTokenBody struct {
	AccessToken string `json:"access_token"`
}

type accountBody struct {
	User   goSession.User  `json:"user"`
	Tokens accessTokenBody `json:"tokens"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(dst)
}

func (h *handler) signUp(w http.ResponseWriter, r *http.Request) {
	var body signUpBody
	if err := decodeBody(w, r, &body); err != nil || body.Email == "" || body.Name == "" || body.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	res, err := h.engine.SignUp(r.Context(), goSession.SignUpRequest{
		Email:    body.Email,
		Name:     body.Name,
		Password: body.Password,
	}, goSession.ClientMetaFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, goSession.ErrAccountExists):
			middleware.WriteError(w, http.StatusConflict, "User with this email already exists")
		case errors.Is(err, goSession.ErrPasswordPolicy), errors.Is(err, goSession.ErrInvalidInput):
			middleware.WriteError(w, http.StatusBadRequest, "Invalid sign-up request")
		default:
			h.writeServerError(w, "signup", err)
		}
		return
	}

	h.cookie.Set(w, res.Tokens.RefreshToken)
	middleware.WriteJSON(w, http.StatusCreated, accountBody{
		User:   res.User,
		Tokens: accessTokenBody{AccessToken: res.Tokens.AccessToken},
	})
}

func (h *handler) signIn(w http.ResponseWriter, r *http.Request) {
	var body signInBody
	if err := decodeBody(w, r, &body); err != nil || body.Email == "" || body.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	res, err := h.engine.SignIn(r.Context(), goSession.SignInRequest{
		Email:    body.Email,
		Password: body.Password,
	}, goSession.ClientMetaFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, goSession.ErrInvalidCredentials), errors.Is(err, goSession.ErrInvalidInput):
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.writeServerError(w, "signin", err)
		}
		return
	}

	h.cookie.Set(w, res.Tokens.RefreshToken)
	middleware.WriteJSON(w, http.StatusOK, accountBody{
		User:   res.User,
		Tokens: accessTokenBody{AccessToken: res.Tokens.AccessToken},
	})
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	token := h.cookie.Token(r)
	if token == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	pair, err := h.engine.Rotate(r.Context(), token, goSession.ClientMetaFromContext(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, goSession.ErrTokenExpired),
			errors.Is(err, goSession.ErrTokenInvalid),
			errors.Is(err, goSession.ErrTokenReuse):
			h.cookie.Clear(w)
			middleware.WriteError(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			h.writeServerError(w, "refresh", err)
		}
		return
	}

	h.cookie.Set(w, pair.RefreshToken)
	middleware.WriteJSON(w, http.StatusOK, accessTokenBody{AccessToken: pair.AccessToken})
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := h.cookie.Token(r); token != "" {
		if err := h.engine.RevokeFromCredential(r.Context(), token); err != nil {
			h.log.Warn("logout: revoke failed", zap.Error(err))
		}
	}
	h.cookie.Clear(w)
	middleware.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	subject, _ := middleware.SubjectFromContext(r.Context())
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"subject_id": subject})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	latency, err := h.engine.Ping(r.Context())
	if err != nil {
		h.log.Warn("health: store unavailable", zap.Error(err))
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"store_latency": latency.String(),
	})
}

// writeServerError maps store failures to 502 and everything else to 500.
func (h *handler) writeServerError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, goSession.ErrStoreUnavailable) {
		h.log.Error(op+": session store unavailable", zap.Error(err))
		middleware.WriteError(w, http.StatusBadGateway, "Session store unavailable")
		return
	}
	h.log.Error(op+": internal error", zap.Error(err))
	middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
}
