package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"motorlane/internal/auth"
	"motorlane/internal/store"
)

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type registerReq struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	AccountSlug string  `json:"account_slug"`
}

func Register(svc *auth.Service, defaultSlug string, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Email) == "" || req.Password == "" {
			http.Error(w, "email and password required", http.StatusBadRequest)
			return
		}
		slug := req.AccountSlug
		if slug == "" {
			slug = defaultSlug
		}
		_, token, err := svc.Register(req.Email, req.Password, req.FirstName, req.LastName, slug)
		if errors.Is(err, auth.ErrDuplicateEmail) || errors.Is(err, auth.ErrUnknownAccount) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			lg.Errorw("register failed", "error", err)
			http.Error(w, "registration failed", http.StatusInternalServerError)
			return
		}
		respondStatus(w, http.StatusCreated, map[string]any{
			"message":            "Registered. Verify your email.",
			"verification_token": token,
		})
	}
}

func VerifyEmail(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ok, err := svc.VerifyEmail(req.Token)
		if err != nil {
			lg.Errorw("verify email failed", "error", err)
			http.Error(w, "verification failed", http.StatusInternalServerError)
			return
		}
		if !ok {
			http.Error(w, "invalid or expired token", http.StatusBadRequest)
			return
		}
		respondJSON(w, map[string]any{"message": "Email verified"})
	}
}

func issuePair(w http.ResponseWriter, svc *auth.Service, db *gorm.DB, email, password string, lg *zap.SugaredLogger) {
	user, err := svc.Authenticate(email, password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		lg.Errorw("login failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	roles, err := store.New(db).RoleNames(user.ID)
	if err != nil {
		lg.Errorw("role lookup failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	access, refresh, err := svc.IssueTokens(user, roles)
	if err != nil {
		lg.Errorw("token issue failed", "error", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, tokenPair{AccessToken: access, RefreshToken: refresh, TokenType: "bearer"})
}

func Login(svc *auth.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		issuePair(w, svc, db, req.Email, req.Password, lg)
	}
}

// LoginToken is the form-encoded password-grant variant of Login.
func LoginToken(svc *auth.Service, db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		issuePair(w, svc, db, r.PostFormValue("username"), r.PostFormValue("password"), lg)
	}
}

func Refresh(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		access, err := svc.Refresh(req.RefreshToken)
		if err != nil {
			http.Error(w, "invalid refresh token", http.StatusUnauthorized)
			return
		}
		respondJSON(w, tokenPair{AccessToken: access, RefreshToken: req.RefreshToken, TokenType: "bearer"})
	}
}

func Logout(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := auth.BearerToken(r)
		if raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := svc.Logout(raw); err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			lg.Errorw("logout failed", "error", err)
			http.Error(w, "logout failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"message": "Logged out"})
	}
}

func Me(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		roles, err := store.New(db).RoleNames(p.User.ID)
		if err != nil {
			lg.Errorw("role lookup failed", "error", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if roles == nil {
			roles = []string{}
		}
		respondJSON(w, map[string]any{
			"id":           p.User.ID,
			"email":        p.User.Email,
			"first_name":   p.User.FirstName,
			"last_name":    p.User.LastName,
			"account_id":   p.User.AccountID,
			"roles":        roles,
			"is_superuser": p.User.IsSuperuser,
		})
	}
}

func AdminPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, map[string]any{"ok": true})
	}
}

func ForgotPassword(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// Same message whether or not the account exists.
		out := map[string]any{"message": "If the email exists, a reset link has been sent."}
		token, err := svc.ForgotPassword(req.Email)
		if err != nil {
			lg.Errorw("forgot password failed", "error", err)
			http.Error(w, "request failed", http.StatusInternalServerError)
			return
		}
		if token != "" {
			out["reset_token"] = token
		}
		respondJSON(w, out)
	}
}

func ResetPassword(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token       string `json:"token"`
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.NewPassword == "" {
			http.Error(w, "new_password required", http.StatusBadRequest)
			return
		}
		err := svc.ResetPassword(req.Token, req.NewPassword)
		if errors.Is(err, auth.ErrInvalidToken) {
			http.Error(w, "invalid or already used token", http.StatusBadRequest)
			return
		}
		if errors.Is(err, auth.ErrSamePassword) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			lg.Errorw("reset password failed", "error", err)
			http.Error(w, "reset failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"message": "Password successfully reset"})
	}
}

func ValidateResetToken(svc *auth.Service, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Token string `json:"token"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := svc.ValidateResetToken(req.Token); err != nil {
			http.Error(w, "token already used or revoked", http.StatusBadRequest)
			return
		}
		respondJSON(w, map[string]any{"valid": true})
	}
}
