package handlers

import (
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"motorlane/internal/auth"
	"motorlane/internal/store"
)

// AuditLogs returns recent auth events for the caller's account.
func AuditLogs(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		logs, err := store.New(db).AuditByAccount(p.User.AccountID, 200)
		if err != nil {
			lg.Errorw("audit list failed", "error", err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, logs)
	}
}
