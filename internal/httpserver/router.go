package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"motorlane/internal/auth"
	"motorlane/internal/config"
	"motorlane/internal/httpserver/handlers"
	"motorlane/internal/storage"
)

func NewRouter(db *gorm.DB, cfg config.Config, lg *zap.SugaredLogger) (http.Handler, error) {
	codec := auth.NewCodec(cfg.JWTSecret)
	svc := auth.NewService(db, codec, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, lg)
	files, err := storage.NewDisk(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	// Mobile clients connect from anywhere.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/auth/register", handlers.Register(svc, cfg.DefaultAccountSlug, lg))
	r.Post("/auth/verify-email", handlers.VerifyEmail(svc, lg))
	r.Post("/auth/login", handlers.Login(svc, db, lg))
	r.Post("/auth/token", handlers.LoginToken(svc, db, lg))
	r.Post("/auth/refresh", handlers.Refresh(svc, lg))
	r.Post("/auth/logout", handlers.Logout(svc, lg))
	r.Post("/auth/forgot-password", handlers.ForgotPassword(svc, lg))
	r.Post("/auth/reset-password", handlers.ResetPassword(svc, lg))
	r.Post("/auth/validate-reset-token", handlers.ValidateResetToken(svc, lg))

	r.Get("/vehicles/browse", handlers.BrowseVehicles(db, lg))
	r.Get("/vehicles/browse/{id}", handlers.BrowseVehicle(db, lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireUser(db, codec))
		protected.Get("/auth/me", handlers.Me(db, lg))
		protected.Post("/vehicles", handlers.CreateVehicle(db, files, lg))
		protected.Get("/vehicles", handlers.ListVehicles(db, lg))
		protected.Get("/vehicles/{id}", handlers.GetVehicle(db, lg))
		protected.Patch("/vehicles/{id}", handlers.UpdateVehicle(db, lg))
		protected.Delete("/vehicles/{id}", handlers.DeleteVehicle(db, files, lg))
		protected.Post("/vehicles/{id}/images", handlers.AddVehicleImages(db, files, lg))
		protected.Delete("/vehicles/{id}/images", handlers.RemoveVehicleImages(db, files, lg))
		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole(db, "Administrator"))
			admin.Get("/auth/admin/ping", handlers.AdminPing())
			admin.Get("/auth/admin/logs", handlers.AuditLogs(db, lg))
		})
	})

	fileServer := http.StripPrefix("/storage/", http.FileServer(http.Dir(cfg.StorageDir)))
	r.Get("/storage/*", func(w http.ResponseWriter, r *http.Request) {
		fileServer.ServeHTTP(w, r)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r, nil
}
