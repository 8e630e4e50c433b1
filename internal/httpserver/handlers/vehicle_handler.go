package handlers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"motorlane/internal/auth"
	"motorlane/internal/models"
	"motorlane/internal/storage"
	"motorlane/internal/store"
)

var (
	validProducts = map[string]bool{"car": true, "bike": true, "ev": true}
	validStatuses = map[string]bool{"active": true, "sold": true, "inactive": true}
)

type vehicleList struct {
	Total   int64            `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Items   []models.Vehicle `json:"items"`
}

func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return page, perPage
}

func tenantFrom(w http.ResponseWriter, r *http.Request, db *gorm.DB) (*store.Tenant, bool) {
	p, ok := auth.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return nil, false
	}
	return store.New(db).Tenant(p.User.AccountID), true
}

func saveUploads(tx *store.Tenant, files *storage.Disk, vehicleID int64, uploads []*multipart.FileHeader) error {
	for _, hdr := range uploads {
		if hdr.Filename == "" {
			continue
		}
		f, err := hdr.Open()
		if err != nil {
			return err
		}
		path, err := files.SaveImage(hdr.Filename, f)
		f.Close()
		if err != nil {
			return err
		}
		if err := tx.AddImage(vehicleID, path); err != nil {
			return err
		}
	}
	return nil
}

func imageError(w http.ResponseWriter, err error, lg *zap.SugaredLogger) {
	if errors.Is(err, storage.ErrInvalidImage) || errors.Is(err, storage.ErrImageTooLarge) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lg.Errorw("image upload failed", "error", err)
	http.Error(w, "upload failed", http.StatusInternalServerError)
}

func CreateVehicle(db *gorm.DB, files *storage.Disk, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		name := strings.TrimSpace(r.FormValue("name"))
		product := strings.ToLower(strings.TrimSpace(r.FormValue("product")))
		amount, amountErr := strconv.ParseFloat(r.FormValue("amount"), 64)
		modelYear, yearErr := strconv.Atoi(r.FormValue("model_year"))
		if name == "" || product == "" || amountErr != nil || yearErr != nil {
			http.Error(w, "name, product, amount and model_year required", http.StatusBadRequest)
			return
		}
		if !validProducts[product] {
			http.Error(w, "invalid product", http.StatusBadRequest)
			return
		}
		v := models.Vehicle{
			Name:      name,
			Product:   product,
			Amount:    amount,
			ModelYear: modelYear,
			Status:    "active",
		}
		if d := strings.TrimSpace(r.FormValue("description")); d != "" {
			v.Description = &d
		}
		if l := strings.TrimSpace(r.FormValue("location")); l != "" {
			v.Location = &l
		}
		if m := r.FormValue("mileage"); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				v.Mileage = &n
			}
		}
		if pd := r.FormValue("posting_date"); pd != "" {
			if t, err := time.Parse("2006-01-02", pd); err == nil {
				v.PostingDate = &t
			}
		}
		var uploads []*multipart.FileHeader
		if r.MultipartForm != nil {
			uploads = r.MultipartForm.File["images"]
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			txt := store.New(tx).Tenant(tenant.AccountID())
			if err := txt.CreateVehicle(&v); err != nil {
				return err
			}
			return saveUploads(txt, files, v.ID, uploads)
		})
		if err != nil {
			imageError(w, err, lg)
			return
		}
		out, err := tenant.VehicleByID(v.ID)
		if err != nil || out == nil {
			lg.Errorw("vehicle reload failed", "error", err)
			http.Error(w, "create failed", http.StatusInternalServerError)
			return
		}
		respondStatus(w, http.StatusCreated, out)
	}
}

func ListVehicles(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		page, perPage := pageParams(r)
		product := r.URL.Query().Get("product")
		if !validProducts[product] {
			product = ""
		}
		status := r.URL.Query().Get("status")
		if !validStatuses[status] {
			status = ""
		}
		items, total, err := tenant.ListVehicles(product, status, page, perPage)
		if err != nil {
			lg.Errorw("vehicle list failed", "error", err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []models.Vehicle{}
		}
		respondJSON(w, vehicleList{Total: total, Page: page, PerPage: perPage, Items: items})
	}
}

// BrowseVehicles is the public listing feed: active vehicles across all
// accounts, no authentication.
func BrowseVehicles(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, perPage := pageParams(r)
		product := r.URL.Query().Get("product")
		if !validProducts[product] {
			product = ""
		}
		items, total, err := store.New(db).BrowseVehicles(product, page, perPage)
		if err != nil {
			lg.Errorw("browse failed", "error", err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		if items == nil {
			items = []models.Vehicle{}
		}
		respondJSON(w, vehicleList{Total: total, Page: page, PerPage: perPage, Items: items})
	}
}

func BrowseVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid id", http.StatusBadRequest)
			return
		}
		v, err := store.New(db).BrowseVehicleByID(id)
		if err != nil {
			lg.Errorw("browse lookup failed", "error", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		if v == nil {
			http.Error(w, "vehicle not found", http.StatusNotFound)
			return
		}
		respondJSON(w, v)
	}
}

func vehicleOr404(w http.ResponseWriter, r *http.Request, tenant *store.Tenant) *models.Vehicle {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return nil
	}
	v, err := tenant.VehicleByID(id)
	if err != nil || v == nil {
		http.Error(w, "vehicle not found", http.StatusNotFound)
		return nil
	}
	return v
}

func GetVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		v := vehicleOr404(w, r, tenant)
		if v == nil {
			return
		}
		respondJSON(w, v)
	}
}

func UpdateVehicle(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		v := vehicleOr404(w, r, tenant)
		if v == nil {
			return
		}
		var req struct {
			Name        *string  `json:"name"`
			Description *string  `json:"description"`
			Product     *string  `json:"product"`
			Amount      *float64 `json:"amount"`
			Mileage     *int     `json:"mileage"`
			Location    *string  `json:"location"`
			PostingDate *string  `json:"posting_date"`
			ModelYear   *int     `json:"model_year"`
			Status      *string  `json:"status"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Name != nil {
			v.Name = strings.TrimSpace(*req.Name)
		}
		if req.Description != nil {
			v.Description = req.Description
		}
		if req.Product != nil {
			p := strings.ToLower(*req.Product)
			if !validProducts[p] {
				http.Error(w, "invalid product", http.StatusBadRequest)
				return
			}
			v.Product = p
		}
		if req.Amount != nil {
			v.Amount = *req.Amount
		}
		if req.Mileage != nil {
			v.Mileage = req.Mileage
		}
		if req.Location != nil {
			v.Location = req.Location
		}
		if req.PostingDate != nil {
			if t, err := time.Parse("2006-01-02", *req.PostingDate); err == nil {
				v.PostingDate = &t
			}
		}
		if req.ModelYear != nil {
			v.ModelYear = *req.ModelYear
		}
		if req.Status != nil {
			if !validStatuses[*req.Status] {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			v.Status = *req.Status
		}
		if err := tenant.SaveVehicle(v); err != nil {
			lg.Errorw("vehicle update failed", "error", err)
			http.Error(w, "update failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, v)
	}
}

func AddVehicleImages(db *gorm.DB, files *storage.Disk, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		v := vehicleOr404(w, r, tenant)
		if v == nil {
			return
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var uploads []*multipart.FileHeader
		if r.MultipartForm != nil {
			uploads = r.MultipartForm.File["images"]
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			return saveUploads(store.New(tx).Tenant(tenant.AccountID()), files, v.ID, uploads)
		})
		if err != nil {
			imageError(w, err, lg)
			return
		}
		out, err := tenant.VehicleByID(v.ID)
		if err != nil || out == nil {
			lg.Errorw("vehicle reload failed", "error", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, out)
	}
}

func RemoveVehicleImages(db *gorm.DB, files *storage.Disk, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		v := vehicleOr404(w, r, tenant)
		if v == nil {
			return
		}
		var req struct {
			ImageIDs []int64 `json:"image_ids"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		wanted := make(map[int64]bool, len(req.ImageIDs))
		for _, id := range req.ImageIDs {
			wanted[id] = true
		}
		for i := range v.Images {
			img := v.Images[i]
			if !wanted[img.ID] {
				continue
			}
			if err := files.Remove(img.ImagePath); err != nil {
				lg.Errorw("image delete failed", "path", img.ImagePath, "error", err)
			}
			if err := tenant.DeleteImage(&img); err != nil {
				lg.Errorw("image row delete failed", "error", err)
				http.Error(w, "delete failed", http.StatusInternalServerError)
				return
			}
		}
		out, err := tenant.VehicleByID(v.ID)
		if err != nil || out == nil {
			lg.Errorw("vehicle reload failed", "error", err)
			http.Error(w, "lookup failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, out)
	}
}

func DeleteVehicle(db *gorm.DB, files *storage.Disk, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, ok := tenantFrom(w, r, db)
		if !ok {
			return
		}
		v := vehicleOr404(w, r, tenant)
		if v == nil {
			return
		}
		for _, img := range v.Images {
			if err := files.Remove(img.ImagePath); err != nil {
				lg.Errorw("image delete failed", "path", img.ImagePath, "error", err)
			}
		}
		if err := tenant.DeleteVehicle(v); err != nil {
			lg.Errorw("vehicle delete failed", "error", err)
			http.Error(w, "delete failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
