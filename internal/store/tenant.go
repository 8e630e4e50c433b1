package store

import (
	"errors"

	"gorm.io/gorm"

	"motorlane/internal/models"
)

// Tenant is a store handle pre-bound to one account. Every query it issues
// carries the account filter structurally, so a caller cannot leak another
// tenant's rows by forgetting a WHERE clause.
type Tenant struct {
	db        *gorm.DB
	accountID int64
}

func (t *Tenant) AccountID() int64 { return t.accountID }

func (t *Tenant) CreateVehicle(v *models.Vehicle) error {
	v.AccountID = t.accountID
	return t.db.Create(v).Error
}

// VehicleByID returns nil for both "absent" and "belongs to another account";
// the two are indistinguishable to callers on purpose.
func (t *Tenant) VehicleByID(id int64) (*models.Vehicle, error) {
	var v models.Vehicle
	err := t.db.Preload("Images").
		First(&v, "id = ? AND account_id = ?", id, t.accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (t *Tenant) ListVehicles(product, status string, page, perPage int) ([]models.Vehicle, int64, error) {
	q := t.db.Model(&models.Vehicle{}).Where("account_id = ?", t.accountID)
	if product != "" {
		q = q.Where("product = ?", product)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []models.Vehicle
	err := q.Preload("Images").Order("created_at desc").
		Offset((page - 1) * perPage).Limit(perPage).Find(&items).Error
	return items, total, err
}

func (t *Tenant) SaveVehicle(v *models.Vehicle) error {
	return t.db.Save(v).Error
}

func (t *Tenant) DeleteVehicle(v *models.Vehicle) error {
	return t.db.Select("Images").Delete(v).Error
}

func (t *Tenant) AddImage(vehicleID int64, path string) error {
	return t.db.Create(&models.VehicleImage{VehicleID: vehicleID, ImagePath: path}).Error
}

func (t *Tenant) DeleteImage(img *models.VehicleImage) error {
	return t.db.Delete(img).Error
}
