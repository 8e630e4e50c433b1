package models

import "time"

// Vehicle is the tenant-scoped listing resource. Product is one of car, bike,
// ev; Status is one of active, sold, inactive.
type Vehicle struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name"`
	Description *string        `gorm:"type:text" json:"description,omitempty"`
	AccountID   int64          `gorm:"not null;index" json:"account_id"`
	Account     *Account       `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Product     string         `gorm:"size:20;not null" json:"product"`
	Amount      float64        `gorm:"type:numeric(12,2);not null" json:"amount"`
	Mileage     *int           `json:"mileage,omitempty"`
	Location    *string        `gorm:"size:255" json:"location,omitempty"`
	PostingDate *time.Time     `gorm:"type:date" json:"posting_date,omitempty"`
	ModelYear   int            `gorm:"not null" json:"model_year"`
	Status      string         `gorm:"size:20;not null;default:active" json:"status"`
	Images      []VehicleImage `gorm:"constraint:OnDelete:CASCADE" json:"images"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type VehicleImage struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	VehicleID int64     `gorm:"not null;index" json:"vehicle_id"`
	ImagePath string    `gorm:"size:500;not null" json:"image_path"`
	CreatedAt time.Time `json:"created_at"`
}
