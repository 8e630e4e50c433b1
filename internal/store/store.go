package store

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"motorlane/internal/models"
)

// Store bundles the identity, verification, revocation and audit queries.
// Lookups that happen before a tenant is known (login, registration) live
// here; everything vehicle-shaped goes through Tenant so the account filter
// cannot be forgotten at a call site.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Tenant returns a handle with every query pre-bound to accountID.
func (s *Store) Tenant(accountID int64) *Tenant {
	return &Tenant{db: s.db, accountID: accountID}
}

// UserByEmail returns the first user matching email, or nil when none exists.
// Email is not unique at the storage layer; first match wins.
func (s *Store) UserByEmail(email string) (*models.User, error) {
	var u models.User
	err := s.db.First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UserByID(id int64) (*models.User, error) {
	var u models.User
	err := s.db.First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) AccountIDBySlug(slug string) (int64, error) {
	var acc models.Account
	err := s.db.Select("id").First(&acc, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acc.ID, nil
}

// RoleNames returns the current role names attached to a user, independent of
// any token state.
func (s *Store) RoleNames(userID int64) ([]string, error) {
	var names []string
	err := s.db.Table("user_roles").
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Pluck("roles.name", &names).Error
	return names, err
}

func (s *Store) CreateUser(u *models.User) error {
	return s.db.Create(u).Error
}

func (s *Store) UpdatePassword(userID int64, hash string) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("password_hash", hash).Error
}

func (s *Store) StampLastLogin(userID int64, at time.Time) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_login_at", at).Error
}

func (s *Store) MarkVerified(userID int64) error {
	return s.db.Model(&models.User{}).Where("id = ?", userID).
		Update("is_staff", true).Error
}

func (s *Store) CreateVerification(v *models.EmailVerification) error {
	return s.db.Create(v).Error
}

func (s *Store) VerificationByToken(token string) (*models.EmailVerification, error) {
	var ev models.EmailVerification
	err := s.db.First(&ev, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

// ConsumeVerification flips is_used exactly once. The guard on is_used plus
// the affected-row count makes a concurrent double-verify a no-op for the
// loser.
func (s *Store) ConsumeVerification(id int64) (bool, error) {
	res := s.db.Model(&models.EmailVerification{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Revoke appends jti to the denylist. A duplicate jti means the token is
// already revoked, which is the state the caller wanted; it is not an error.
func (s *Store) Revoke(jti string, accountID int64, reason string, expiresAt *time.Time) error {
	row := models.RevokedToken{
		AccountID: accountID,
		JTI:       jti,
		Reason:    &reason,
		ExpiresAt: expiresAt,
	}
	err := s.db.Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (s *Store) IsRevoked(jti string) (bool, error) {
	var count int64
	err := s.db.Model(&models.RevokedToken{}).Where("jti = ?", jti).Count(&count).Error
	return count > 0, err
}

func (s *Store) RecordAudit(action string, accountID, userID *int64, meta map[string]any) error {
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.db.Create(&models.AuditLog{
		AccountID: accountID,
		UserID:    userID,
		Action:    action,
		Metadata:  models.JSONB(raw),
	}).Error
}

func (s *Store) AuditByAccount(accountID int64, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	err := s.db.Where("account_id = ?", accountID).
		Order("created_at desc").Limit(limit).Find(&logs).Error
	return logs, err
}

// BrowseVehicles is the public, cross-tenant read path: active listings only.
func (s *Store) BrowseVehicles(product string, page, perPage int) ([]models.Vehicle, int64, error) {
	q := s.db.Model(&models.Vehicle{}).Where("status = ?", "active")
	if product != "" {
		q = q.Where("product = ?", product)
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

func (s *Store) BrowseVehicleByID(id int64) (*models.Vehicle, error) {
	var v models.Vehicle
	err := s.db.Preload("Images").First(&v, "id = ? AND status = ?", id, "active").Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
