package models

import "time"

// Account is the tenant boundary. Users, roles and vehicles all hang off one
// account; deleting it cascades through everything it owns.
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:200;not null" json:"name"`
	Slug      string    `gorm:"size:80;uniqueIndex;not null" json:"slug"`
	Users     []User    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User belongs to exactly one account; AccountID never changes after creation.
// IsStaff doubles as the email-verified flag.
type User struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"size:320;index;not null" json:"email"`
	FirstName    *string    `gorm:"size:200" json:"first_name,omitempty"`
	LastName     *string    `gorm:"size:200" json:"last_name,omitempty"`
	PasswordHash *string    `gorm:"size:255" json:"-"`
	IsActive     bool       `gorm:"not null;default:true" json:"is_active"`
	IsSuperuser  bool       `gorm:"not null;default:false" json:"is_superuser"`
	IsStaff      bool       `gorm:"not null;default:false" json:"is_staff"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	AccountID    int64      `gorm:"not null;index" json:"account_id"`
	Account      *Account   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Roles        []Role     `gorm:"many2many:user_roles;constraint:OnDelete:CASCADE" json:"roles,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Role is account-owned; AccountID is nullable so the schema leaves room for
// global roles even though none are created today.
type Role struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:80;not null" json:"name"`
	AccountID *int64    `gorm:"index" json:"account_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailVerification is a one-time token minted at registration. IsUsed flips
// false -> true exactly once via a conditional update.
type EmailVerification struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64     `gorm:"not null;index" json:"account_id"`
	UserID    int64     `gorm:"not null;index" json:"user_id"`
	User      *User     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Token     string    `gorm:"size:255;uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
	IsUsed    bool      `gorm:"not null;default:false" json:"is_used"`
	CreatedAt time.Time `json:"created_at"`
}

// RevokedToken is the jti denylist. Rows are append-only; presence of a jti
// means every future presentation of that token fails, regardless of its own
// expiry. ExpiresAt mirrors the token's exp so operators can prune stale rows.
type RevokedToken struct {
	ID        int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID int64      `gorm:"not null;index" json:"account_id"`
	JTI       string     `gorm:"column:jti;size:255;uniqueIndex;not null" json:"jti"`
	Reason    *string    `gorm:"size:80" json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type AuditLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID *int64    `gorm:"index" json:"account_id,omitempty"`
	UserID    *int64    `gorm:"index" json:"user_id,omitempty"`
	Action    string    `gorm:"size:80;not null" json:"action"`
	Metadata  JSONB     `gorm:"type:jsonb" json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}
