// Package gorm provides the PostgreSQL persistence layer. Every store
// resolves its handle through tx.GormFrom, so calls made inside a unit of
// work join the transaction the request opened.
package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/file"
	"github.com/kumori-disk/kumori-disk/payment"
)

// AutoMigrate runs database migrations for all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&UserModel{},
		&ProviderModel{},
		&UserProviderModel{},
		&FileModel{},
		&FileTenantModel{},
		&PaymentPlanModel{},
	)
}

// UserModel is the users table.
type UserModel struct {
	ID                 string `gorm:"type:uuid;primaryKey"`
	Email              string `gorm:"uniqueIndex;size:320;not null"`
	Username           string `gorm:"size:64;not null"`
	PasswordHash       string `gorm:"not null"`
	ConfirmationStatus string `gorm:"size:16;not null"`
	DiskSpaceBytes     int64  `gorm:"not null"`
	PlanID             *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (UserModel) TableName() string { return "users" }

func (m *UserModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *UserModel) ToUser() *kd.User {
	user := &kd.User{
		ID:                 m.ID,
		Email:              m.Email,
		Username:           m.Username,
		PasswordHash:       m.PasswordHash,
		ConfirmationStatus: kd.ConfirmationStatus(m.ConfirmationStatus),
		DiskSpaceBytes:     m.DiskSpaceBytes,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
	if m.PlanID != nil {
		user.PlanID = *m.PlanID
	}
	return user
}

// ProviderModel is the auth_providers table.
type ProviderModel struct {
	ID   string `gorm:"type:uuid;primaryKey"`
	Name string `gorm:"uniqueIndex;size:32;not null"`
}

func (ProviderModel) TableName() string { return "auth_providers" }

func (m *ProviderModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *ProviderModel) ToDescriptor() *kd.ProviderDescriptor {
	return &kd.ProviderDescriptor{ID: m.ID, Name: kd.Provider(m.Name)}
}

// UserProviderModel is the users_auth_providers join table binding local
// users to provider identities.
type UserProviderModel struct {
	UserID         string `gorm:"type:uuid;primaryKey"`
	ProviderID     string `gorm:"type:uuid;primaryKey"`
	ProviderUserID string `gorm:"size:64;not null"`
	CreatedAt      time.Time
}

func (UserProviderModel) TableName() string { return "users_auth_providers" }

func (m *UserProviderModel) ToLink() *kd.ProviderLink {
	return &kd.ProviderLink{
		UserID:         m.UserID,
		ProviderID:     m.ProviderID,
		ProviderUserID: m.ProviderUserID,
		CreatedAt:      m.CreatedAt,
	}
}

// FileModel is the files table. Sharing lives in file_tenants.
type FileModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Key         string `gorm:"size:320;not null"`
	SizeInBytes int64  `gorm:"not null"`
	OwnerID     string `gorm:"type:uuid;index;not null"`
	OwnerType   string `gorm:"size:16;not null"`
	CreatedAt   time.Time
}

func (FileModel) TableName() string { return "files" }

func (m *FileModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *FileModel) ToFile(tenantIDs []string) *file.File {
	return &file.File{
		ID:          m.ID,
		Key:         m.Key,
		SizeInBytes: m.SizeInBytes,
		OwnerID:     m.OwnerID,
		OwnerType:   file.Consumer(m.OwnerType),
		CreatedAt:   m.CreatedAt,
		TenantIDs:   tenantIDs,
	}
}

// FileTenantModel is the file_tenants table: which users can see a file.
type FileTenantModel struct {
	FileID   string `gorm:"type:uuid;primaryKey"`
	TenantID string `gorm:"type:uuid;primaryKey"`
}

func (FileTenantModel) TableName() string { return "file_tenants" }

// PaymentPlanModel is the payment_plans table.
type PaymentPlanModel struct {
	ID         string `gorm:"type:uuid;primaryKey"`
	Interval   string `gorm:"size:16;not null"`
	Charge     int64  `gorm:"not null"`
	Currency   string `gorm:"size:8;not null"`
	ExternalID string `gorm:"size:64"`
}

func (PaymentPlanModel) TableName() string { return "payment_plans" }

func (m *PaymentPlanModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

func (m *PaymentPlanModel) ToPlan() *payment.Plan {
	return &payment.Plan{
		ID:         m.ID,
		Interval:   payment.ChargeInterval(m.Interval),
		Charge:     m.Charge,
		Currency:   payment.Currency(m.Currency),
		ExternalID: m.ExternalID,
	}
}
