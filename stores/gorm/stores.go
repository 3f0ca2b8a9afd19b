package gorm

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	kd "github.com/kumori-disk/kumori-disk"
	"github.com/kumori-disk/kumori-disk/file"
	"github.com/kumori-disk/kumori-disk/payment"
	"github.com/kumori-disk/kumori-disk/tx"
)

// =============================================================================
// UserStore
// =============================================================================

// UserStore implements kd.UserStore using GORM.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) Create(ctx context.Context, data kd.CreateUser) (*kd.User, error) {
	model := &UserModel{
		Email:              data.Email,
		Username:           data.Username,
		PasswordHash:       data.PasswordHash,
		ConfirmationStatus: string(data.ConfirmationStatus),
		DiskSpaceBytes:     data.DiskSpaceBytes,
	}
	if err := tx.GormFrom(ctx, s.db).Create(model).Error; err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*kd.User, error) {
	var model UserModel
	err := tx.GormFrom(ctx, s.db).First(&model, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*kd.User, error) {
	var model UserModel
	err := tx.GormFrom(ctx, s.db).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToUser(), nil
}

func (s *UserStore) ExistsByID(ctx context.Context, id string) (bool, error) {
	var count int64
	err := tx.GormFrom(ctx, s.db).Model(&UserModel{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *UserStore) UpdateConfirmationStatus(ctx context.Context, id string, status kd.ConfirmationStatus) (bool, error) {
	result := tx.GormFrom(ctx, s.db).Model(&UserModel{}).
		Where("id = ?", id).
		Update("confirmation_status", string(status))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// SubtractDiskSpace decrements quota only when enough remains; the guard and
// the write are one statement so concurrent uploads cannot overdraw.
func (s *UserStore) SubtractDiskSpace(ctx context.Context, id string, bytes int64) (bool, error) {
	result := tx.GormFrom(ctx, s.db).Model(&UserModel{}).
		Where("id = ? AND disk_space_bytes >= ?", id, bytes).
		UpdateColumn("disk_space_bytes", gorm.Expr("disk_space_bytes - ?", bytes))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// =============================================================================
// ProviderLinkStore
// =============================================================================

// ProviderLinkStore implements kd.ProviderLinkStore using GORM.
type ProviderLinkStore struct {
	db *gorm.DB
}

func NewProviderLinkStore(db *gorm.DB) *ProviderLinkStore {
	return &ProviderLinkStore{db: db}
}

func (s *ProviderLinkStore) FindByUserAndProvider(ctx context.Context, userID string, provider kd.Provider) (*kd.ProviderLink, error) {
	descriptor, err := s.FindProviderByName(ctx, provider)
	if err != nil {
		return nil, err
	}
	if descriptor == nil {
		return nil, nil
	}

	var model UserProviderModel
	err = tx.GormFrom(ctx, s.db).
		First(&model, "user_id = ? AND provider_id = ?", userID, descriptor.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToLink(), nil
}

func (s *ProviderLinkStore) Create(ctx context.Context, link *kd.ProviderLink) error {
	model := &UserProviderModel{
		UserID:         link.UserID,
		ProviderID:     link.ProviderID,
		ProviderUserID: link.ProviderUserID,
	}
	return tx.GormFrom(ctx, s.db).Create(model).Error
}

func (s *ProviderLinkStore) FindProviderByName(ctx context.Context, name kd.Provider) (*kd.ProviderDescriptor, error) {
	var model ProviderModel
	err := tx.GormFrom(ctx, s.db).First(&model, "name = ?", string(name)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToDescriptor(), nil
}

// =============================================================================
// FileStore
// =============================================================================

// FileStore implements file.Store using GORM.
type FileStore struct {
	db *gorm.DB
}

func NewFileStore(db *gorm.DB) *FileStore {
	return &FileStore{db: db}
}

func (s *FileStore) FindByID(ctx context.Context, id string) (*file.File, error) {
	db := tx.GormFrom(ctx, s.db)

	var model FileModel
	err := db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tenantIDs, err := s.tenantIDs(db, model.ID)
	if err != nil {
		return nil, err
	}
	return model.ToFile(tenantIDs), nil
}

func (s *FileStore) FindManyByIDs(ctx context.Context, ids []string) ([]*file.File, error) {
	db := tx.GormFrom(ctx, s.db)

	var models []FileModel
	if err := db.Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, err
	}

	files := make([]*file.File, len(models))
	for i, model := range models {
		tenantIDs, err := s.tenantIDs(db, model.ID)
		if err != nil {
			return nil, err
		}
		files[i] = model.ToFile(tenantIDs)
	}
	return files, nil
}

// Create inserts the metadata row and seeds the sharing relation with the
// owner.
func (s *FileStore) Create(ctx context.Context, data file.CreateFile) (*file.File, error) {
	db := tx.GormFrom(ctx, s.db)

	model := &FileModel{
		Key:         data.Key,
		SizeInBytes: data.SizeInBytes,
		OwnerID:     data.OwnerID,
		OwnerType:   string(data.OwnerType),
	}
	if err := db.Create(model).Error; err != nil {
		return nil, err
	}

	tenant := &FileTenantModel{FileID: model.ID, TenantID: data.OwnerID}
	if err := db.Create(tenant).Error; err != nil {
		return nil, err
	}

	return model.ToFile([]string{data.OwnerID}), nil
}

func (s *FileStore) UpdateKey(ctx context.Context, id, key string) (bool, error) {
	result := tx.GormFrom(ctx, s.db).Model(&FileModel{}).
		Where("id = ?", id).
		Update("key", key)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *FileStore) AttachTenant(ctx context.Context, fileIDs []string, tenantID string) error {
	db := tx.GormFrom(ctx, s.db)

	rows := make([]FileTenantModel, len(fileIDs))
	for i, fileID := range fileIDs {
		rows[i] = FileTenantModel{FileID: fileID, TenantID: tenantID}
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (s *FileStore) DetachTenant(ctx context.Context, fileIDs []string, tenantID string) error {
	return tx.GormFrom(ctx, s.db).
		Delete(&FileTenantModel{}, "file_id IN ? AND tenant_id = ?", fileIDs, tenantID).Error
}

func (s *FileStore) Delete(ctx context.Context, id string) (bool, error) {
	db := tx.GormFrom(ctx, s.db)

	if err := db.Delete(&FileTenantModel{}, "file_id = ?", id).Error; err != nil {
		return false, err
	}

	result := db.Delete(&FileModel{}, "id = ?", id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *FileStore) tenantIDs(db *gorm.DB, fileID string) ([]string, error) {
	var ids []string
	err := db.Model(&FileTenantModel{}).
		Where("file_id = ?", fileID).
		Pluck("tenant_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// =============================================================================
// PaymentPlanStore
// =============================================================================

// PaymentPlanStore implements payment.PlanStore using GORM.
type PaymentPlanStore struct {
	db *gorm.DB
}

func NewPaymentPlanStore(db *gorm.DB) *PaymentPlanStore {
	return &PaymentPlanStore{db: db}
}

func (s *PaymentPlanStore) FindByID(ctx context.Context, id string) (*payment.Plan, error) {
	var model PaymentPlanModel
	err := tx.GormFrom(ctx, s.db).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return model.ToPlan(), nil
}

func (s *PaymentPlanStore) List(ctx context.Context) ([]*payment.Plan, error) {
	var models []PaymentPlanModel
	if err := tx.GormFrom(ctx, s.db).Find(&models).Error; err != nil {
		return nil, err
	}

	plans := make([]*payment.Plan, len(models))
	for i, model := range models {
		plans[i] = model.ToPlan()
	}
	return plans, nil
}

func (s *PaymentPlanStore) Create(ctx context.Context, plan *payment.Plan) error {
	model := &PaymentPlanModel{
		ID:         plan.ID,
		Interval:   string(plan.Interval),
		Charge:     plan.Charge,
		Currency:   string(plan.Currency),
		ExternalID: plan.ExternalID,
	}
	if err := tx.GormFrom(ctx, s.db).Create(model).Error; err != nil {
		return err
	}
	plan.ID = model.ID
	return nil
}

// EnsureProvider registers a provider row if it is not there yet. Called at
// startup so the OAuth flows always find their descriptor.
func EnsureProvider(ctx context.Context, db *gorm.DB, name kd.Provider) error {
	model := &ProviderModel{Name: string(name)}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}
