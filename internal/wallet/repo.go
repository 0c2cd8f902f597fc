package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

// Repository exposes persistence helpers for wallets and their transactions.
// Balance mutations are single conditional UPDATEs so two writers can never
// drive a balance negative; the bool result reports whether the guard held.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error)

	MoveAvailableToReserved(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error)
	MoveReservedToAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error)
	TakeReserved(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error)
	TakeAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error)
	AddAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) error

	CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error
	FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error)
	FindTransactionByTypeAndRef(ctx context.Context, txnType enums.TransactionType, refID string) (*models.WalletTransaction, error)
	UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
}

// ListTransactionsParams filters the transaction history query.
type ListTransactionsParams struct {
	UserID uuid.UUID
	Type   *enums.TransactionType
	Limit  int
	Cursor *pagination.Cursor
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindOrCreateByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet := models.Wallet{ID: uuid.New(), UserID: userID}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&wallet).Error
	if err != nil {
		return nil, err
	}
	// ON CONFLICT DO NOTHING leaves the struct without the existing row's id.
	return r.FindByUserID(ctx, userID)
}

func (r *repositoryImpl) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repositoryImpl) MoveAvailableToReserved(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND available_cents >= ?", walletID, amountCents).
		Updates(map[string]any{
			"available_cents": gorm.Expr("available_cents - ?", amountCents),
			"reserved_cents":  gorm.Expr("reserved_cents + ?", amountCents),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) MoveReservedToAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND reserved_cents >= ?", walletID, amountCents).
		Updates(map[string]any{
			"reserved_cents":  gorm.Expr("reserved_cents - ?", amountCents),
			"available_cents": gorm.Expr("available_cents + ?", amountCents),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) TakeReserved(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND reserved_cents >= ?", walletID, amountCents).
		UpdateColumn("reserved_cents", gorm.Expr("reserved_cents - ?", amountCents))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) TakeAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND available_cents >= ?", walletID, amountCents).
		UpdateColumn("available_cents", gorm.Expr("available_cents - ?", amountCents))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) AddAvailable(ctx context.Context, walletID uuid.UUID, amountCents int64) error {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ?", walletID).
		UpdateColumn("available_cents", gorm.Expr("available_cents + ?", amountCents))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) CreateTransaction(ctx context.Context, txn *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repositoryImpl) FindTransactionByID(ctx context.Context, id uuid.UUID) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repositoryImpl) FindTransactionByTypeAndRef(ctx context.Context, txnType enums.TransactionType, refID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND ref_id = ?", txnType, refID).
		First(&txn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repositoryImpl) UpdateTransactionStatus(ctx context.Context, id uuid.UUID, status enums.TransactionStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("id = ?", id).
		UpdateColumn("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repositoryImpl) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	limit := pagination.LimitWithBuffer(params.Limit)
	normalized := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ?", params.UserID)
	if params.Type != nil {
		query = query.Where("type = ?", *params.Type)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var txns []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, nil, err
	}

	if len(txns) > normalized {
		next := txns[normalized]
		txns = txns[:normalized]
		return txns, &pagination.Cursor{CreatedAt: next.CreatedAt, ID: next.ID}, nil
	}
	return txns, nil, nil
}
