package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/gatherz-backend/pkg/db/models"
	"github.com/danielvega/gatherz-backend/pkg/enums"
	pkgerrors "github.com/danielvega/gatherz-backend/pkg/errors"
	"github.com/danielvega/gatherz-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Ledger is the in-transaction wallet API other services compose with. Every
// method takes the caller's open transaction so the money movement commits or
// rolls back together with the caller's own writes.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, refID string) (*models.WalletTransaction, error)
	Reservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error)
	Release(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error)
	Capture(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error)
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, txnType enums.TransactionType, refID string, reason *string) (*models.WalletTransaction, error)
}

// Service exposes wallet operations to controllers plus the Ledger surface
// for in-transaction composition.
type Service interface {
	Ledger

	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error)
	Deposit(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error)
	Freeze(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error)
	Unfreeze(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error)
}

// InsufficientFundsDetails is the payload attached to INSUFFICIENT_FUNDS
// errors so clients can render the exact shortfall.
type InsufficientFundsDetails struct {
	AvailableBalance int64 `json:"availableBalance"`
	ReservedBalance  int64 `json:"reservedBalance"`
	TotalAvailable   int64 `json:"totalAvailable"`
	RequiredAmount   int64 `json:"requiredAmount"`
	Shortfall        int64 `json:"shortfall"`
}

type service struct {
	tx   txRunner
	repo Repository
}

// NewService builds the wallet service.
func NewService(tx txRunner, repo Repository) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{tx: tx, repo: repo}, nil
}

func validateAmount(amountCents int64) error {
	if amountCents <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func insufficientFunds(wallet *models.Wallet, requiredCents int64) error {
	details := InsufficientFundsDetails{
		RequiredAmount: requiredCents,
	}
	if wallet != nil {
		details.AvailableBalance = wallet.AvailableCents
		details.ReservedBalance = wallet.ReservedCents
		details.TotalAvailable = wallet.TotalCents()
		details.Shortfall = requiredCents - wallet.AvailableCents
	} else {
		details.Shortfall = requiredCents
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "wallet balance too low").WithDetails(details)
}

// insufficientReservedFunds mirrors insufficientFunds for operations drawing
// on the reserved balance, such as releasing an administrative hold.
func insufficientReservedFunds(wallet *models.Wallet, requiredCents int64) error {
	details := InsufficientFundsDetails{
		RequiredAmount: requiredCents,
	}
	if wallet != nil {
		details.AvailableBalance = wallet.AvailableCents
		details.ReservedBalance = wallet.ReservedCents
		details.TotalAvailable = wallet.TotalCents()
		details.Shortfall = requiredCents - wallet.ReservedCents
	} else {
		details.Shortfall = requiredCents
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "reserved balance too low").WithDetails(details)
}

func (s *service) Reserve(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, refID string) (*models.WalletTransaction, error) {
	if err := validateAmount(amountCents); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
	}

	moved, err := repo.MoveAvailableToReserved(ctx, wallet.ID, amountCents)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reserve funds")
	}
	if !moved {
		return nil, insufficientFunds(wallet, amountCents)
	}

	txn := &models.WalletTransaction{
		WalletID:    wallet.ID,
		UserID:      userID,
		Type:        enums.TransactionTypePayment,
		Direction:   enums.TransactionDirectionOut,
		AmountCents: amountCents,
		Status:      enums.TransactionStatusPending,
		RefID:       refID,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record reservation")
	}
	return txn, nil
}

// Reservation loads a reservation transaction for inspection.
func (s *service) Reservation(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	txn, err := s.repo.WithTx(tx).FindTransactionByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	return txn, nil
}

// Release returns reserved funds to the available balance. Calling it twice
// is a no-op; calling it after capture issues a compensating refund instead,
// also exactly once.
func (s *service) Release(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	repo := s.repo.WithTx(tx)
	txn, err := repo.FindTransactionByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if txn.Type != enums.TransactionTypePayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not a reservation")
	}

	switch txn.Status {
	case enums.TransactionStatusRefunded:
		return txn, nil
	case enums.TransactionStatusPending:
		moved, err := repo.MoveReservedToAvailable(ctx, txn.WalletID, txn.AmountCents)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "release funds")
		}
		if !moved {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reserved balance out of sync with reservation")
		}
		if err := repo.UpdateTransactionStatus(ctx, txn.ID, enums.TransactionStatusRefunded); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark reservation refunded")
		}
		txn.Status = enums.TransactionStatusRefunded
		return txn, nil
	case enums.TransactionStatusCompleted:
		return s.refundCaptured(ctx, repo, txn)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation cannot be released").
			WithDetails(map[string]string{"status": txn.Status.String()})
	}
}

// refundCaptured credits back an already captured reservation. The refund is
// keyed on the reservation id so retries find the existing row.
func (s *service) refundCaptured(ctx context.Context, repo Repository, reservation *models.WalletTransaction) (*models.WalletTransaction, error) {
	existing, err := repo.FindTransactionByTypeAndRef(ctx, enums.TransactionTypeRefund, reservation.ID.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "look up refund")
	}
	if existing != nil {
		return existing, nil
	}

	if err := repo.AddAvailable(ctx, reservation.WalletID, reservation.AmountCents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit refund")
	}
	reason := "refund of captured reservation"
	refund := &models.WalletTransaction{
		WalletID:    reservation.WalletID,
		UserID:      reservation.UserID,
		Type:        enums.TransactionTypeRefund,
		Direction:   enums.TransactionDirectionIn,
		AmountCents: reservation.AmountCents,
		Status:      enums.TransactionStatusCompleted,
		RefID:       reservation.ID.String(),
		Reason:      &reason,
	}
	if err := repo.CreateTransaction(ctx, refund); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record refund")
	}
	return refund, nil
}

// Capture removes reserved funds permanently. Idempotent on repeat calls;
// capturing a released reservation is a state conflict.
func (s *service) Capture(ctx context.Context, tx *gorm.DB, reservationID uuid.UUID) (*models.WalletTransaction, error) {
	repo := s.repo.WithTx(tx)
	txn, err := repo.FindTransactionByID(ctx, reservationID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load reservation")
	}
	if txn == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation not found")
	}
	if txn.Type != enums.TransactionTypePayment {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "transaction is not a reservation")
	}

	switch txn.Status {
	case enums.TransactionStatusCompleted:
		return txn, nil
	case enums.TransactionStatusPending:
		taken, err := repo.TakeReserved(ctx, txn.WalletID, txn.AmountCents)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "capture funds")
		}
		if !taken {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "reserved balance out of sync with reservation")
		}
		if err := repo.UpdateTransactionStatus(ctx, txn.ID, enums.TransactionStatusCompleted); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark reservation captured")
		}
		txn.Status = enums.TransactionStatusCompleted
		return txn, nil
	case enums.TransactionStatusRefunded:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation was already released")
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation cannot be captured").
			WithDetails(map[string]string{"status": txn.Status.String()})
	}
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amountCents int64, txnType enums.TransactionType, refID string, reason *string) (*models.WalletTransaction, error) {
	if err := validateAmount(amountCents); err != nil {
		return nil, err
	}
	if txnType.Direction() != enums.TransactionDirectionIn {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit requires an inbound transaction type")
	}
	repo := s.repo.WithTx(tx)
	wallet, err := repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
	}
	if err := repo.AddAvailable(ctx, wallet.ID, amountCents); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "credit wallet")
	}
	txn := &models.WalletTransaction{
		WalletID:    wallet.ID,
		UserID:      userID,
		Type:        txnType,
		Direction:   enums.TransactionDirectionIn,
		AmountCents: amountCents,
		Status:      enums.TransactionStatusCompleted,
		RefID:       refID,
		Reason:      reason,
	}
	if err := repo.CreateTransaction(ctx, txn); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record credit")
	}
	return txn, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, params ListTransactionsParams) ([]models.WalletTransaction, *pagination.Cursor, error) {
	txns, cursor, err := s.repo.ListTransactions(ctx, params)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list transactions")
	}
	return txns, cursor, nil
}

func (s *service) Deposit(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error) {
	var txn *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		txn, err = s.Credit(ctx, tx, userID, amountCents, enums.TransactionTypeDeposit, "", reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Withdraw(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error) {
	if err := validateAmount(amountCents); err != nil {
		return nil, err
	}
	var txn *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindOrCreateByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
		}
		taken, err := repo.TakeAvailable(ctx, wallet.ID, amountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "withdraw funds")
		}
		if !taken {
			return insufficientFunds(wallet, amountCents)
		}
		txn = &models.WalletTransaction{
			WalletID:    wallet.ID,
			UserID:      userID,
			Type:        enums.TransactionTypeWithdraw,
			Direction:   enums.TransactionDirectionOut,
			AmountCents: amountCents,
			Status:      enums.TransactionStatusCompleted,
			Reason:      reason,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Freeze moves available funds into the reserved balance as an administrative
// hold. The transaction stays in processing until unfrozen.
func (s *service) Freeze(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error) {
	if err := validateAmount(amountCents); err != nil {
		return nil, err
	}
	var txn *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindOrCreateByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
		}
		moved, err := repo.MoveAvailableToReserved(ctx, wallet.ID, amountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "freeze funds")
		}
		if !moved {
			return insufficientFunds(wallet, amountCents)
		}
		txn = &models.WalletTransaction{
			WalletID:    wallet.ID,
			UserID:      userID,
			Type:        enums.TransactionTypePenalty,
			Direction:   enums.TransactionDirectionOut,
			AmountCents: amountCents,
			Status:      enums.TransactionStatusProcessing,
			Reason:      reason,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Unfreeze(ctx context.Context, userID uuid.UUID, amountCents int64, reason *string) (*models.WalletTransaction, error) {
	if err := validateAmount(amountCents); err != nil {
		return nil, err
	}
	var txn *models.WalletTransaction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		wallet, err := repo.FindOrCreateByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load wallet")
		}
		moved, err := repo.MoveReservedToAvailable(ctx, wallet.ID, amountCents)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unfreeze funds")
		}
		if !moved {
			return insufficientReservedFunds(wallet, amountCents)
		}
		txn = &models.WalletTransaction{
			WalletID:    wallet.ID,
			UserID:      userID,
			Type:        enums.TransactionTypeRefund,
			Direction:   enums.TransactionDirectionIn,
			AmountCents: amountCents,
			Status:      enums.TransactionStatusCompleted,
			Reason:      reason,
		}
		return repo.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}
