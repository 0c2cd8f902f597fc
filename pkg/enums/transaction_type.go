package enums

import "fmt"

// TransactionType classifies a wallet transaction.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "deposit"
	TransactionTypeWithdraw    TransactionType = "withdraw"
	TransactionTypePayment     TransactionType = "payment"
	TransactionTypeRefund      TransactionType = "refund"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeCommission  TransactionType = "commission"
	TransactionTypeBonus       TransactionType = "bonus"
	TransactionTypePenalty     TransactionType = "penalty"
)

var validTransactionTypes = []TransactionType{
	TransactionTypeDeposit,
	TransactionTypeWithdraw,
	TransactionTypePayment,
	TransactionTypeRefund,
	TransactionTypeTransferIn,
	TransactionTypeTransferOut,
	TransactionTypeCommission,
	TransactionTypeBonus,
	TransactionTypePenalty,
}

// String implements fmt.Stringer.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionType.
func (t TransactionType) IsValid() bool {
	for _, candidate := range validTransactionTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Direction returns the balance direction this transaction type implies.
func (t TransactionType) Direction() TransactionDirection {
	switch t {
	case TransactionTypeDeposit, TransactionTypeRefund, TransactionTypeTransferIn, TransactionTypeBonus:
		return TransactionDirectionIn
	default:
		return TransactionDirectionOut
	}
}

// ParseTransactionType converts raw input into a TransactionType.
func ParseTransactionType(value string) (TransactionType, error) {
	for _, candidate := range validTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction type %q", value)
}
