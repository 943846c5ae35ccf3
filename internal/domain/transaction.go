package domain

// TransactionKind identifies a stock-affecting operation on an item
type TransactionKind string

const (
	KindCreate  TransactionKind = "create"
	KindAdd     TransactionKind = "add"
	KindIssue   TransactionKind = "issue"
	KindReturn  TransactionKind = "return"
	KindConsume TransactionKind = "consume"
	KindMove    TransactionKind = "move"
	KindEdit    TransactionKind = "edit"
)

// IsValid checks if the transaction kind is one of the defined kinds
func (k TransactionKind) IsValid() bool {
	switch k {
	case KindCreate, KindAdd, KindIssue, KindReturn, KindConsume, KindMove, KindEdit:
		return true
	default:
		return false
	}
}

// RequiresCounterparty reports whether the kind needs an issued-to/returned-by person
func (k TransactionKind) RequiresCounterparty() bool {
	switch k {
	case KindIssue, KindReturn, KindConsume:
		return true
	default:
		return false
	}
}

// AllowsSupplier reports whether a supplier reference is meaningful for the kind
func (k TransactionKind) AllowsSupplier() bool {
	return k == KindAdd || k == KindCreate
}
