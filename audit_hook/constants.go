package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"

	// Transaction actions
	ActionTransactionCreated  = "transaction.created"
	ActionTransactionReversed = "transaction.reversed"
	ActionImbalanceDetected   = "transaction.imbalance"

	// Period actions
	ActionPeriodLocked = "period.locked"
)

// Resource constants for audit events.
const (
	ResourceAccount     = "account"
	ResourceTransaction = "transaction"
	ResourcePeriod      = "period"
)

// Category constants for audit events.
const (
	CategoryLedger = "ledger"
	CategoryClose  = "close"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
