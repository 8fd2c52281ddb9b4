package shared

// TransactionStatus defines the lifecycle states of a ledger transaction
type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "PENDING"
	TransactionStatusActive   TransactionStatus = "ACTIVE"
	TransactionStatusOnHold   TransactionStatus = "ON_HOLD"
	TransactionStatusApproved TransactionStatus = "APPROVED"
	TransactionStatusCanceled TransactionStatus = "CANCELED"
	TransactionStatusFailed   TransactionStatus = "FAILED"
	TransactionStatusRefund   TransactionStatus = "REFUND"
	TransactionStatusPartial  TransactionStatus = "PARTIAL"
)

var transactionStatuses = map[TransactionStatus]struct{}{
	TransactionStatusPending:  {},
	TransactionStatusActive:   {},
	TransactionStatusOnHold:   {},
	TransactionStatusApproved: {},
	TransactionStatusCanceled: {},
	TransactionStatusFailed:   {},
	TransactionStatusRefund:   {},
	TransactionStatusPartial:  {},
}

func (s TransactionStatus) IsValid() bool {
	_, ok := transactionStatuses[s]
	return ok
}

// IsFinal reports whether no further status change is allowed from s
func (s TransactionStatus) IsFinal() bool {
	switch s {
	case TransactionStatusApproved, TransactionStatusCanceled, TransactionStatusFailed, TransactionStatusRefund:
		return true
	}
	return false
}

// ParticipantRole defines how a participant takes part in a transaction
type ParticipantRole string

const (
	ParticipantRoleSender   ParticipantRole = "SENDER"
	ParticipantRoleReceiver ParticipantRole = "RECEIVER"
	ParticipantRoleApprover ParticipantRole = "APPROVER"
	ParticipantRoleFee      ParticipantRole = "FEE"
	ParticipantRoleTax      ParticipantRole = "TAX"
)

func (r ParticipantRole) IsValid() bool {
	switch r {
	case ParticipantRoleSender, ParticipantRoleReceiver, ParticipantRoleApprover, ParticipantRoleFee, ParticipantRoleTax:
		return true
	}
	return false
}

// IsDebit reports whether the role takes funds out
func (r ParticipantRole) IsDebit() bool {
	return r == ParticipantRoleSender || r == ParticipantRoleFee || r == ParticipantRoleTax
}

// IsCredit reports whether the role receives funds
func (r ParticipantRole) IsCredit() bool {
	return r == ParticipantRoleReceiver || r == ParticipantRoleFee || r == ParticipantRoleTax
}

// ParticipantType defines what kind of party a participant is
type ParticipantType string

const (
	ParticipantTypeUser   ParticipantType = "USER"
	ParticipantTypeEntity ParticipantType = "ENTITY"
)

func (t ParticipantType) IsValid() bool {
	return t == ParticipantTypeUser || t == ParticipantTypeEntity
}

// ActorType identifies who performed an audited action
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeEntity ActorType = "ENTITY"
	ActorTypeSystem ActorType = "SYSTEM"
)

func (a ActorType) IsValid() bool {
	switch a {
	case ActorTypeUser, ActorTypeEntity, ActorTypeSystem:
		return true
	}
	return false
}

// RequiresActorID is true for every actor type except SYSTEM
func (a ActorType) RequiresActorID() bool {
	return a != ActorTypeSystem
}

// AuditActionType enumerates audited actions
type AuditActionType string

const (
	AuditActionCreate          AuditActionType = "CREATE"
	AuditActionUpdateStatus    AuditActionType = "UPDATE_STATUS"
	AuditActionRefund          AuditActionType = "REFUND"
	AuditActionCancel          AuditActionType = "CANCEL"
	AuditActionApprove         AuditActionType = "APPROVE"
	AuditActionReject          AuditActionType = "REJECT"
	AuditActionLock            AuditActionType = "LOCK"
	AuditActionUnlock          AuditActionType = "UNLOCK"
	AuditActionVerifySignature AuditActionType = "VERIFY_SIGNATURE"
	AuditActionVerifyChain     AuditActionType = "VERIFY_CHAIN"
)

func (a AuditActionType) IsValid() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdateStatus, AuditActionRefund, AuditActionCancel, AuditActionApprove,
		AuditActionReject, AuditActionLock, AuditActionUnlock, AuditActionVerifySignature, AuditActionVerifyChain:
		return true
	}
	return false
}

// IsStateModifying reports whether the action changes the transaction state
func (a AuditActionType) IsStateModifying() bool {
	switch a {
	case AuditActionCreate, AuditActionUpdateStatus, AuditActionRefund, AuditActionCancel,
		AuditActionApprove, AuditActionReject:
		return true
	}
	return false
}

// IsSecurityAction reports whether the action belongs to the security trail
func (a AuditActionType) IsSecurityAction() bool {
	switch a {
	case AuditActionLock, AuditActionUnlock, AuditActionVerifySignature, AuditActionVerifyChain:
		return true
	}
	return false
}

// Severity returns 1 (info), 2 (warning) or 3 (critical)
func (a AuditActionType) Severity() int {
	switch a {
	case AuditActionRefund, AuditActionCancel, AuditActionReject, AuditActionLock:
		return 3
	case AuditActionUpdateStatus, AuditActionApprove, AuditActionUnlock:
		return 2
	}
	return 1
}

// ActionForStatus maps a target status to the audit action recorded for it
func ActionForStatus(s TransactionStatus) AuditActionType {
	switch s {
	case TransactionStatusApproved:
		return AuditActionApprove
	case TransactionStatusCanceled:
		return AuditActionCancel
	case TransactionStatusRefund:
		return AuditActionRefund
	case TransactionStatusFailed:
		return AuditActionReject
	}
	return AuditActionUpdateStatus
}

// LockType enumerates reasons a transaction can be held
type LockType string

const (
	LockTypeHold              LockType = "HOLD"
	LockTypeManualApproval    LockType = "MANUAL_APPROVAL"
	LockTypeFraudReview       LockType = "FRAUD_REVIEW"
	LockTypeComplianceCheck   LockType = "COMPLIANCE_CHECK"
	LockTypeInsufficientFunds LockType = "INSUFFICIENT_FUNDS"
)

func (l LockType) IsValid() bool {
	return l.Priority() > 0
}

// Priority orders lock types, higher is more severe
func (l LockType) Priority() int {
	switch l {
	case LockTypeHold:
		return 1
	case LockTypeInsufficientFunds:
		return 2
	case LockTypeManualApproval, LockTypeComplianceCheck:
		return 3
	case LockTypeFraudReview:
		return 4
	}
	return 0
}

func (l LockType) RequiresManualIntervention() bool {
	return l == LockTypeManualApproval || l == LockTypeFraudReview || l == LockTypeComplianceCheck
}

func (l LockType) CanBeAutoResolved() bool {
	return l == LockTypeHold || l == LockTypeInsufficientFunds
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

// EventType identifies a ledger event published through the outbox
type EventType string

const (
	EventTransactionCreated EventType = "TRANSACTION_CREATED"
	EventStatusChanged      EventType = "STATUS_CHANGED"
	EventLockPlaced         EventType = "LOCK_PLACED"
	EventAuditRecorded      EventType = "AUDIT_RECORDED"
)
