package domain

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAffiliate  = "affiliate"
	RoleAdmin      = "admin"
)

// CommissionEligibleRoles may earn referral commissions or be recorded as a referrer.
var CommissionEligibleRoles = map[string]bool{
	RoleAffiliate:  true,
	RoleInstructor: true,
	RoleAdmin:      true,
}

const (
	PaymentMethodGateway = "gateway"
	PaymentMethodWallet  = "wallet"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

const (
	OrderCommissionPending   = "pending"
	OrderCommissionProcessed = "processed"
	OrderCommissionRejected  = "rejected"
)

const (
	RefundStatusNone      = "none"
	RefundStatusRequested = "requested"
	RefundStatusApproved  = "approved"
	RefundStatusRejected  = "rejected"
)

const (
	TxTypeCredit = "credit"
	TxTypeDebit  = "debit"
)

const TxStatusCompleted = "completed"

// Reference kinds a wallet transaction can point at.
const (
	RefCoursePurchase = "course_purchase"
	RefCommission     = "commission"
	RefWithdrawal     = "withdrawal"
	RefTopUp          = "topup"
	RefRefund         = "refund"
	RefCorrection     = "correction"
)

var referenceKinds = map[string]bool{
	RefCoursePurchase: true,
	RefCommission:     true,
	RefWithdrawal:     true,
	RefTopUp:          true,
	RefRefund:         true,
	RefCorrection:     true,
}

// ValidReferenceKind reports whether kind is one of the closed set of reference kinds.
func ValidReferenceKind(kind string) bool { return referenceKinds[kind] }

const (
	CommissionStatusPending   = "pending"
	CommissionStatusApproved  = "approved"
	CommissionStatusRejected  = "rejected"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

const MaxCommissionLevel = 3

const (
	WithdrawStatusPending    = "pending"
	WithdrawStatusApproved   = "approved"
	WithdrawStatusProcessing = "processing"
	WithdrawStatusCompleted  = "completed"
	WithdrawStatusRejected   = "rejected"
	WithdrawStatusCancelled  = "cancelled"
)

const (
	WithdrawMethodBank   = "bank"
	WithdrawMethodUPI    = "upi"
	WithdrawMethodPayPal = "paypal"
	WithdrawMethodWallet = "wallet"
)

const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

const (
	TopUpStatusPending   = "pending"
	TopUpStatusCompleted = "completed"
	TopUpStatusFailed    = "failed"
)

const (
	ReconcileKindOrderFinalize = "order_finalize"
	ReconcileStatusPending     = "pending"
	ReconcileStatusDone        = "done"
)

// Handled gateway webhook events.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// Identifier prefixes: {prefix}{epochMillis}{4 random digits}.
const (
	PrefixOrder       = "ORD"
	PrefixTransaction = "TXN"
	PrefixCommission  = "COM"
	PrefixWithdrawal  = "WDR"
	PrefixTopUp       = "TOP"
)

const SettingCommissionLevels = "commission_levels"
