package consts

// order states
const (
	OrderStateDraft  = "draft"
	OrderStateSent   = "sent"
	OrderStateSale   = "sale"
	OrderStateCancel = "cancel"
)

// transaction states
const (
	TxStateDraft      = "draft"
	TxStatePending    = "pending"
	TxStateAuthorized = "authorized"
	TxStateDone       = "done"
	TxStateCancel     = "cancel"
	TxStateError      = "error"
)

// transaction operations
const (
	TxOperationOnlineRedirect = "online_redirect"
	TxOperationOnlineDirect   = "online_direct"
	TxOperationOffline        = "offline"
)

// provider states
const (
	ProviderStateEnabled  = "enabled"
	ProviderStateTest     = "test"
	ProviderStateDisabled = "disabled"
)

// ProviderCodeWireTransfer is the offline bank transfer provider.
const ProviderCodeWireTransfer = "wire_transfer"

// confirmation policies
const (
	ConfirmPolicyAnyTransaction = "any_transaction"
	ConfirmPolicyPrepayment     = "prepayment"
)

const (
	UserRoleAdmin    = "admin"
	UserRoleCustomer = "customer"
)

// event topics (prefixed at runtime)
const (
	TopicPaymentSettled = "payment.settled"
	TopicOrderConfirmed = "order.confirmed"
)
