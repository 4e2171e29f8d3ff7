package log

// Common field names for structured logging.
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldClientIP  = "client_ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldUserAgent = "user_agent"
	FieldError     = "error"
	FieldUsername  = "username"
	FieldExpenseID = "expense_id"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldOp        = "op"
)

// Standard component names.
const (
	ComponentServer  = "server"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAuth    = "auth"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentExport  = "export"
)
