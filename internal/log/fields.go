package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID        = "user_id"
	FieldUsername      = "username"
	FieldEntity        = "entity"
	FieldGroupID       = "group_id"
	FieldCategoryID    = "category_id"
	FieldAccountID     = "account_id"
	FieldTransactionID = "transaction_id"
	FieldActiveTab     = "active_tab"
	FieldActiveFilter  = "active_filter"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentHTTP     = "http"
	ComponentAuth     = "auth"
	ComponentStorage  = "storage"
	ComponentEvents   = "events"
	ComponentTemplate = "template"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpLogin    = "login"
	OpSignup   = "signup"
	OpLogout   = "logout"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
