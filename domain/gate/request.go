// Package gate provides request/response value types for the admission layer.
package gate

// Request represents an incoming gated request (value type).
// This is extracted from HTTP and passed to pure functions.
type Request struct {
	// Authentication. One entry per key credential presented; admission
	// requires exactly one.
	APIKeys []string

	// HTTP request details
	Method  string
	Path    string
	Query   string
	Headers map[string]string
	Body    []byte

	// Admission signals
	RemoteIP     string
	OriginDomain string
	UserAgent    string
	TraceID      string
}

// Response represents an upstream response (value type).
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte

	// Metadata (for logging)
	LatencyMs    int64
	UpstreamAddr string
}

// AuthContext contains authenticated caller information (value type).
type AuthContext struct {
	KeyID     string
	AccountID string
	Tier      string
}

// ErrorResponse represents an error to return to the client (value type).
type ErrorResponse struct {
	Status  int
	Code    string
	Message string
}

// Common error responses
var (
	ErrMissingKey = ErrorResponse{
		Status:  400,
		Code:    "missing_key",
		Message: "API key is required",
	}
	ErrDuplicateKey = ErrorResponse{
		Status:  400,
		Code:    "duplicate_key",
		Message: "More than one API key was provided",
	}
	ErrUnknownKey = ErrorResponse{
		Status:  400,
		Code:    "unknown_key",
		Message: "API key is not recognized",
	}
	ErrInactiveKey = ErrorResponse{
		Status:  400,
		Code:    "inactive_key",
		Message: "API key has been deactivated",
	}
	ErrRestricted = ErrorResponse{
		Status:  403,
		Code:    "restriction_violation",
		Message: "Request origin is not allowed for this key",
	}
	ErrQuotaExceeded = ErrorResponse{
		Status:  429,
		Code:    "quota_exceeded",
		Message: "Daily request quota exceeded",
	}
	ErrDelinquent = ErrorResponse{
		Status:  400,
		Code:    "delinquent_account",
		Message: "Account has unpaid invoices past their due date",
	}
	ErrInternal = ErrorResponse{
		Status:  500,
		Code:    "internal_error",
		Message: "Internal error",
	}
	ErrUpstream = ErrorResponse{
		Status:  502,
		Code:    "upstream_error",
		Message: "Upstream service unavailable",
	}
)
