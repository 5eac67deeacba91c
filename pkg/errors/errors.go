package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
}

// WithMessage 保留错误码，替换提示信息
func (d Definition) WithMessage(msg string) Definition {
	d.Message = msg
	return d
}

// 通用错误。
var (
	InvalidRequest      = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	ResourceNotFound    = Definition{Code: "RESOURCE_NOT_FOUND", Message: "Resource not found"}
	TooManyRequests     = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests"}
	InternalServerError = Definition{Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
)

// 用户模块错误。
var (
	InvalidUserID    = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format"}
	UserNotFound     = Definition{Code: "USER_NOT_FOUND", Message: "User not found"}
	ValidationFailed = Definition{Code: "VALIDATION_FAILED", Message: "Name and email are required"}
)

// 商品模块错误。
var (
	ProductsUnavailable = Definition{Code: "PRODUCTS_UNAVAILABLE", Message: "Database connection failed"}
)

// 遥测模块错误。
var (
	TelemetryUnavailable = Definition{Code: "TELEMETRY_UNAVAILABLE", Message: "Telemetry exporter is not configured"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	InvalidRequest.Code:       InvalidRequest,
	ResourceNotFound.Code:     ResourceNotFound,
	TooManyRequests.Code:      TooManyRequests,
	InternalServerError.Code:  InternalServerError,
	InvalidUserID.Code:        InvalidUserID,
	UserNotFound.Code:         UserNotFound,
	ValidationFailed.Code:     ValidationFailed,
	ProductsUnavailable.Code:  ProductsUnavailable,
	TelemetryUnavailable.Code: TelemetryUnavailable,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
