package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	// General validation
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidFormat   Code = "INVALID_FORMAT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeExternalServiceError Code = "EXTERNAL_SERVICE_ERROR"
	CodeServiceTimeout       Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable   Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded    Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Pricing-specific error codes
const (
	// Blockchain/Ethereum errors
	CodeEthereumConnectionFailed Code = "ETHEREUM_CONNECTION_FAILED"
	CodeEthereumSubscribeFailed  Code = "ETHEREUM_SUBSCRIBE_FAILED"
	CodeEthereumRPCError         Code = "ETHEREUM_RPC_ERROR"
	CodeBlockNotFound            Code = "BLOCK_NOT_FOUND"

	// Pool state errors
	CodePoolNotFound       Code = "POOL_NOT_FOUND"
	CodePoolReadFailed     Code = "POOL_READ_FAILED"
	CodeTokenNotFound      Code = "TOKEN_NOT_FOUND"
	CodeTokenReadFailed    Code = "TOKEN_READ_FAILED"
	CodeContractCallFailed Code = "CONTRACT_CALL_FAILED"
	CodeInvalidSqrtPrice   Code = "INVALID_SQRT_PRICE"
	CodeInvalidAddress     Code = "INVALID_ADDRESS"

	// Pricing errors
	CodePriceCalculationFailed Code = "PRICE_CALCULATION_FAILED"
	CodeRefreshFailed          Code = "REFRESH_FAILED"
	CodeBundleStale            Code = "BUNDLE_STALE"

	// Persistence / publishing errors
	CodeStorageConnectionFailed Code = "STORAGE_CONNECTION_FAILED"
	CodeStorageWriteFailed      Code = "STORAGE_WRITE_FAILED"
	CodeMigrationFailed         Code = "MIGRATION_FAILED"
	CodePublishFailed           Code = "PUBLISH_FAILED"

	// Circuit breaker errors
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
