package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	// Blockchain/Ethereum errors
	CodeEthereumConnectionFailed: "Failed to connect to Ethereum node",
	CodeEthereumSubscribeFailed:  "Failed to subscribe to Ethereum events",
	CodeEthereumRPCError:         "Ethereum RPC call failed",
	CodeBlockNotFound:            "Block not found",

	// Pool state errors
	CodePoolNotFound:       "Pool not found",
	CodePoolReadFailed:     "Failed to read pool state",
	CodeTokenNotFound:      "Token not found",
	CodeTokenReadFailed:    "Failed to read token metadata",
	CodeContractCallFailed: "Smart contract call failed",
	CodeInvalidSqrtPrice:   "Invalid sqrtPriceX96 value",
	CodeInvalidAddress:     "Invalid address",

	// Pricing errors
	CodePriceCalculationFailed: "Price calculation failed",
	CodeRefreshFailed:          "Price refresh failed",
	CodeBundleStale:            "ETH/USD bundle is stale",

	// Persistence / publishing errors
	CodeStorageConnectionFailed: "Failed to connect to storage",
	CodeStorageWriteFailed:      "Failed to write to storage",
	CodeMigrationFailed:         "Schema migration failed",
	CodePublishFailed:           "Failed to publish price update",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
