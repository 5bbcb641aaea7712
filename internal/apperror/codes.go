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

// Chain access error codes
const (
	CodeRPCConnectionFailed Code = "RPC_CONNECTION_FAILED"
	CodeRPCError            Code = "RPC_ERROR"
	CodeAccountNotFound     Code = "ACCOUNT_NOT_FOUND"
	CodeBlockhashFetchError Code = "BLOCKHASH_FETCH_ERROR"
	CodeFeeEstimationFailed Code = "FEE_ESTIMATION_FAILED"

	// WebSocket errors
	CodeWebSocketConnectionError Code = "WEBSOCKET_CONNECTION_ERROR"
	CodeWebSocketReconnecting    Code = "WEBSOCKET_RECONNECTING"
	CodeWebSocketClosed          Code = "WEBSOCKET_CLOSED"
)

// Pricing error codes
const (
	CodePoolDecodeFailed   Code = "POOL_DECODE_FAILED"
	CodeUnknownVenueFormat Code = "UNKNOWN_VENUE_FORMAT"
	CodeSourceUnavailable  Code = "SOURCE_UNAVAILABLE"
	CodeStaleQuote         Code = "STALE_QUOTE"
	CodeNoQuoteData        Code = "NO_QUOTE_DATA"
)

// Opportunity detection error codes
const (
	CodeProfitCalculationFailed Code = "PROFIT_CALCULATION_FAILED"
	CodeInsufficientLiquidity   Code = "INSUFFICIENT_LIQUIDITY"
	CodeInvalidTradeSize        Code = "INVALID_TRADE_SIZE"
	CodeInvalidPath             Code = "INVALID_PATH"
)

// Risk gate rejection codes. One per rejection reason so callers can
// count and log rejections per cause.
const (
	CodeRiskStaleQuotes     Code = "RISK_STALE_QUOTES"
	CodeRiskCircularPath    Code = "RISK_CIRCULAR_PATH"
	CodeRiskPositionSize    Code = "RISK_POSITION_SIZE"
	CodeRiskExposureTripped Code = "RISK_EXPOSURE_TRIPPED"
	CodeRiskThinLiquidity   Code = "RISK_THIN_LIQUIDITY"
)

// Execution error codes
const (
	CodeSimulationFailed    Code = "SIMULATION_FAILED"
	CodeSimulationMismatch  Code = "SIMULATION_MISMATCH"
	CodeSubmissionFailed    Code = "SUBMISSION_FAILED"
	CodeConfirmationTimeout Code = "CONFIRMATION_TIMEOUT"
	CodeTradeExpired        Code = "TRADE_EXPIRED"
	CodeSigningFailed       Code = "SIGNING_FAILED"
)

// Circuit breaker errors
const (
	CodeCircuitOpen     Code = "CIRCUIT_OPEN"
	CodeCircuitHalfOpen Code = "CIRCUIT_HALF_OPEN"
)
