package apperror

// messages maps error codes to default human-readable messages.
var messages = map[Code]string{
	CodeRequiredField:   "required field is missing",
	CodeInvalidInput:    "invalid input",
	CodeInvalidFormat:   "invalid format",
	CodeInvalidState:    "invalid state",
	CodeNotFound:        "resource not found",
	CodeValidationError: "validation failed",

	CodeConfigurationError: "configuration error",

	CodeExternalServiceError: "external service error",
	CodeServiceTimeout:       "service timed out",
	CodeServiceUnavailable:   "service unavailable",
	CodeRateLimitExceeded:    "rate limit exceeded",

	CodeInternalError: "internal error",
	CodeUnknownError:  "unknown error",

	CodeRPCConnectionFailed: "rpc connection failed",
	CodeRPCError:            "rpc request failed",
	CodeAccountNotFound:     "account not found on chain",
	CodeBlockhashFetchError: "failed to fetch recent blockhash",
	CodeFeeEstimationFailed: "network fee estimation failed",

	CodeWebSocketConnectionError: "websocket connection error",
	CodeWebSocketReconnecting:    "websocket reconnecting",
	CodeWebSocketClosed:          "websocket closed",

	CodePoolDecodeFailed:   "pool account decode failed",
	CodeUnknownVenueFormat: "unknown venue format",
	CodeSourceUnavailable:  "price source unavailable",
	CodeStaleQuote:         "quote exceeds max age",
	CodeNoQuoteData:        "no quote data for pair",

	CodeProfitCalculationFailed: "profit calculation failed",
	CodeInsufficientLiquidity:   "insufficient liquidity",
	CodeInvalidTradeSize:        "invalid trade size",
	CodeInvalidPath:             "invalid trade path",

	CodeRiskStaleQuotes:     "rejected: path quotes too old",
	CodeRiskCircularPath:    "rejected: venue repeated in path",
	CodeRiskPositionSize:    "rejected: trade size exceeds position limit",
	CodeRiskExposureTripped: "rejected: exposure breaker tripped",
	CodeRiskThinLiquidity:   "rejected: trade size too large for pool depth",

	CodeSimulationFailed:    "transaction simulation failed",
	CodeSimulationMismatch:  "simulated output below tolerance",
	CodeSubmissionFailed:    "transaction submission failed",
	CodeConfirmationTimeout: "confirmation retry budget exhausted",
	CodeTradeExpired:        "opportunity expired before submission",
	CodeSigningFailed:       "transaction signing failed",

	CodeCircuitOpen:     "circuit breaker open",
	CodeCircuitHalfOpen: "circuit breaker half-open",
}
