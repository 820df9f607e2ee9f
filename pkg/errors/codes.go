package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeStorageError       ErrorCode = "COMMON_015"
	ErrCodeMessageQueueError  ErrorCode = "COMMON_016"
	ErrCodeNotImplemented     ErrorCode = "COMMON_017"
)

// Contract Module Error Codes
const (
	ErrCodeContractNotFound        ErrorCode = "CON_001"
	ErrCodeContractAlreadyExists   ErrorCode = "CON_002"
	ErrCodeContractTypeUnsupported ErrorCode = "CON_003"
	ErrCodeContractUploadFailed    ErrorCode = "CON_004"
	ErrCodeContractTextUnavailable ErrorCode = "CON_005"
)

// Extraction Module Error Codes
const (
	ErrCodeExtractionNotFound       ErrorCode = "EXT_001"
	ErrCodeExtractionAlreadyRunning ErrorCode = "EXT_002"
	ErrCodeExtractionFailed         ErrorCode = "EXT_003"
	ErrCodeModelNotFound            ErrorCode = "EXT_004"
	ErrCodeProviderUnsupported      ErrorCode = "EXT_005"
	ErrCodeLLMResponseInvalid       ErrorCode = "EXT_006"
)

// Member / GWP Module Error Codes
const (
	ErrCodeMemberNotFound     ErrorCode = "MBR_001"
	ErrCodeGWPRowNotFound     ErrorCode = "MBR_002"
	ErrCodeImportSheetMissing ErrorCode = "MBR_003"
	ErrCodeImportRowInvalid   ErrorCode = "MBR_004"
)

// Authority Module Error Codes
const (
	ErrCodeAuthorityNotFound ErrorCode = "AUT_001"
	ErrCodeFieldNotFound     ErrorCode = "AUT_002"
)

// Portfolio Module Error Codes
const (
	ErrCodePortfolioNotFound      ErrorCode = "PFL_001"
	ErrCodePortfolioItemNotFound  ErrorCode = "PFL_002"
	ErrCodePortfolioItemDuplicate ErrorCode = "PFL_003"
	ErrCodeAllocationInvalid      ErrorCode = "PFL_004"
)

// Prompt Module Error Codes
const (
	ErrCodePromptNotFound   ErrorCode = "PRM_001"
	ErrCodePromptKeyUnknown ErrorCode = "PRM_002"
)

// Export Module Error Codes
const (
	ErrCodeExportFormatUnsupported ErrorCode = "EXP_001"
	ErrCodeExportFailed            ErrorCode = "EXP_002"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeMessageQueueError:  http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeContractNotFound:        http.StatusNotFound,
	ErrCodeContractAlreadyExists:   http.StatusConflict,
	ErrCodeContractTypeUnsupported: http.StatusBadRequest,
	ErrCodeContractUploadFailed:    http.StatusInternalServerError,
	ErrCodeContractTextUnavailable: http.StatusConflict,

	ErrCodeExtractionNotFound:       http.StatusNotFound,
	ErrCodeExtractionAlreadyRunning: http.StatusConflict,
	ErrCodeExtractionFailed:         http.StatusInternalServerError,
	ErrCodeModelNotFound:            http.StatusNotFound,
	ErrCodeProviderUnsupported:      http.StatusBadRequest,
	ErrCodeLLMResponseInvalid:       http.StatusBadGateway,

	ErrCodeMemberNotFound:     http.StatusNotFound,
	ErrCodeGWPRowNotFound:     http.StatusNotFound,
	ErrCodeImportSheetMissing: http.StatusBadRequest,
	ErrCodeImportRowInvalid:   http.StatusBadRequest,

	ErrCodeAuthorityNotFound: http.StatusNotFound,
	ErrCodeFieldNotFound:     http.StatusNotFound,

	ErrCodePortfolioNotFound:      http.StatusNotFound,
	ErrCodePortfolioItemNotFound:  http.StatusNotFound,
	ErrCodePortfolioItemDuplicate: http.StatusConflict,
	ErrCodeAllocationInvalid:      http.StatusBadRequest,

	ErrCodePromptNotFound:   http.StatusNotFound,
	ErrCodePromptKeyUnknown: http.StatusBadRequest,

	ErrCodeExportFormatUnsupported: http.StatusBadRequest,
	ErrCodeExportFailed:            http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeMessageQueueError:  "message queue error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeContractNotFound:        "contract not found",
	ErrCodeContractAlreadyExists:   "contract already uploaded",
	ErrCodeContractTypeUnsupported: "unsupported contract file type",
	ErrCodeContractUploadFailed:    "contract upload failed",
	ErrCodeContractTextUnavailable: "contract text has not been parsed",

	ErrCodeExtractionNotFound:       "extraction not found",
	ErrCodeExtractionAlreadyRunning: "extraction already in progress",
	ErrCodeExtractionFailed:         "extraction failed",
	ErrCodeModelNotFound:            "extraction model not found",
	ErrCodeProviderUnsupported:      "unsupported model provider",
	ErrCodeLLMResponseInvalid:       "model returned an unparseable response",

	ErrCodeMemberNotFound:     "member not found",
	ErrCodeGWPRowNotFound:     "GWP breakdown row not found",
	ErrCodeImportSheetMissing: "required worksheet missing from import file",
	ErrCodeImportRowInvalid:   "import row invalid",

	ErrCodeAuthorityNotFound: "authority not found",
	ErrCodeFieldNotFound:     "extracted field not found",

	ErrCodePortfolioNotFound:      "portfolio not found",
	ErrCodePortfolioItemNotFound:  "portfolio item not found",
	ErrCodePortfolioItemDuplicate: "authority already in portfolio",
	ErrCodeAllocationInvalid:      "allocation percentage invalid",

	ErrCodePromptNotFound:   "prompt not found",
	ErrCodePromptKeyUnknown: "unknown prompt key",

	ErrCodeExportFormatUnsupported: "unsupported export format",
	ErrCodeExportFailed:            "export generation failed",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
