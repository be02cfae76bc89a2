package model

import "fmt"

// Local error taxonomy for provider failures. Callers match with errors.Is;
// adapters wrap these with provider detail.
var (
	// ErrInvalidCredential indicates a missing or rejected provider API key.
	ErrInvalidCredential = fmt.Errorf("invalid provider credential")
	// ErrQuotaExhausted indicates the provider account ran out of quota.
	ErrQuotaExhausted = fmt.Errorf("provider quota exhausted")
	// ErrModelUnavailable indicates the requested model does not exist or is
	// not accessible to the credential.
	ErrModelUnavailable = fmt.Errorf("model unavailable")
	// ErrTransient covers timeouts, rate limits and other failures worth a
	// later retry by the caller.
	ErrTransient = fmt.Errorf("transient provider failure")
)

// TranslateStatus maps an HTTP status and provider error code to the local
// taxonomy. Shared by the provider adapters so both classify identically.
func TranslateStatus(status int, code string) error {
	switch {
	case status == 401 || code == "invalid_api_key" || code == "authentication_error":
		return ErrInvalidCredential
	case code == "insufficient_quota":
		return ErrQuotaExhausted
	case status == 404 || code == "model_not_found" || code == "not_found_error":
		return ErrModelUnavailable
	case status == 403:
		return ErrInvalidCredential
	default:
		return ErrTransient
	}
}
