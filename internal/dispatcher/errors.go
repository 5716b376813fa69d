// Package dispatcher implements the upstream dispatcher (C7): one
// attempt against one candidate model, including payment attachment and
// response classification.
package dispatcher

import "fmt"

// ErrorKind classifies a dispatch outcome per spec.md §7.
type ErrorKind string

const (
	KindSuccess           ErrorKind = "success"
	KindPaymentFailed     ErrorKind = "payment_failed"
	KindProviderError     ErrorKind = "provider_error"
	KindTransportError    ErrorKind = "transport_error"
	KindClientError       ErrorKind = "client_error"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
)

// Recoverable reports whether the fallback executor should try the next
// candidate for this kind. client_error is the sole fatal kind.
func (k ErrorKind) Recoverable() bool {
	return k != KindClientError && k != KindSuccess
}

// RouterError is a typed error carrying an ErrorKind, status and model.
// Dispatch itself reports every outcome as a Result, and the fallback
// executor switches on Result.Kind rather than substring-matching error
// text the way the teacher's isRetryableError did.
type RouterError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Model   string
}

func (e *RouterError) Error() string {
	return fmt.Sprintf("%s (model=%s status=%d): %s", e.Kind, e.Model, e.Status, e.Message)
}
