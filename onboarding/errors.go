package onboarding

import (
	"errors"
	"fmt"
	"time"
)

// Share lookup codes reported by the TKey facade.
const (
	TKeyDeviceShareNotFound = 1009
	TKeySocialShareNotFound = 1021
)

// TKeyError is a coded failure of the TKey facade.
type TKeyError struct {
	Code    int
	Message string
}

func (e *TKeyError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tkey error %d", e.Code)
	}

	return fmt.Sprintf("tkey error %d: %s", e.Code, e.Message)
}

// TKeyCode extracts the code of a *TKeyError anywhere in err's chain.
func TKeyCode(err error) (int, bool) {
	var te *TKeyError
	if errors.As(err, &te) {
		return te.Code, true
	}

	return 0, false
}

// JSON-RPC codes returned by the API gateway.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeServiceFailure   = -32052
	CodeOTPNotDelivered  = -32054
	CodeTooManyRequests  = -32058
	CodeWrongPhoneNumber = -32060
	CodeInvalidOTP       = -32061
)

// APIGatewayError is a JSON-RPC error from the API gateway.
type APIGatewayError struct {
	Code    int
	Message string
}

func (e *APIGatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api gateway error %d", e.Code)
	}

	return fmt.Sprintf("api gateway error %d: %s", e.Code, e.Message)
}

// ProtocolFailure reports the generic JSON-RPC and server failures.
func (e *APIGatewayError) ProtocolFailure() bool {
	switch e.Code {
	case CodeParseError, CodeInvalidRequest, CodeMethodNotFound, CodeInvalidParams,
		CodeInternalError, CodeServiceFailure:
		return true
	default:
		return false
	}
}

// Broken reports codes after which the phone flow cannot continue.
func (e *APIGatewayError) Broken() bool {
	return e.ProtocolFailure() || e.Code == CodeTooManyRequests
}

// WrongNumber reports that the phone number is not the one on record.
func (e *APIGatewayError) WrongNumber() bool {
	return e.Code == CodeWrongPhoneNumber
}

// NotDelivered reports that the OTP could not be delivered.
func (e *APIGatewayError) NotDelivered() bool {
	return e.Code == CodeOTPNotDelivered
}

// AsAPIGatewayError finds a *APIGatewayError in err's chain.
func AsAPIGatewayError(err error) (*APIGatewayError, bool) {
	var ge *APIGatewayError
	if errors.As(err, &ge) {
		return ge, true
	}

	return nil, false
}

// CooldownError means the caller must wait before retrying.
type CooldownError struct {
	Cooldown time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown for %s", e.Cooldown)
}

// AsCooldown finds a *CooldownError in err's chain.
func AsCooldown(err error) (*CooldownError, bool) {
	var ce *CooldownError
	if errors.As(err, &ce) {
		return ce, true
	}

	return nil, false
}
