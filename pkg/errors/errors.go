package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	// Procurement engine codes.
	CodeOverAllocation       Code = "OVER_ALLOCATION"
	CodeInvalidSourceRef     Code = "INVALID_SOURCE_REFERENCE"
	CodeItemNotInSource      Code = "ITEM_NOT_IN_SOURCE"
	CodeCancellationBlocked  Code = "CANCELLATION_BLOCKED"
	CodeOverlappingRuleRange Code = "OVERLAPPING_RULE_RANGE"
	CodeInsufficientSupplier Code = "INSUFFICIENT_SUPPLIERS"
	CodeBrokenChain          Code = "BROKEN_CHAIN"
	CodeCyclicChain          Code = "CYCLIC_CHAIN"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeConflict: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "conflict detected",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeInternal: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "internal server error",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeOverAllocation: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "quantity exceeds available",
		DetailsAllowed: true,
	},
	CodeInvalidSourceRef: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "invalid source reference",
		DetailsAllowed: true,
	},
	CodeItemNotInSource: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "item not present in source document",
		DetailsAllowed: true,
	},
	CodeCancellationBlocked: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "document has active descendants",
		DetailsAllowed: true,
	},
	CodeOverlappingRuleRange: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "amount range overlaps an active rule",
		DetailsAllowed: true,
	},
	CodeInsufficientSupplier: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "supplier count below required minimum",
		DetailsAllowed: true,
	},
	CodeBrokenChain: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "referenced ancestor is missing",
		DetailsAllowed: true,
	},
	CodeCyclicChain: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "document chain contains a cycle",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether any error in the chain carries the given code.
// Multi-errors produced by multierr unwrap into their components.
func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	if typed := As(err); typed != nil && typed.code == code {
		return true
	}
	if group, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range group.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	if inner := stdErrors.Unwrap(err); inner != nil && inner != err {
		return HasCode(inner, code)
	}
	return false
}
