// Package domainerrors defines typed business failures identified by stable
// string codes. Services return these so transports can map "why it failed"
// to a response without parsing message text, and handlers re-wrap them with
// an operation scope so callers can also tell "which action failed".
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, user-facing failure identifier.
type Code string

// Authentication.
const (
	CodeAuthTokenInvalid Code = "AUTH_TOKEN_INVALID"
	CodeUserTokenInvalid Code = "ERR_CORE_USER_TOKEN_INVALID"
	CodeUserIPNeeded     Code = "ERR_CORE_USER_IP_IS_NEEDED"
)

// Authorization.
const (
	CodeMustBeAdminOrOwner      Code = "MUST_BE_ADMIN_OR_DATA_OWNER"
	CodeMustBeAdminToChangeData Code = "MUST_BE_ADMIN_TO_CHANGE_THIS_DATA"
	CodeMustBeAdminToFind       Code = "MUST_BE_ADMIN_TO_FIND_BY_QUERY"
	CodeRestrictedAccess        Code = "RESTRICTED_ACCESS"
	CodeMustBeSuperAdmin        Code = "MUST_BE_SUPER_ADMIN_TO_FETCH_ADMINS"
	CodeMustBeAdminToProcess    Code = "MUST_BE_ADMIN_TO_EDIT_PROCESS"
	CodeMustBeAdminToCheckEdit  Code = "MUST_BE_ADMIN_TO_CHECK_EDITION_FLAG"
	CodeMustBeAdminToFetchLogs  Code = "MUST_BE_ADMIN_TO_FETCH_STATUS_LOGS"
	CodeMustBeAdminForAnalytics Code = "MUST_BE_ADMIN_TO_FETCH_ANALYTICS_REPORTS"
)

// Validation.
const (
	CodeNoMainAccount         Code = "NO_MAIN_ACCOUNT_FOUNDED"
	CodeDuplicateMainAccount  Code = "NOT_TWO_MAIN_ACCOUNTS_ADMITTED_FOR_THE_SAME_UID"
	CodeMissingDataID         Code = "MISSING_DATA_ID"
	CodeMissingCollection     Code = "MISSING_DATA_COLLECTION"
	CodeMissingStatus         Code = "MISSING_DATA_STATUS"
	CodeMissingUID            Code = "MISSING_DATA_UID"
	CodeInvalidDeleteTarget   Code = "ONLY_DOCUMENTS_OR_COMPLIANCES_CAN_BE_DELETED"
	CodeDocumentsMustBeArray  Code = "SAVE_DOCUMENTS_DATA_MUST_BE_ARRAY"
	CodeInvalidCollection     Code = "INVALID_COLLECTION_TO_FETCH"
	CodeInvalidDataStatus     Code = "INVALID_DATA_STATUS"
	CodeInvalidFormToken      Code = "ERR_NOT_VALID_RID"
	CodeCantDeleteMainAccount Code = "CANT_DELETE_A_MAIN_ACCOUNT"
	CodeNoDataFound           Code = "NO_DATA_WAS_FOUND_FOR_THE_SENDED_PARAMETERS"
	CodeInvalidPrecision      Code = "PRECISION_SHOULD_BE_GREATER_THAN_0.10_AND_SMALLER_THAN_1"
	CodeInvalidAnalyticsType  Code = "POSSIBLE_TYPES_OF_ANALYTICS"
	CodeInvalidTimeFrame      Code = "POSSIBLE_TYPES_OF_TIME_FRAMES"
	CodeCantCreateAccount     Code = "ADMINS_CANT_CREATE_AN_ACCOUNT"
	CodeCantEditOtherUser     Code = "USER_CANT_EDIT_OTHER_USERS_DATA"
	CodeUploadedNoUID         Code = "UPLOADED_NO_UID"
	CodeUploadedNoFileOrID    Code = "UPLOADED_NO_FILE_OR_ID"
)

// State machine.
const (
	CodeDataMissingCantSubmit    Code = "DATA_IS_MISSING_CANT_BE_SUBMITTED"
	CodeCantEditSubmitted        Code = "CANT_EDIT_SUBMITTED_DATA_ONLY_CANCEL"
	CodeCantEditCanceled         Code = "CANT_EDIT_CANCELED_DATA_ONLY_RESUMED"
	CodeCantEditRefused          Code = "CANT_EDIT_REFUSED_DATA_ONLY_UNREFUSED_THROUGH_PROCESS"
	CodeCantCancelVerifying      Code = "CANT_CANCELED_AS_VERIFICATION_PROCESS_STARTED"
	CodeCantResetMember          Code = "CANT_RESET_FROM_A_MEMBER_ACCOUNT"
	CodeCantResetSubmitted       Code = "CANT_RESET_IF_DATA_HAS_BEEN_SUBMITTED"
	CodeCantResetWithoutID       Code = "CANT_RESET_WITHOUT_SENDING_THE_DATA_ID"
	CodeStatusEditRequiresNotes  Code = "EDIT_STATUS_MUST_HAVE_NOTES"
	CodeCantSetStatusOnMember    Code = "CANT_SET_STATUS_TO_A_MEMBER"
	CodeConcurrentModification   Code = "DATA_HAD_BEEN_MODIFIED_FROM_THE_verification_timestamp_SEND"
	CodeLoginInvalidCredentials  Code = "ADMIN_LOGIN_INVALID_CREDENTIALS"
	CodeBadRequest               Code = "BAD_REQUEST"
	CodeInternal                 Code = "INTERNAL_ERROR"
	CodeNotFound                 Code = "NOT_FOUND"
)

// CantSetStatus builds the parameterized transition failure code, e.g.
// CANT_SET_STATUS_pending_FROM_incomplete. An empty old status renders as
// "none" so new-record rejections stay readable.
func CantSetStatus(newStatus, oldStatus string) Code {
	if oldStatus == "" {
		oldStatus = "none"
	}
	return Code(fmt.Sprintf("CANT_SET_STATUS_%s_FROM_%s", newStatus, oldStatus))
}

// NotInSchema builds the parameterized whitelist failure code.
func NotInSchema(key string) Code {
	return Code(fmt.Sprintf("DATA_TYPE_%s_NOT_IN_SCHEMA", key))
}

// StatusNotAnOption marks a status the save pipeline refuses to process even
// though the transition table lets it pass (verified, refused, unrefused are
// never direct save targets).
func StatusNotAnOption(status string) Code {
	return Code(fmt.Sprintf("STATUS_%s_IS_NOT_A_VALID_OPTION", status))
}

// Error is a business failure. Message is optional human context; Code is the
// contract.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a business error with the given code.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a business error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error. A nil err returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WrapOp prefixes an error with an operation scope, preserving the innermost
// code. Handlers use it at the operation boundary.
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("KYC_%s_ERROR: %w", op, err)
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// CodeOf extracts the innermost business code, or CodeInternal when none is
// present.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		// Prefer the deepest code so op-level wrapping never masks the cause.
		if inner := innermost(de); inner != nil {
			return inner.Code
		}
		return de.Code
	}
	return CodeInternal
}

func innermost(e *Error) *Error {
	var deepest *Error
	for e != nil {
		deepest = e
		var next *Error
		if !errors.As(e.Err, &next) {
			break
		}
		e = next
	}
	return deepest
}

// ToHTTPStatus maps a business code class to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeAuthTokenInvalid, CodeUserTokenInvalid, CodeUserIPNeeded, CodeLoginInvalidCredentials:
		return http.StatusUnauthorized
	case CodeMustBeAdminOrOwner, CodeMustBeAdminToChangeData, CodeMustBeAdminToFind,
		CodeRestrictedAccess, CodeMustBeSuperAdmin, CodeMustBeAdminToProcess,
		CodeMustBeAdminToCheckEdit, CodeMustBeAdminToFetchLogs, CodeMustBeAdminForAnalytics:
		return http.StatusForbidden
	case CodeNotFound, CodeNoDataFound:
		return http.StatusNotFound
	case CodeConcurrentModification:
		return http.StatusConflict
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
