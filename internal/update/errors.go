package update

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocol wraps every session failure so callers can tell protocol
	// outcomes apart from campaign setup errors.
	ErrProtocol        = errors.New("update: protocol failure")
	ErrTooManySessions = errors.New("update: session count exceeds campaign size")
	ErrMissingSessions = errors.New("update: fewer sessions than campaign size")
	ErrEmptyPackage    = errors.New("update: package has no components")
	ErrNilTransport    = errors.New("update: nil transport")
	ErrCampaignStarted = errors.New("update: campaign already executed")
)

// ErrorKind classifies the first failure of a session.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindInternal
	KindQueryDeviceIdsFailed
	KindNoDeviceMatch
	KindGetFwParamsFailed
	KindNoUpdateComponents
	KindRequestUpdateFailed
	KindRequestUpdateUnsupported
	KindPassComponentTableFailed
	KindPassComponentTableBadResponse
	KindUpdateComponentFailed
	KindComponentWillNotUpdate
	KindTransferCompleteBadLength
	KindTransferFailedStandardRange
	KindTransferFailedVendorRange
	KindTransferFailed
	KindVerifyCompleteBadLength
	KindVerifyFailedStandardRange
	KindVerifyFailedVendorRange
	KindVerifyFailed
	KindApplyCompleteBadLength
	KindApplyFailedStandardRange
	KindApplyFailedVendorRange
	KindApplyFailed
	KindActivateFailed
	KindRequestFwDataTimeout
	KindStateChangeTimeout
	KindReceiveFailed
	KindReceiveBadLength
	KindReceiveBadType
	KindUnsupportedCommand
	KindUnexpectedCommand
	KindSendFailed
	KindRetriesExhausted
)

var kindNames = map[ErrorKind]string{
	KindNone:                          "none",
	KindInternal:                      "internal",
	KindQueryDeviceIdsFailed:          "query_device_ids_failed",
	KindNoDeviceMatch:                 "no_device_match",
	KindGetFwParamsFailed:             "get_fw_params_failed",
	KindNoUpdateComponents:            "no_update_components",
	KindRequestUpdateFailed:           "request_update_failed",
	KindRequestUpdateUnsupported:      "request_update_unsupported",
	KindPassComponentTableFailed:      "pass_component_table_failed",
	KindPassComponentTableBadResponse: "pass_component_table_bad_response",
	KindUpdateComponentFailed:         "update_component_failed",
	KindComponentWillNotUpdate:        "component_will_not_update",
	KindTransferCompleteBadLength:     "transfer_complete_bad_length",
	KindTransferFailedStandardRange:   "transfer_failed_standard_range",
	KindTransferFailedVendorRange:     "transfer_failed_vendor_range",
	KindTransferFailed:                "transfer_failed",
	KindVerifyCompleteBadLength:       "verify_complete_bad_length",
	KindVerifyFailedStandardRange:     "verify_failed_standard_range",
	KindVerifyFailedVendorRange:       "verify_failed_vendor_range",
	KindVerifyFailed:                  "verify_failed",
	KindApplyCompleteBadLength:        "apply_complete_bad_length",
	KindApplyFailedStandardRange:      "apply_failed_standard_range",
	KindApplyFailedVendorRange:        "apply_failed_vendor_range",
	KindApplyFailed:                   "apply_failed",
	KindActivateFailed:                "activate_failed",
	KindRequestFwDataTimeout:          "request_fw_data_timeout",
	KindStateChangeTimeout:            "state_change_timeout",
	KindReceiveFailed:                 "receive_failed",
	KindReceiveBadLength:              "receive_bad_length",
	KindReceiveBadType:                "receive_bad_type",
	KindUnsupportedCommand:            "unsupported_command",
	KindUnexpectedCommand:             "unexpected_command",
	KindSendFailed:                    "send_failed",
	KindRetriesExhausted:              "retries_exhausted",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SessionError is the first failure recorded by a session. Code carries the
// completion code, result code or command byte that triggered it.
type SessionError struct {
	Device string
	State  State
	Kind   ErrorKind
	Code   uint8
	Err    error
}

func (e *SessionError) Error() string {
	msg := fmt.Sprintf("device %s: %s in %s (code 0x%02x)", e.Device, e.Kind, e.State, e.Code)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProtocol}
	}
	return []error{ErrProtocol, e.Err}
}
