package pldm

import "fmt"

// CompletionCode is the first byte of every response payload.
type CompletionCode uint8

const (
	CodeSuccess            CompletionCode = 0x00
	CodeError              CompletionCode = 0x01
	CodeInvalidData        CompletionCode = 0x02
	CodeInvalidLength      CompletionCode = 0x03
	CodeNotReady           CompletionCode = 0x04
	CodeUnsupportedCommand CompletionCode = 0x05
	CodeInvalidPLDMType    CompletionCode = 0x20

	CodeNotInUpdateMode                     CompletionCode = 0x80
	CodeAlreadyInUpdateMode                 CompletionCode = 0x81
	CodeDataOutOfRange                      CompletionCode = 0x82
	CodeInvalidTransferLength               CompletionCode = 0x83
	CodeInvalidStateForCommand              CompletionCode = 0x84
	CodeIncompleteUpdate                    CompletionCode = 0x85
	CodeBusyInBackground                    CompletionCode = 0x86
	CodeCancelPending                       CompletionCode = 0x87
	CodeCommandNotExpected                  CompletionCode = 0x88
	CodeRetryRequestFirmwareData            CompletionCode = 0x89
	CodeUnableToInitiateUpdate              CompletionCode = 0x8a
	CodeActivationNotRequired               CompletionCode = 0x8b
	CodeSelfContainedActivationNotPermitted CompletionCode = 0x8c
	CodeNoDeviceMetaData                    CompletionCode = 0x8d
	CodeRetryRequestUpdate                  CompletionCode = 0x8e
	CodeNoPackageData                       CompletionCode = 0x8f
	CodeInvalidTransferHandle               CompletionCode = 0x90
	CodeInvalidTransferOperationFlag        CompletionCode = 0x91
	CodeActivatePendingImageNotPermitted    CompletionCode = 0x92
	CodePackageDataError                    CompletionCode = 0x93
)

var completionNames = map[CompletionCode]string{
	CodeSuccess:                             "SUCCESS",
	CodeError:                               "ERROR",
	CodeInvalidData:                         "ERROR_INVALID_DATA",
	CodeInvalidLength:                       "ERROR_INVALID_LENGTH",
	CodeNotReady:                            "ERROR_NOT_READY",
	CodeUnsupportedCommand:                  "ERROR_UNSUPPORTED_PLDM_CMD",
	CodeInvalidPLDMType:                     "ERROR_INVALID_PLDM_TYPE",
	CodeNotInUpdateMode:                     "NOT_IN_UPDATE_MODE",
	CodeAlreadyInUpdateMode:                 "ALREADY_IN_UPDATE_MODE",
	CodeDataOutOfRange:                      "DATA_OUT_OF_RANGE",
	CodeInvalidTransferLength:               "INVALID_TRANSFER_LENGTH",
	CodeInvalidStateForCommand:              "INVALID_STATE_FOR_COMMAND",
	CodeIncompleteUpdate:                    "INCOMPLETE_UPDATE",
	CodeBusyInBackground:                    "BUSY_IN_BACKGROUND",
	CodeCancelPending:                       "CANCEL_PENDING",
	CodeCommandNotExpected:                  "COMMAND_NOT_EXPECTED",
	CodeRetryRequestFirmwareData:            "RETRY_REQUEST_FW_DATA",
	CodeUnableToInitiateUpdate:              "UNABLE_TO_INITIATE_UPDATE",
	CodeActivationNotRequired:               "ACTIVATION_NOT_REQUIRED",
	CodeSelfContainedActivationNotPermitted: "SELF_CONTAINED_ACTIVATION_NOT_PERMITTED",
	CodeNoDeviceMetaData:                    "NO_DEVICE_METADATA",
	CodeRetryRequestUpdate:                  "RETRY_REQUEST_UPDATE",
	CodeNoPackageData:                       "NO_PACKAGE_DATA",
	CodeInvalidTransferHandle:               "INVALID_TRANSFER_HANDLE",
	CodeInvalidTransferOperationFlag:        "INVALID_TRANSFER_OPERATION_FLAG",
	CodeActivatePendingImageNotPermitted:    "ACTIVATE_PENDING_IMAGE_NOT_PERMITTED",
	CodePackageDataError:                    "PACKAGE_DATA_ERROR",
}

func (c CompletionCode) String() string {
	if name, ok := completionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", uint8(c))
}

// ResultRange is an inclusive band of transfer, verify or apply result codes.
type ResultRange struct {
	Min uint8
	Max uint8
}

func (r ResultRange) Contains(code uint8) bool {
	return code >= r.Min && code <= r.Max
}

// TransferComplete results.
const (
	TransferSuccess              uint8 = 0x00
	TransferErrorImageCorrupt    uint8 = 0x01
	TransferErrorVersionMismatch uint8 = 0x02
	TransferFDAbortedTransfer    uint8 = 0x03
	TransferTimeout              uint8 = 0x0b
	TransferGenericError         uint8 = 0x0c
)

// VerifyComplete results.
const (
	VerifySuccess                  uint8 = 0x00
	VerifyErrorVerificationFailure uint8 = 0x01
	VerifyErrorVersionMismatch     uint8 = 0x02
	VerifyFailedSecurityChecks     uint8 = 0x03
	VerifyErrorImageIncomplete     uint8 = 0x04
	VerifyTimeout                  uint8 = 0x09
	VerifyGenericError             uint8 = 0x0a
)

// ApplyComplete results.
const (
	ApplySuccess                     uint8 = 0x00
	ApplySuccessWithActivationMethod uint8 = 0x01
	ApplyErrorMemoryWrite            uint8 = 0x02
	ApplyTimeout                     uint8 = 0x03
	ApplyGenericError                uint8 = 0x0a
)

var (
	TransferResultStandardRange = ResultRange{Min: 0x00, Max: 0x1f}
	TransferResultVendorRange   = ResultRange{Min: 0x70, Max: 0x8f}
	VerifyResultStandardRange   = ResultRange{Min: 0x00, Max: 0x1f}
	VerifyResultVendorRange     = ResultRange{Min: 0x90, Max: 0xaf}
	ApplyResultStandardRange    = ResultRange{Min: 0x00, Max: 0x1f}
	ApplyResultVendorRange      = ResultRange{Min: 0xb0, Max: 0xcf}
)
