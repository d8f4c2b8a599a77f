package update

import "fmt"

// State is one step of the per-device session state machine.
type State int

const (
	StateStart State = iota
	StateQueryDeviceIdentifiersSend
	StateQueryDeviceIdentifiersResponse
	StateGetFirmwareParametersSend
	StateGetFirmwareParametersResponse
	StateProcessPackage
	StateRequestUpdateSend
	StateRequestUpdateResponse
	StatePassComponentTableSend
	StatePassComponentTableResponse
	StatePassComponentTableNext
	StateUpdateComponentSend
	StateUpdateComponentResponse
	StateWaitForRequests
	StateRequestFirmwareData
	StateTransferComplete
	StateVerifyComplete
	StateApplyComplete
	StateNextComponent
	StateActivateFirmwareSend
	StateActivateFirmwareResponse
	StateCancelUpdateComponentSend
	StateCancelUpdateComponentResponse
	StateCancelUpdateSend
	StateCancelUpdateResponse
	StateSendRequest
	StateReceive
	StateProcessResponse
	StateRetryRequest
	StateFatalError
	StateComplete
)

var stateNames = [...]string{
	StateStart:                          "Start",
	StateQueryDeviceIdentifiersSend:     "QueryDeviceIdentifiersSend",
	StateQueryDeviceIdentifiersResponse: "QueryDeviceIdentifiersResponse",
	StateGetFirmwareParametersSend:      "GetFirmwareParametersSend",
	StateGetFirmwareParametersResponse:  "GetFirmwareParametersResponse",
	StateProcessPackage:                 "ProcessPackage",
	StateRequestUpdateSend:              "RequestUpdateSend",
	StateRequestUpdateResponse:          "RequestUpdateResponse",
	StatePassComponentTableSend:         "PassComponentTableSend",
	StatePassComponentTableResponse:     "PassComponentTableResponse",
	StatePassComponentTableNext:         "PassComponentTableNext",
	StateUpdateComponentSend:            "UpdateComponentSend",
	StateUpdateComponentResponse:        "UpdateComponentResponse",
	StateWaitForRequests:                "WaitForRequests",
	StateRequestFirmwareData:            "RequestFirmwareData",
	StateTransferComplete:               "TransferComplete",
	StateVerifyComplete:                 "VerifyComplete",
	StateApplyComplete:                  "ApplyComplete",
	StateNextComponent:                  "NextComponent",
	StateActivateFirmwareSend:           "ActivateFirmwareSend",
	StateActivateFirmwareResponse:       "ActivateFirmwareResponse",
	StateCancelUpdateComponentSend:      "CancelUpdateComponentSend",
	StateCancelUpdateComponentResponse:  "CancelUpdateComponentResponse",
	StateCancelUpdateSend:               "CancelUpdateSend",
	StateCancelUpdateResponse:           "CancelUpdateResponse",
	StateSendRequest:                    "SendRequest",
	StateReceive:                        "Receive",
	StateProcessResponse:                "ProcessResponse",
	StateRetryRequest:                   "RetryRequest",
	StateFatalError:                     "FatalError",
	StateComplete:                       "Complete",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) && stateNames[s] != "" {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the session has finished.
func (s State) Terminal() bool {
	return s == StateComplete
}
