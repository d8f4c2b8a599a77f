package update

import (
	"fmt"
	"time"

	"github.com/danmuck/fwupdctl/internal/observability"
	"github.com/danmuck/fwupdctl/internal/pldm"
)

func (s *Session) sendUpdateComponent() {
	c := s.components[s.componentIndex]
	param := s.params[s.paramIndex]
	var options uint32
	if c.ForceUpdate() {
		options |= pldm.UpdateOptionForceUpdate
	}
	s.prepare(pldm.CmdUpdateComponent, pldm.UpdateComponentRequest{
		Classification:      c.Classification,
		ID:                  c.ID,
		ClassificationIndex: param.ClassificationIndex,
		ComparisonStamp:     c.ComparisonStamp,
		ImageSize:           c.Size,
		UpdateOptionFlags:   options,
		Version:             c.Version,
	}, StateUpdateComponentResponse)
}

func (s *Session) handleUpdateComponent(p []byte) {
	rsp, err := pldm.DecodeUpdateComponentResponse(p)
	if err != nil {
		s.responseFailed(KindUpdateComponentFailed, err)
		return
	}
	if rsp.CompatibilityResponse != pldm.CompatibilityCanBeUpdated {
		s.fail(KindComponentWillNotUpdate, rsp.CompatibilityResponseCode,
			fmt.Errorf("component %d will not be updated", s.componentIndex))
		return
	}
	if !s.firePhase(eventUpdateComponent) {
		return
	}

	wait := s.cfg.FirmwareDataTimeout
	if rsp.TimeBeforeRequestFwData > 0 {
		wait += time.Duration(rsp.TimeBeforeRequestFwData) * time.Millisecond
	}
	s.highWater = 0
	s.fdTimer.Arm(s.now(), wait)
	s.fdTimeoutKind = KindRequestFwDataTimeout

	c := s.components[s.componentIndex]
	s.logger.Info().
		Int("component", s.componentIndex).
		Uint16("id", c.ID).
		Uint32("size", c.Size).
		Str("version", c.Version.String()).
		Msg("component transfer start")
	s.state = StateWaitForRequests
}

func (s *Session) handleRequestFirmwareData() {
	if s.phase.Current() != PhaseDownload {
		s.respond(pldm.CodeCommandNotExpected, nil)
		return
	}
	if !s.serveFirmwareData() {
		return
	}
	// Every answered pull restarts the FD-idle deadline, rejected or not.
	s.fdTimer.Arm(s.now(), s.cfg.FirmwareDataTimeout)
	s.fdTimeoutKind = KindRequestFwDataTimeout
}

// serveFirmwareData answers one data pull. Invalid pulls get a typed
// completion code and leave the transfer running. It reports whether a
// response reached the device.
func (s *Session) serveFirmwareData() bool {
	req, err := pldm.DecodeRequestFirmwareDataRequest(s.fdPayload)
	if err != nil {
		s.logger.Warn().Int("len", len(s.fdPayload)).Err(err).Msg("malformed firmware data request")
		return s.respond(pldm.CodeInvalidLength, nil)
	}

	c := s.components[s.componentIndex]
	switch {
	case req.Length > s.cfg.MaxTransferSize:
		return s.respond(pldm.CodeInvalidTransferLength, nil)
	case req.End() > uint64(c.Size)+pldm.BaselineTransferSize:
		s.logger.Warn().
			Uint32("offset", req.Offset).
			Uint32("length", req.Length).
			Uint32("size", c.Size).
			Msg("firmware data request out of range")
		return s.respond(pldm.CodeDataOutOfRange, nil)
	}

	data := make([]byte, req.Length)
	if err := s.pkg.ReadImage(s.componentIndex, req.Offset, data); err != nil {
		if s.respond(pldm.CodeError, nil) {
			s.fail(KindInternal, uint8(pldm.CmdRequestFirmwareData), err)
		}
		return false
	}
	if !s.respond(pldm.CodeSuccess, pldm.RequestFirmwareDataResponse{CompletionCode: pldm.CodeSuccess, Data: data}) {
		return false
	}

	end := req.End()
	if end > uint64(c.Size) {
		end = uint64(c.Size)
	}
	if end > s.highWater {
		s.highWater = end
	}
	s.served += uint64(len(data))
	observability.RecordFirmwareBytes(len(data))
	s.campaign.updateProgress()
	return true
}

func (s *Session) handleTransferComplete() {
	req, err := pldm.DecodeTransferCompleteRequest(s.fdPayload)
	if err != nil {
		if s.respond(pldm.CodeInvalidLength, nil) {
			s.fail(KindTransferCompleteBadLength, uint8(pldm.CmdTransferComplete), err)
		}
		return
	}
	if !s.expectPhase(eventTransferComplete) || !s.respond(pldm.CodeSuccess, nil) {
		return
	}
	if req.Result != pldm.TransferSuccess {
		kind := classifyResult(req.Result, pldm.TransferResultStandardRange, pldm.TransferResultVendorRange,
			KindTransferFailedStandardRange, KindTransferFailedVendorRange, KindTransferFailed)
		s.fail(kind, req.Result, fmt.Errorf("component %d transfer result 0x%02x", s.componentIndex, req.Result))
		return
	}
	if !s.firePhase(eventTransferComplete) {
		return
	}
	s.bytesDone += uint64(s.components[s.componentIndex].Size)
	s.highWater = 0
	s.armStateChange()
	s.campaign.updateProgress()
}

func (s *Session) handleVerifyComplete() {
	req, err := pldm.DecodeVerifyCompleteRequest(s.fdPayload)
	if err != nil {
		if s.respond(pldm.CodeInvalidLength, nil) {
			s.fail(KindVerifyCompleteBadLength, uint8(pldm.CmdVerifyComplete), err)
		}
		return
	}
	if !s.expectPhase(eventVerifyComplete) || !s.respond(pldm.CodeSuccess, nil) {
		return
	}
	if req.Result != pldm.VerifySuccess {
		kind := classifyResult(req.Result, pldm.VerifyResultStandardRange, pldm.VerifyResultVendorRange,
			KindVerifyFailedStandardRange, KindVerifyFailedVendorRange, KindVerifyFailed)
		s.fail(kind, req.Result, fmt.Errorf("component %d verify result 0x%02x", s.componentIndex, req.Result))
		return
	}
	if !s.firePhase(eventVerifyComplete) {
		return
	}
	s.armStateChange()
}

// armStateChange bounds the wait for the next completion request when a
// state-change timeout is configured and otherwise cancels the FD-idle
// deadline.
func (s *Session) armStateChange() {
	if s.cfg.StateChangeTimeout <= 0 {
		s.fdTimer.Cancel()
		return
	}
	s.fdTimer.Arm(s.now(), s.cfg.StateChangeTimeout)
	s.fdTimeoutKind = KindStateChangeTimeout
}

func (s *Session) handleApplyComplete() {
	req, err := pldm.DecodeApplyCompleteRequest(s.fdPayload)
	if err != nil {
		if s.respond(pldm.CodeInvalidLength, nil) {
			s.fail(KindApplyCompleteBadLength, uint8(pldm.CmdApplyComplete), err)
		}
		return
	}
	if !s.expectPhase(eventApplyComplete) || !s.respond(pldm.CodeSuccess, nil) {
		return
	}
	switch req.Result {
	case pldm.ApplySuccess:
		s.activation |= s.components[s.componentIndex].RequestedActivationMethod
	case pldm.ApplySuccessWithActivationMethod:
		s.activation |= req.ActivationMethodsModification
	default:
		kind := classifyResult(req.Result, pldm.ApplyResultStandardRange, pldm.ApplyResultVendorRange,
			KindApplyFailedStandardRange, KindApplyFailedVendorRange, KindApplyFailed)
		s.fail(kind, req.Result, fmt.Errorf("component %d apply result 0x%02x", s.componentIndex, req.Result))
		return
	}
	if !s.firePhase(eventApplyComplete) {
		return
	}
	s.expectingFDRequests = false
	s.fdTimer.Cancel()
	s.logger.Info().Int("component", s.componentIndex).Uint16("activation_methods", s.activation).Msg("component applied")
	s.state = StateNextComponent
}

// handleDeviceRequest answers the FD request selected by receive and resumes
// receiving unless the handler moved the session elsewhere.
func (s *Session) handleDeviceRequest() {
	current := s.state
	switch current {
	case StateRequestFirmwareData:
		s.handleRequestFirmwareData()
	case StateTransferComplete:
		s.handleTransferComplete()
	case StateVerifyComplete:
		s.handleVerifyComplete()
	case StateApplyComplete:
		s.handleApplyComplete()
	}
	if s.state == current {
		s.state = StateReceive
	}
}

// expectPhase rejects a completion request that the FD phase does not allow.
func (s *Session) expectPhase(event string) bool {
	if s.phase.Can(event) {
		return true
	}
	cmd := s.fdHeader.Command
	if s.respond(pldm.CodeCommandNotExpected, nil) {
		s.fail(KindUnexpectedCommand, uint8(cmd), fmt.Errorf("%s in phase %s", cmd, s.phase.Current()))
	}
	return false
}

// nextComponent advances to the next (component, FD parameter entry) pair or
// to activation when none remain.
func (s *Session) nextComponent() {
	if s.seek(s.componentIndex, s.paramIndex+1) {
		s.state = StateUpdateComponentSend
		return
	}
	s.state = StateActivateFirmwareSend
}

func classifyResult(code uint8, standard, vendor pldm.ResultRange, standardKind, vendorKind, otherKind ErrorKind) ErrorKind {
	switch {
	case standard.Contains(code):
		return standardKind
	case vendor.Contains(code):
		return vendorKind
	default:
		return otherKind
	}
}
