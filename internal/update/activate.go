package update

import (
	"github.com/danmuck/fwupdctl/internal/pldm"
)

func (s *Session) sendActivateFirmware() {
	if !s.firePhase(eventActivate) {
		return
	}
	s.prepare(pldm.CmdActivateFirmware, pldm.ActivateFirmwareRequest{SelfContainedActivation: false},
		StateActivateFirmwareResponse)
}

func (s *Session) handleActivateFirmware(p []byte) {
	rsp, err := pldm.DecodeActivateFirmwareResponse(p)
	if err != nil {
		s.responseFailed(KindActivateFailed, err)
		return
	}
	if !s.firePhase(eventActivated) {
		return
	}
	s.logger.Info().Uint16("estimated_seconds", rsp.EstimatedTimeForActivation).Msg("firmware activated")
	s.complete()
}

// fatal stops all timers and, when CancelOnFatal is set, walks the device
// back to idle before completing. A failure while cancelling completes
// directly.
func (s *Session) fatal() {
	s.requestActive = false
	s.responseTimer.Cancel()
	s.expectingFDRequests = false
	s.fdTimer.Cancel()

	if !s.cfg.CancelOnFatal || s.cancelling {
		s.complete()
		return
	}
	s.cancelling = true
	switch s.phase.Current() {
	case PhaseDownload, PhaseVerify, PhaseApply:
		s.state = StateCancelUpdateComponentSend
	case PhaseLearnComponents, PhaseReadyXfer:
		s.state = StateCancelUpdateSend
	default:
		s.complete()
	}
}

func (s *Session) handleCancelUpdateComponent(p []byte) {
	if _, err := pldm.DecodeCompletionResponse(pldm.CmdCancelUpdateComponent, p); err != nil {
		s.logger.Warn().Err(err).Msg("cancel update component rejected")
		s.complete()
		return
	}
	if !s.firePhase(eventCancelComponent) {
		return
	}
	s.state = StateCancelUpdateSend
}

func (s *Session) handleCancelUpdate(p []byte) {
	rsp, err := pldm.DecodeCancelUpdateResponse(p)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cancel update rejected")
		s.complete()
		return
	}
	if !s.firePhase(eventCancel) {
		return
	}
	s.logger.Info().
		Uint8("non_functioning", rsp.NonFunctioningComponentIndication).
		Uint64("non_functioning_bitmap", rsp.NonFunctioningComponentBitmap).
		Msg("update cancelled")
	s.complete()
}
