package update

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/fwupdctl/internal/observability"
	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/transport"
)

// prepare encodes a UA request and queues it for SendRequest. A correlated
// response is dispatched to next.
func (s *Session) prepare(cmd pldm.Command, body pldm.Encoder, next State) {
	h := pldm.NewRequestHeader(s.instanceID, cmd)
	msg, err := pldm.EncodeMessage(h, body)
	if err != nil {
		s.fail(KindInternal, uint8(cmd), err)
		return
	}
	s.instanceID = (s.instanceID + 1) & pldm.InstanceIDMask
	s.req = msg
	s.reqHeader = h
	s.responseState = next
	s.retries = s.cfg.Retries
	s.state = StateSendRequest
}

func (s *Session) responseTimeout() time.Duration {
	if s.reqHeader.Command == pldm.CmdActivateFirmware {
		return s.cfg.ResponseTimeout + s.cfg.ActivateExtraTimeout
	}
	return s.cfg.ResponseTimeout
}

func (s *Session) transmit(retry bool) {
	cmd := s.reqHeader.Command
	tag, err := s.transport.Send(true, s.req, 0)
	if err != nil {
		s.requestActive = false
		s.fail(KindSendFailed, uint8(cmd), fmt.Errorf("send %s: %w", cmd, err))
		return
	}
	s.reqTag = tag
	s.requestActive = true
	s.responseTimer.Arm(s.now(), s.responseTimeout())
	observability.RecordRequestSent(cmd.String(), retry)
	s.logger.Debug().
		Str("command", cmd.String()).
		Uint8("instance", s.reqHeader.InstanceID).
		Bool("retry", retry).
		Msg("request sent")
	s.state = StateReceive
}

func (s *Session) retryRequest() {
	cmd := s.reqHeader.Command
	if s.retries <= 0 {
		s.requestActive = false
		s.responseTimer.Cancel()
		s.fail(KindRetriesExhausted, uint8(cmd), fmt.Errorf("%s: no valid response after %d retries", cmd, s.cfg.Retries))
		return
	}
	s.retries--
	s.logger.Warn().Str("command", cmd.String()).Int("retries_left", s.retries).Msg("retrying request")
	s.transmit(true)
}

// receive polls the transport once. Deadlines are only checked when nothing
// is pending.
func (s *Session) receive() {
	n, tag, err := s.transport.Recv(0, s.buf)
	if errors.Is(err, transport.ErrTimeout) {
		s.checkDeadlines()
		return
	}
	if err != nil {
		s.fail(KindReceiveFailed, 0, fmt.Errorf("recv: %w", err))
		return
	}

	msg := s.buf[:n]
	h, err := pldm.DecodeHeader(msg)
	if err != nil {
		s.fail(KindReceiveBadLength, 0, fmt.Errorf("recv %d bytes: %w", n, err))
		return
	}
	if err := h.CheckType(); err != nil {
		s.fail(KindReceiveBadType, h.Type, err)
		return
	}

	if h.Request {
		s.dispatchDeviceRequest(h, msg, tag)
		return
	}

	if !s.requestActive {
		s.logger.Warn().Str("command", h.Command.String()).Msg("response without active request dropped")
		return
	}
	if err := s.correlate(h, n, tag); err != nil {
		s.logger.Warn().Str("command", s.reqHeader.Command.String()).Err(err).Msg("response rejected")
		s.state = StateRetryRequest
		return
	}
	s.requestActive = false
	s.responseTimer.Cancel()
	s.rsp = append(s.rsp[:0], msg...)
	s.rspTag = tag
	s.state = StateProcessResponse
}

func (s *Session) checkDeadlines() {
	now := s.now()
	if s.expectingFDRequests && s.fdTimer.Expired(now) {
		s.expectingFDRequests = false
		s.fdTimer.Cancel()
		s.fail(s.fdTimeoutKind, 0, fmt.Errorf("no device request in phase %s", s.phase.Current()))
		return
	}
	if s.requestActive && s.responseTimer.Expired(now) {
		observability.RecordResponseTimeout(s.reqHeader.Command.String())
		s.logger.Warn().Str("command", s.reqHeader.Command.String()).Msg("response timeout")
		s.state = StateRetryRequest
		return
	}
	s.idle = true
}

func (s *Session) correlate(h pldm.Header, n int, tag uint8) error {
	if tag != s.reqTag {
		return fmt.Errorf("%w: tag %d want %d", pldm.ErrHeaderMismatch, tag, s.reqTag)
	}
	if err := pldm.MatchResponse(s.reqHeader, h); err != nil {
		return err
	}
	if n < pldm.ResponseHeaderLen {
		return fmt.Errorf("%w: %d byte response", pldm.ErrTruncated, n)
	}
	return nil
}

func (s *Session) dispatchDeviceRequest(h pldm.Header, msg []byte, tag uint8) {
	s.fdHeader = h
	s.fdTag = tag
	s.fdPayload = append(s.fdPayload[:0], pldm.Payload(msg)...)

	if s.cancelling {
		s.respond(pldm.CodeCommandNotExpected, nil)
		return
	}

	switch h.Command {
	case pldm.CmdRequestFirmwareData:
		s.state = StateRequestFirmwareData
	case pldm.CmdTransferComplete:
		s.state = StateTransferComplete
	case pldm.CmdVerifyComplete:
		s.state = StateVerifyComplete
	case pldm.CmdApplyComplete:
		s.state = StateApplyComplete
	default:
		if s.respond(pldm.CodeUnsupportedCommand, nil) {
			s.fail(KindUnsupportedCommand, uint8(h.Command), fmt.Errorf("device request %s", h.Command))
		}
	}
}

// respond answers the current device request. A nil body sends a
// completion-code-only response.
func (s *Session) respond(cc pldm.CompletionCode, body pldm.Encoder) bool {
	if body == nil {
		body = pldm.CompletionResponse{CompletionCode: cc}
	}
	cmd := s.fdHeader.Command
	msg, err := pldm.EncodeMessage(s.fdHeader.ResponseHeader(), body)
	if err != nil {
		s.fail(KindInternal, uint8(cmd), err)
		return false
	}
	if _, err := s.transport.Send(false, msg, s.fdTag); err != nil {
		s.fail(KindSendFailed, uint8(cmd), fmt.Errorf("respond %s: %w", cmd, err))
		return false
	}
	observability.RecordDeviceRequest(cmd.String(), cc.String())
	return true
}

// responseFailed records a response decode failure, carrying the completion
// code when there is one.
func (s *Session) responseFailed(kind ErrorKind, err error) {
	var cerr *pldm.CompletionError
	var code uint8
	if errors.As(err, &cerr) {
		code = uint8(cerr.Code)
	}
	s.fail(kind, code, err)
}
