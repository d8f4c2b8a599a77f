package update

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/fwupdctl/internal/fwpkg"
	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/transport"
)

// PackageReader is the parsed firmware package a session serves from.
type PackageReader interface {
	Len() int
	ComponentTable() []fwpkg.Component
	MatchDevice(descriptors []pldm.Descriptor) (*fwpkg.DeviceRecord, bool)
	ReadImage(index int, offset uint32, dst []byte) error
}

// Session drives one firmware device through discovery, negotiation,
// transfer and activation.
type Session struct {
	campaign  *Campaign
	name      string
	transport transport.Transport
	pkg       PackageReader
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time

	state State

	// UA request in flight.
	req           []byte
	reqHeader     pldm.Header
	reqTag        uint8
	requestActive bool
	responseState State
	retries       int
	responseTimer Timer
	instanceID    uint8

	buf    []byte
	rsp    []byte
	rspTag uint8

	// FD request being answered.
	expectingFDRequests bool
	fdTimer             Timer
	fdTimeoutKind       ErrorKind
	fdHeader            pldm.Header
	fdTag               uint8
	fdPayload           []byte

	descriptors []pldm.Descriptor
	params      []pldm.ComponentParameter
	record      *fwpkg.DeviceRecord
	components  []fwpkg.Component
	updatePairs int
	passIndex   int

	componentIndex int
	paramIndex     int

	phase *phaseTracker

	bytesDone uint64
	highWater uint64
	served    uint64

	activation uint16
	err        *SessionError
	cancelling bool
	idle       bool
	started    time.Time
	finished   time.Time
}

func newSession(c *Campaign, t transport.Transport, pkg PackageReader) *Session {
	name := t.DeviceName()
	s := &Session{
		campaign:  c,
		name:      name,
		transport: t,
		pkg:       pkg,
		cfg:       c.cfg,
		logger:    c.logger.With().Str("device", name).Logger(),
		now:       c.now,
		state:     StateStart,
		buf:       make([]byte, c.cfg.RecvBufferSize),
	}
	s.phase = newPhaseTracker(func(from, to FDPhase) {
		s.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("fd phase")
	})
	return s
}

func (s *Session) Name() string {
	return s.name
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) Phase() FDPhase {
	return s.phase.Current()
}

func (s *Session) Done() bool {
	return s.state.Terminal()
}

// Err returns the first failure recorded by the session, or nil.
func (s *Session) Err() *SessionError {
	return s.err
}

// ActivationMethods returns the activation methods accumulated from applied
// components.
func (s *Session) ActivationMethods() uint16 {
	return s.activation
}

// Step advances the session by one state. It never blocks.
func (s *Session) Step() {
	s.idle = false
	switch s.state {
	case StateStart:
		s.start()
	case StateQueryDeviceIdentifiersSend:
		s.prepare(pldm.CmdQueryDeviceIdentifiers, nil, StateQueryDeviceIdentifiersResponse)
	case StateQueryDeviceIdentifiersResponse:
		s.handleQueryDeviceIdentifiers(pldm.Payload(s.rsp))
	case StateGetFirmwareParametersSend:
		s.prepare(pldm.CmdGetFirmwareParameters, nil, StateGetFirmwareParametersResponse)
	case StateGetFirmwareParametersResponse:
		s.handleGetFirmwareParameters(pldm.Payload(s.rsp))
	case StateProcessPackage:
		s.processPackage()
	case StateRequestUpdateSend:
		s.sendRequestUpdate()
	case StateRequestUpdateResponse:
		s.handleRequestUpdate(pldm.Payload(s.rsp))
	case StatePassComponentTableSend:
		s.sendPassComponentTable()
	case StatePassComponentTableResponse:
		s.handlePassComponentTable(pldm.Payload(s.rsp))
	case StatePassComponentTableNext:
		s.passComponentTableNext()
	case StateUpdateComponentSend:
		s.sendUpdateComponent()
	case StateUpdateComponentResponse:
		s.handleUpdateComponent(pldm.Payload(s.rsp))
	case StateWaitForRequests:
		s.expectingFDRequests = true
		s.state = StateReceive
	case StateRequestFirmwareData, StateTransferComplete, StateVerifyComplete, StateApplyComplete:
		s.handleDeviceRequest()
	case StateNextComponent:
		s.nextComponent()
	case StateActivateFirmwareSend:
		s.sendActivateFirmware()
	case StateActivateFirmwareResponse:
		s.handleActivateFirmware(pldm.Payload(s.rsp))
	case StateCancelUpdateComponentSend:
		s.prepare(pldm.CmdCancelUpdateComponent, nil, StateCancelUpdateComponentResponse)
	case StateCancelUpdateComponentResponse:
		s.handleCancelUpdateComponent(pldm.Payload(s.rsp))
	case StateCancelUpdateSend:
		s.prepare(pldm.CmdCancelUpdate, nil, StateCancelUpdateResponse)
	case StateCancelUpdateResponse:
		s.handleCancelUpdate(pldm.Payload(s.rsp))
	case StateSendRequest:
		s.transmit(false)
	case StateReceive:
		s.receive()
	case StateProcessResponse:
		s.state = s.responseState
	case StateRetryRequest:
		s.retryRequest()
	case StateFatalError:
		s.fatal()
	case StateComplete:
	default:
		s.fail(KindInternal, 0, fmt.Errorf("unhandled state %s", s.state))
	}
}

func (s *Session) start() {
	s.started = s.now()
	s.logger.Info().Int("package_bytes", s.pkg.Len()).Msg("session start")
	s.state = StateQueryDeviceIdentifiersSend
}

// fail records the first error and moves the session to FatalError. Later
// failures are logged only.
func (s *Session) fail(kind ErrorKind, code uint8, err error) {
	if s.err == nil {
		s.err = &SessionError{Device: s.name, State: s.state, Kind: kind, Code: code, Err: err}
		s.logger.Error().
			Str("state", s.state.String()).
			Str("kind", kind.String()).
			Uint8("code", code).
			Err(err).
			Msg("session failed")
	} else {
		s.logger.Warn().
			Str("state", s.state.String()).
			Str("kind", kind.String()).
			Err(err).
			Msg("additional failure ignored")
	}
	s.state = StateFatalError
}

func (s *Session) complete() {
	s.finished = s.now()
	s.state = StateComplete
	event := s.logger.Info()
	if s.err != nil {
		event = s.logger.Warn().Str("kind", s.err.Kind.String())
	}
	event.
		Uint64("bytes_served", s.served).
		Uint16("activation_methods", s.activation).
		Dur("duration", s.finished.Sub(s.started)).
		Msg("session complete")
}

// transferred returns the image bytes counted toward campaign progress,
// capped at the package length.
func (s *Session) transferred() uint64 {
	total := s.bytesDone + s.highWater
	if limit := uint64(s.pkg.Len()); total > limit {
		return limit
	}
	return total
}

func (s *Session) firePhase(event string) bool {
	if err := s.phase.Fire(event); err != nil {
		s.fail(KindInternal, 0, fmt.Errorf("fd phase %s: %w", s.phase.Current(), err))
		return false
	}
	return true
}
