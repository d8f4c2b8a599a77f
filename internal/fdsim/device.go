// Package fdsim provides an in-memory firmware device that answers the update
// agent over transport.Transport.
//
// Ownership boundary:
// - FD side of the DSP0267 update flow (inventory, negotiation, data pulls, completion requests)
// - fault injection (dropped requests, corrupted or duplicated responses, forced codes, injected requests)
// - recording of received images and exchanged commands
//
// The device is driven entirely by Send and Recv; it has no goroutines.
package fdsim

import (
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/transport"
)

const defaultChunkSize = 64

// RawRequest is an FD request queued verbatim.
type RawRequest struct {
	Command pldm.Command
	Payload []byte
}

// Behavior configures how a Device answers and what it requests.
type Behavior struct {
	Descriptors           []pldm.Descriptor
	Components            []pldm.ComponentParameter
	ActiveImageSetVersion string

	// ChunkSize is the RequestFirmwareData length, capped by the negotiated
	// maximum transfer size.
	ChunkSize               uint32
	TimeBeforeRequestFwData uint16

	FDMetaDataLength       uint16
	WillSendGetPackageData uint8

	ComponentResponse         uint8
	ComponentResponseCode     uint8
	CompatibilityResponse     uint8
	CompatibilityResponseCode uint8

	TransferResult         uint8
	VerifyResult           uint8
	ApplyResult            uint8
	ActivationModification uint16
	EstimatedActivation    uint16

	// Silent commands are never answered.
	Silent map[pldm.Command]bool
	// Drop discards the first n requests of a command.
	Drop map[pldm.Command]int
	// CorruptInstance answers the first n requests of a command with a wrong
	// instance id.
	CorruptInstance map[pldm.Command]int
	// Duplicate answers the first n requests of a command twice.
	Duplicate map[pldm.Command]int
	// CompletionCodes forces a completion-code-only response.
	CompletionCodes map[pldm.Command]pldm.CompletionCode
	// Inject queues raw FD requests after answering a command.
	Inject map[pldm.Command][]RawRequest
	// ExtraRequests are pulled before the regular data sequence of the first
	// component.
	ExtraRequests []pldm.RequestFirmwareDataRequest
	// StallAfterPulls stops data requests after n regular pulls.
	StallAfterPulls int
	// SkipVerify stops the device after TransferComplete.
	SkipVerify bool
	// RecvError is returned once by the first Recv.
	RecvError error
}

// Answer is the UA's completion code for one FD request.
type Answer struct {
	Command pldm.Command
	Code    pldm.CompletionCode
}

type phase int

const (
	phaseIdle phase = iota
	phaseLearn
	phaseReady
	phaseDownload
	phaseVerify
	phaseApply
	phaseStalled
)

type outstanding struct {
	cmd     pldm.Command
	pull    pldm.RequestFirmwareDataRequest
	regular bool
}

type message struct {
	data []byte
	tag  uint8
}

// Device is a simulated firmware device.
type Device struct {
	name     string
	behavior Behavior

	mu        sync.Mutex
	phase     phase
	outbox    []message
	uaTag     uint8
	fdTag     uint8
	fdInst    uint8
	pending   map[uint8]outstanding
	recvFault bool

	maxTransfer uint32
	current     pldm.UpdateComponentRequest
	image       []byte
	offset      uint32
	pulls       int
	extras      []pldm.RequestFirmwareDataRequest

	log       []pldm.Command
	answers   []Answer
	images    map[uint16][]byte
	passTable []pldm.PassComponentTableRequest
	updates   []pldm.UpdateComponentRequest
	request   pldm.RequestUpdateRequest
	activated bool
	cancelled bool
}

var _ transport.Transport = (*Device)(nil)

func New(name string, b Behavior) *Device {
	if b.ChunkSize == 0 {
		b.ChunkSize = defaultChunkSize
	}
	b.Drop = maps.Clone(b.Drop)
	b.CorruptInstance = maps.Clone(b.CorruptInstance)
	b.Duplicate = maps.Clone(b.Duplicate)
	return &Device{
		name:     name,
		behavior: b,
		pending:  make(map[uint8]outstanding),
		images:   make(map[uint16][]byte),
		extras:   append([]pldm.RequestFirmwareDataRequest(nil), b.ExtraRequests...),
	}
}

func (d *Device) DeviceName() string {
	return d.name
}

// Send accepts a UA request or a UA response to an FD request.
func (d *Device) Send(isRequest bool, msg []byte, tag uint8) (uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h, err := pldm.DecodeHeader(msg)
	if err != nil {
		return 0, err
	}
	if !isRequest {
		return tag, d.acceptResponse(h, msg)
	}

	d.uaTag = (d.uaTag + 1) & 0x07
	tag = d.uaTag
	d.log = append(d.log, h.Command)
	if d.behavior.Silent[h.Command] {
		return tag, nil
	}
	if n := d.behavior.Drop[h.Command]; n > 0 {
		d.behavior.Drop[h.Command] = n - 1
		return tag, nil
	}

	rh := h.ResponseHeader()
	if n := d.behavior.CorruptInstance[h.Command]; n > 0 {
		d.behavior.CorruptInstance[h.Command] = n - 1
		rh.InstanceID = (rh.InstanceID + 1) & pldm.InstanceIDMask
	}

	var body pldm.Encoder
	if cc, ok := d.behavior.CompletionCodes[h.Command]; ok {
		body = pldm.CompletionResponse{CompletionCode: cc}
	} else {
		body = d.handleRequest(h.Command, pldm.Payload(msg))
	}
	out, err := pldm.EncodeMessage(rh, body)
	if err != nil {
		return tag, fmt.Errorf("fdsim %s: %w", d.name, err)
	}
	d.outbox = append(d.outbox, message{data: out, tag: tag})
	if n := d.behavior.Duplicate[h.Command]; n > 0 {
		d.behavior.Duplicate[h.Command] = n - 1
		d.outbox = append(d.outbox, message{data: out, tag: tag})
	}
	for _, raw := range d.behavior.Inject[h.Command] {
		d.queueRequest(raw.Command, raw.Payload, outstanding{})
	}
	return tag, nil
}

// Recv returns the next queued message, generating the next FD request when
// nothing else is pending.
func (d *Device) Recv(_ time.Duration, buf []byte) (int, uint8, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.behavior.RecvError != nil && !d.recvFault {
		d.recvFault = true
		return 0, 0, d.behavior.RecvError
	}
	if len(d.outbox) == 0 && len(d.pending) == 0 {
		d.advance()
	}
	if len(d.outbox) == 0 {
		return 0, 0, transport.ErrTimeout
	}
	m := d.outbox[0]
	d.outbox = d.outbox[1:]
	if len(m.data) > len(buf) {
		return 0, 0, transport.ErrMessageTooLarge
	}
	return copy(buf, m.data), m.tag, nil
}

func (d *Device) handleRequest(cmd pldm.Command, p []byte) pldm.Encoder {
	b := d.behavior
	switch cmd {
	case pldm.CmdQueryDeviceIdentifiers:
		return pldm.QueryDeviceIdentifiersResponse{Descriptors: b.Descriptors}
	case pldm.CmdGetFirmwareParameters:
		return pldm.GetFirmwareParametersResponse{
			ActiveImageSetVersion: pldm.NewASCIIVersion(b.ActiveImageSetVersion),
			Components:            b.Components,
		}
	case pldm.CmdRequestUpdate:
		req, err := pldm.DecodeRequestUpdateRequest(p)
		if err != nil {
			return pldm.CompletionResponse{CompletionCode: pldm.CodeInvalidLength}
		}
		d.request = req
		d.maxTransfer = req.MaxTransferSize
		d.phase = phaseLearn
		return pldm.RequestUpdateResponse{
			FDMetaDataLength:         b.FDMetaDataLength,
			FDWillSendGetPackageData: b.WillSendGetPackageData,
		}
	case pldm.CmdPassComponentTable:
		req, err := pldm.DecodePassComponentTableRequest(p)
		if err != nil {
			return pldm.CompletionResponse{CompletionCode: pldm.CodeInvalidLength}
		}
		d.passTable = append(d.passTable, req)
		if req.TransferFlag&pldm.TransferFlagEnd != 0 {
			d.phase = phaseReady
		}
		return pldm.PassComponentTableResponse{
			ComponentResponse:     b.ComponentResponse,
			ComponentResponseCode: b.ComponentResponseCode,
		}
	case pldm.CmdUpdateComponent:
		req, err := pldm.DecodeUpdateComponentRequest(p)
		if err != nil {
			return pldm.CompletionResponse{CompletionCode: pldm.CodeInvalidLength}
		}
		d.updates = append(d.updates, req)
		if b.CompatibilityResponse == pldm.CompatibilityCanBeUpdated {
			d.current = req
			d.image = make([]byte, req.ImageSize)
			d.offset = 0
			d.phase = phaseDownload
		}
		return pldm.UpdateComponentResponse{
			CompatibilityResponse:     b.CompatibilityResponse,
			CompatibilityResponseCode: b.CompatibilityResponseCode,
			TimeBeforeRequestFwData:   b.TimeBeforeRequestFwData,
		}
	case pldm.CmdActivateFirmware:
		d.activated = true
		d.phase = phaseIdle
		return pldm.ActivateFirmwareResponse{EstimatedTimeForActivation: b.EstimatedActivation}
	case pldm.CmdCancelUpdateComponent:
		d.phase = phaseReady
		return pldm.CompletionResponse{}
	case pldm.CmdCancelUpdate:
		d.cancelled = true
		d.phase = phaseIdle
		return pldm.CancelUpdateResponse{}
	default:
		return pldm.CompletionResponse{CompletionCode: pldm.CodeUnsupportedCommand}
	}
}

// advance queues the next FD request for the current phase.
func (d *Device) advance() {
	switch d.phase {
	case phaseDownload:
		if len(d.extras) > 0 {
			req := d.extras[0]
			d.extras = d.extras[1:]
			d.queueEncoded(pldm.CmdRequestFirmwareData, req, outstanding{pull: req})
			return
		}
		size := d.current.ImageSize
		if d.offset >= size {
			d.queueEncoded(pldm.CmdTransferComplete, pldm.TransferCompleteRequest{Result: d.behavior.TransferResult}, outstanding{})
			return
		}
		if d.behavior.StallAfterPulls > 0 && d.pulls >= d.behavior.StallAfterPulls {
			return
		}
		chunk := d.behavior.ChunkSize
		if d.maxTransfer > 0 && chunk > d.maxTransfer {
			chunk = d.maxTransfer
		}
		if uint64(d.offset)+uint64(chunk) > uint64(size)+pldm.BaselineTransferSize {
			chunk = size - d.offset
		}
		req := pldm.RequestFirmwareDataRequest{Offset: d.offset, Length: chunk}
		d.pulls++
		d.queueEncoded(pldm.CmdRequestFirmwareData, req, outstanding{pull: req, regular: true})
	case phaseVerify:
		d.queueEncoded(pldm.CmdVerifyComplete, pldm.VerifyCompleteRequest{Result: d.behavior.VerifyResult}, outstanding{})
	case phaseApply:
		d.queueEncoded(pldm.CmdApplyComplete, pldm.ApplyCompleteRequest{
			Result:                        d.behavior.ApplyResult,
			ActivationMethodsModification: d.behavior.ActivationModification,
		}, outstanding{})
	}
}

func (d *Device) queueEncoded(cmd pldm.Command, body pldm.Encoder, o outstanding) {
	p, err := body.Encode()
	if err != nil {
		log.Error().Err(err).Str("device", d.name).Msg("fdsim encode failed")
		return
	}
	d.queueRequest(cmd, p, o)
}

func (d *Device) queueRequest(cmd pldm.Command, payload []byte, o outstanding) {
	h := pldm.NewRequestHeader(d.fdInst, cmd)
	d.fdInst = (d.fdInst + 1) & pldm.InstanceIDMask
	d.fdTag = (d.fdTag + 1) & 0x07
	o.cmd = cmd
	d.pending[h.InstanceID] = o
	d.outbox = append(d.outbox, message{data: append(h.Append(nil), payload...), tag: d.fdTag})
}

func (d *Device) acceptResponse(h pldm.Header, msg []byte) error {
	o, ok := d.pending[h.InstanceID]
	if !ok || o.cmd != h.Command {
		return fmt.Errorf("fdsim %s: unexpected response %s instance %d", d.name, h.Command, h.InstanceID)
	}
	delete(d.pending, h.InstanceID)
	cmd := o.cmd

	p := pldm.Payload(msg)
	if len(p) == 0 {
		return fmt.Errorf("fdsim %s: %s response without completion code", d.name, cmd)
	}
	code := pldm.CompletionCode(p[0])
	d.answers = append(d.answers, Answer{Command: cmd, Code: code})

	switch cmd {
	case pldm.CmdRequestFirmwareData:
		if !o.regular || d.phase != phaseDownload {
			return nil
		}
		if code != pldm.CodeSuccess {
			d.phase = phaseStalled
			return nil
		}
		if o.pull.Offset < d.current.ImageSize {
			copy(d.image[o.pull.Offset:], p[1:])
		}
		d.offset = o.pull.Offset + o.pull.Length
		if d.offset >= d.current.ImageSize {
			d.images[d.current.ID] = append([]byte(nil), d.image...)
		}
	case pldm.CmdTransferComplete:
		if d.phase != phaseDownload {
			return nil
		}
		if code != pldm.CodeSuccess || d.behavior.TransferResult != pldm.TransferSuccess || d.behavior.SkipVerify {
			d.phase = phaseStalled
			return nil
		}
		d.phase = phaseVerify
	case pldm.CmdVerifyComplete:
		if d.phase != phaseVerify {
			return nil
		}
		if code != pldm.CodeSuccess || d.behavior.VerifyResult != pldm.VerifySuccess {
			d.phase = phaseStalled
			return nil
		}
		d.phase = phaseApply
	case pldm.CmdApplyComplete:
		if d.phase != phaseApply {
			return nil
		}
		if code != pldm.CodeSuccess || !applied(d.behavior.ApplyResult) {
			d.phase = phaseStalled
			return nil
		}
		d.phase = phaseReady
	}
	return nil
}

func applied(result uint8) bool {
	return result == pldm.ApplySuccess || result == pldm.ApplySuccessWithActivationMethod
}
