package pldm

import "fmt"

// Header is the common PLDM-over-MCTP message header.
type Header struct {
	MCTPType   uint8
	Request    bool
	Datagram   bool
	InstanceID uint8
	Type       uint8
	Command    Command
}

// Encoder is a record that can be written after a Header.
type Encoder interface {
	Encode() ([]byte, error)
}

func NewRequestHeader(instanceID uint8, cmd Command) Header {
	return Header{
		MCTPType:   MCTPTypePLDM,
		Request:    true,
		InstanceID: instanceID & InstanceIDMask,
		Type:       TypeFirmwareUpdate,
		Command:    cmd,
	}
}

// ResponseHeader returns the header that answers h.
func (h Header) ResponseHeader() Header {
	h.Request = false
	h.Datagram = false
	return h
}

func (h Header) Append(b []byte) []byte {
	rq := h.InstanceID & InstanceIDMask
	if h.Request {
		rq |= RequestBit
	}
	if h.Datagram {
		rq |= DatagramBit
	}
	return append(b, h.MCTPType, rq, h.Type&TypeMask, byte(h.Command))
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShortHeader
	}
	return Header{
		MCTPType:   b[0],
		Request:    b[1]&RequestBit != 0,
		Datagram:   b[1]&DatagramBit != 0,
		InstanceID: b[1] & InstanceIDMask,
		Type:       b[2] & TypeMask,
		Command:    Command(b[3]),
	}, nil
}

// CheckType rejects messages that are not PLDM firmware update messages.
func (h Header) CheckType() error {
	if h.MCTPType != MCTPTypePLDM {
		return fmt.Errorf("%w: mctp type 0x%02x", ErrNotPLDM, h.MCTPType)
	}
	if h.Type != TypeFirmwareUpdate {
		return fmt.Errorf("%w: 0x%02x", ErrWrongType, h.Type)
	}
	return nil
}

// MatchResponse reports whether rsp answers the request req.
func MatchResponse(req, rsp Header) error {
	switch {
	case rsp.Request:
		return fmt.Errorf("%w: request bit set", ErrHeaderMismatch)
	case rsp.MCTPType != req.MCTPType, rsp.Type != req.Type:
		return fmt.Errorf("%w: type 0x%02x/0x%02x", ErrHeaderMismatch, rsp.MCTPType, rsp.Type)
	case rsp.InstanceID != req.InstanceID:
		return fmt.Errorf("%w: instance %d want %d", ErrHeaderMismatch, rsp.InstanceID, req.InstanceID)
	case rsp.Command != req.Command:
		return fmt.Errorf("%w: command %s want %s", ErrHeaderMismatch, rsp.Command, req.Command)
	}
	return nil
}

// EncodeMessage writes h followed by the encoded body. A nil body yields a
// header-only message.
func EncodeMessage(h Header, body Encoder) ([]byte, error) {
	msg := h.Append(make([]byte, 0, HeaderLen+16))
	if body == nil {
		return msg, nil
	}
	payload, err := body.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", h.Command, err)
	}
	return append(msg, payload...), nil
}

// Payload returns the bytes following the common header.
func Payload(msg []byte) []byte {
	if len(msg) < HeaderLen {
		return nil
	}
	return msg[HeaderLen:]
}
