package pldm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
)

func TestHeaderAppendMasksInstanceAndSetsRequestBit(t *testing.T) {
	testlog.Start(t)

	h := NewRequestHeader(0x25, CmdRequestUpdate)
	b := h.Append(nil)
	want := []byte{MCTPTypePLDM, RequestBit | 0x05, TypeFirmwareUpdate, byte(CmdRequestUpdate)}
	if !bytes.Equal(b, want) {
		t.Fatalf("unexpected header bytes: % x want % x", b, want)
	}

	decoded, err := DecodeHeader(b)
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	if !decoded.Request || decoded.InstanceID != 0x05 || decoded.Command != CmdRequestUpdate {
		t.Fatalf("unexpected decoded header: %+v", decoded)
	}
	if err := decoded.CheckType(); err != nil {
		t.Fatalf("check type: %v", err)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	testlog.Start(t)

	if _, err := DecodeHeader([]byte{MCTPTypePLDM, 0x80}); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("expected ErrShortHeader, got %v", err)
	}
}

func TestCheckTypeRejectsForeignMessages(t *testing.T) {
	testlog.Start(t)

	h := NewRequestHeader(1, CmdQueryDeviceIdentifiers)
	h.MCTPType = 0x7e
	if err := h.CheckType(); !errors.Is(err, ErrNotPLDM) {
		t.Fatalf("expected ErrNotPLDM, got %v", err)
	}
	h = NewRequestHeader(1, CmdQueryDeviceIdentifiers)
	h.Type = 0x00
	if err := h.CheckType(); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
}

func TestMatchResponse(t *testing.T) {
	testlog.Start(t)

	req := NewRequestHeader(7, CmdUpdateComponent)
	if err := MatchResponse(req, req.ResponseHeader()); err != nil {
		t.Fatalf("expected match, got %v", err)
	}

	cases := map[string]func(h Header) Header{
		"request bit": func(h Header) Header { h.Request = true; return h },
		"instance":    func(h Header) Header { h.InstanceID = 8; return h },
		"command":     func(h Header) Header { h.Command = CmdPassComponentTable; return h },
		"type":        func(h Header) Header { h.Type = 0; return h },
	}
	for name, mutate := range cases {
		rsp := mutate(req.ResponseHeader())
		if err := MatchResponse(req, rsp); !errors.Is(err, ErrHeaderMismatch) {
			t.Fatalf("%s: expected ErrHeaderMismatch, got %v", name, err)
		}
	}
}

func TestTransferFlag(t *testing.T) {
	testlog.Start(t)

	cases := []struct {
		index, count int
		want         uint8
	}{
		{0, 1, TransferFlagStart | TransferFlagEnd},
		{0, 3, TransferFlagStart},
		{1, 3, TransferFlagMiddle},
		{2, 3, TransferFlagEnd},
	}
	for _, tc := range cases {
		if got := TransferFlag(tc.index, tc.count); got != tc.want {
			t.Fatalf("TransferFlag(%d, %d) = 0x%02x want 0x%02x", tc.index, tc.count, got, tc.want)
		}
	}
}

func TestQueryDeviceIdentifiersResponseLengthMustMatch(t *testing.T) {
	testlog.Start(t)

	rsp := QueryDeviceIdentifiersResponse{
		Descriptors: []Descriptor{
			{Type: DescriptorPCIVendorID, Data: []byte{0xde, 0x10}},
			{Type: DescriptorPCIDeviceID, Data: []byte{0x34, 0x12}},
		},
	}
	p, err := rsp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeQueryDeviceIdentifiersResponse(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !ContainsAll(decoded.Descriptors, rsp.Descriptors) || len(decoded.Descriptors) != 2 {
		t.Fatalf("unexpected descriptors: %+v", decoded.Descriptors)
	}

	if _, err := DecodeQueryDeviceIdentifiersResponse(append(p, 0x00)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength for trailing byte, got %v", err)
	}

	short := append([]byte(nil), p...)
	short[1]--
	short = short[:len(short)-1]
	if _, err := DecodeQueryDeviceIdentifiersResponse(short); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestGetFirmwareParametersResponseParsesTable(t *testing.T) {
	testlog.Start(t)

	rsp := GetFirmwareParametersResponse{
		CapabilitiesDuringUpdate: 0x10,
		ActiveImageSetVersion:    NewASCIIVersion("set-1.0"),
		PendingImageSetVersion:   NewASCIIVersion(""),
		Components: []ComponentParameter{
			{Classification: ClassificationFirmware, ID: 1, ClassificationIndex: 0, ActiveVersion: NewASCIIVersion("1.0")},
			{Classification: ClassificationFirmware, ID: 2, ClassificationIndex: 3, ActiveVersion: NewASCIIVersion("2.0"),
				PendingVersion: NewASCIIVersion("2.1"), ActivationMethods: ActivationMediumSpecificReset},
		},
	}
	p, err := rsp.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeGetFirmwareParametersResponse(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(decoded.Components))
	}
	second := decoded.Components[1]
	if !second.Matches(ClassificationFirmware, 2) || second.ClassificationIndex != 3 {
		t.Fatalf("unexpected second component: %+v", second)
	}
	if second.PendingVersion.String() != "2.1" || second.ActivationMethods != ActivationMediumSpecificReset {
		t.Fatalf("unexpected second component versions: %+v", second)
	}
	if decoded.ActiveImageSetVersion.String() != "set-1.0" {
		t.Fatalf("unexpected image set version %q", decoded.ActiveImageSetVersion)
	}

	if _, err := DecodeGetFirmwareParametersResponse(p[:len(p)-1]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	if _, err := DecodeGetFirmwareParametersResponse(append(p, 0xff)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestFixedResponsesCheckCompletionBeforeLength(t *testing.T) {
	testlog.Start(t)

	_, err := DecodeUpdateComponentResponse([]byte{byte(CodeNotInUpdateMode)})
	var cerr *CompletionError
	if !errors.As(err, &cerr) || cerr.Code != CodeNotInUpdateMode {
		t.Fatalf("expected CompletionError NOT_IN_UPDATE_MODE, got %v", err)
	}
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("expected ErrCompletion, got %v", err)
	}

	p, _ := UpdateComponentResponse{TimeBeforeRequestFwData: 500}.Encode()
	if _, err := DecodeUpdateComponentResponse(append(p, 0)); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	decoded, err := DecodeUpdateComponentResponse(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.TimeBeforeRequestFwData != 500 {
		t.Fatalf("unexpected time before request: %d", decoded.TimeBeforeRequestFwData)
	}

	if _, err := DecodeCompletionResponse(CmdTransferComplete, []byte{0, 0}); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestRequestFirmwareDataRequestDecode(t *testing.T) {
	testlog.Start(t)

	p, _ := RequestFirmwareDataRequest{Offset: 0xfffffff0, Length: 0x20}.Encode()
	if !bytes.Equal(p, []byte{0xf0, 0xff, 0xff, 0xff, 0x20, 0, 0, 0}) {
		t.Fatalf("unexpected little-endian encoding: % x", p)
	}
	req, err := DecodeRequestFirmwareDataRequest(p)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.End() != 0x100000010 {
		t.Fatalf("End overflowed: 0x%x", req.End())
	}
	if _, err := DecodeRequestFirmwareDataRequest(p[:7]); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestVersionStringTooLong(t *testing.T) {
	testlog.Start(t)

	req := PassComponentTableRequest{Version: VersionString{Type: StringTypeASCII, Value: make([]byte, 256)}}
	if _, err := req.Encode(); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}
