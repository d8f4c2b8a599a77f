package fdsim

import (
	"errors"
	"testing"
	"time"

	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
	"github.com/danmuck/fwupdctl/internal/transport"
)

func request(t *testing.T, d *Device, instance uint8, cmd pldm.Command, body pldm.Encoder) (pldm.Header, []byte) {
	t.Helper()
	msg, err := pldm.EncodeMessage(pldm.NewRequestHeader(instance, cmd), body)
	if err != nil {
		t.Fatalf("encode %s: %v", cmd, err)
	}
	tag, err := d.Send(true, msg, 0)
	if err != nil {
		t.Fatalf("send %s: %v", cmd, err)
	}
	buf := make([]byte, 512)
	n, rtag, err := d.Recv(0, buf)
	if err != nil {
		t.Fatalf("recv %s response: %v", cmd, err)
	}
	if rtag != tag {
		t.Fatalf("response tag %d, want %d", rtag, tag)
	}
	h, err := pldm.DecodeHeader(buf[:n])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	return h, pldm.Payload(buf[:n])
}

func TestDeviceAnswersInventory(t *testing.T) {
	testlog.Start(t)

	descs := []pldm.Descriptor{{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x10}}}
	d := New("fd0", Behavior{
		Descriptors: descs,
		Components:  []pldm.ComponentParameter{{Classification: pldm.ClassificationFirmware, ID: 7}},
	})

	h, p := request(t, d, 3, pldm.CmdQueryDeviceIdentifiers, nil)
	if h.Request || h.InstanceID != 3 || h.Command != pldm.CmdQueryDeviceIdentifiers {
		t.Fatalf("unexpected response header %+v", h)
	}
	qdi, err := pldm.DecodeQueryDeviceIdentifiersResponse(p)
	if err != nil || len(qdi.Descriptors) != 1 || !qdi.Descriptors[0].Equal(descs[0]) {
		t.Fatalf("unexpected identifiers %+v err=%v", qdi, err)
	}

	_, p = request(t, d, 4, pldm.CmdGetFirmwareParameters, nil)
	gfp, err := pldm.DecodeGetFirmwareParametersResponse(p)
	if err != nil || len(gfp.Components) != 1 || gfp.Components[0].ID != 7 {
		t.Fatalf("unexpected parameters %+v err=%v", gfp, err)
	}
	if got := d.Count(pldm.CmdGetFirmwareParameters); got != 1 {
		t.Fatalf("expected one GetFirmwareParameters, got %d", got)
	}
}

func TestDeviceFaultInjection(t *testing.T) {
	testlog.Start(t)

	d := New("fd1", Behavior{
		Drop:            map[pldm.Command]int{pldm.CmdQueryDeviceIdentifiers: 1},
		CorruptInstance: map[pldm.Command]int{pldm.CmdGetFirmwareParameters: 1},
		CompletionCodes: map[pldm.Command]pldm.CompletionCode{pldm.CmdRequestUpdate: pldm.CodeAlreadyInUpdateMode},
		Duplicate:       map[pldm.Command]int{pldm.CmdActivateFirmware: 1},
		RecvError:       errors.New("link down"),
	})
	buf := make([]byte, 64)
	if _, _, err := d.Recv(0, buf); err == nil || err.Error() != "link down" {
		t.Fatalf("expected injected recv error, got %v", err)
	}

	msg, _ := pldm.EncodeMessage(pldm.NewRequestHeader(1, pldm.CmdQueryDeviceIdentifiers), nil)
	if _, err := d.Send(true, msg, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, _, err := d.Recv(10*time.Millisecond, buf); !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("expected dropped request to time out, got %v", err)
	}

	h, _ := request(t, d, 2, pldm.CmdGetFirmwareParameters, nil)
	if h.InstanceID == 2 {
		t.Fatalf("expected corrupted instance id")
	}
	h, _ = request(t, d, 5, pldm.CmdGetFirmwareParameters, nil)
	if h.InstanceID != 5 {
		t.Fatalf("corruption should apply once, got instance %d", h.InstanceID)
	}

	_, p := request(t, d, 6, pldm.CmdRequestUpdate, pldm.RequestUpdateRequest{MaxTransferSize: 64})
	if _, err := pldm.DecodeRequestUpdateResponse(p); !errors.Is(err, pldm.ErrCompletion) {
		t.Fatalf("expected forced completion code, got %v", err)
	}

	first, _ := request(t, d, 7, pldm.CmdActivateFirmware, pldm.ActivateFirmwareRequest{})
	n, _, err := d.Recv(0, buf)
	if err != nil {
		t.Fatalf("expected duplicated response, got %v", err)
	}
	dup, err := pldm.DecodeHeader(buf[:n])
	if err != nil || dup != first {
		t.Fatalf("duplicate must repeat the response header, got %+v err=%v", dup, err)
	}
	request(t, d, 8, pldm.CmdActivateFirmware, pldm.ActivateFirmwareRequest{})
	if _, _, err := d.Recv(0, buf); !errors.Is(err, transport.ErrTimeout) {
		t.Fatalf("duplication should apply once, got %v", err)
	}
}

func TestDevicePullsImageAndReportsCompletion(t *testing.T) {
	testlog.Start(t)

	d := New("fd2", Behavior{ChunkSize: 16})
	request(t, d, 1, pldm.CmdRequestUpdate, pldm.RequestUpdateRequest{MaxTransferSize: 32, NumComponents: 1})
	request(t, d, 2, pldm.CmdPassComponentTable, pldm.PassComponentTableRequest{
		TransferFlag: pldm.TransferFlagStart | pldm.TransferFlagEnd,
		ID:           9,
	})
	request(t, d, 3, pldm.CmdUpdateComponent, pldm.UpdateComponentRequest{ID: 9, ImageSize: 20})

	image := []byte("0123456789abcdefghij")
	buf := make([]byte, 128)
	var offsets []uint32
	for {
		n, tag, err := d.Recv(0, buf)
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		h, _ := pldm.DecodeHeader(buf[:n])
		if h.Command == pldm.CmdTransferComplete {
			break
		}
		req, err := pldm.DecodeRequestFirmwareDataRequest(pldm.Payload(buf[:n]))
		if err != nil {
			t.Fatalf("decode pull: %v", err)
		}
		offsets = append(offsets, req.Offset)
		data := make([]byte, req.Length)
		copy(data, image[req.Offset:])
		rsp, _ := pldm.EncodeMessage(h.ResponseHeader(), pldm.RequestFirmwareDataResponse{Data: data})
		if _, err := d.Send(false, rsp, tag); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 16 {
		t.Fatalf("unexpected pull offsets %v", offsets)
	}
	got, ok := d.Image(9)
	if !ok || string(got) != string(image) {
		t.Fatalf("unexpected received image %q ok=%v", got, ok)
	}
}
