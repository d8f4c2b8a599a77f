package fwpkg

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
)

func testPackage(t *testing.T) *Package {
	t.Helper()
	devices := []DeviceRecord{
		{
			Descriptors:          []pldm.Descriptor{{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x10}}},
			ApplicableComponents: Bitmap(8, 1),
		},
		{
			Descriptors: []pldm.Descriptor{
				{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x10}},
				{Type: pldm.DescriptorPCIDeviceID, Data: []byte{0x01, 0x20}},
			},
			ApplicableComponents: Bitmap(8, 0, 1),
		},
	}
	images := []Image{
		{Component: Component{Classification: pldm.ClassificationFirmware, ID: 1}, Data: []byte("alpha-image")},
		{Component: Component{Classification: pldm.ClassificationFirmware, ID: 2}, Data: []byte("beta")},
	}
	p, err := New(Header{}, devices, images)
	if err != nil {
		t.Fatalf("new package: %v", err)
	}
	return p
}

func TestNewAssignsOffsetsAndIdentifier(t *testing.T) {
	testlog.Start(t)

	p := testPackage(t)
	if p.Len() != len("alpha-image")+len("beta") {
		t.Fatalf("unexpected package length %d", p.Len())
	}
	if p.Components[1].Offset != uint32(len("alpha-image")) || p.Components[1].Size != 4 {
		t.Fatalf("unexpected layout: %+v", p.Components[1])
	}
	if p.Header.Identifier != IdentifierV2 || p.Header.FormatRevision != 2 {
		t.Fatalf("unexpected header defaults: %+v", p.Header)
	}
}

func TestNewRejectsBitmapMismatch(t *testing.T) {
	testlog.Start(t)

	devices := []DeviceRecord{{ApplicableComponents: []byte{1, 0}}}
	images := []Image{{Data: []byte{1}}}
	if _, err := New(Header{}, devices, images); !errors.Is(err, ErrBitmapLength) {
		t.Fatalf("expected ErrBitmapLength, got %v", err)
	}
}

func TestMatchDeviceRequiresEveryRecordDescriptor(t *testing.T) {
	testlog.Start(t)

	p := testPackage(t)
	fd := []pldm.Descriptor{
		{Type: pldm.DescriptorPCIDeviceID, Data: []byte{0x01, 0x20}},
		{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x10}},
	}
	rec, ok := p.MatchDevice(fd)
	if !ok || rec != &p.Devices[0] {
		t.Fatalf("expected first record to match")
	}
	if !rec.Applicable(1) || rec.Applicable(0) {
		t.Fatalf("unexpected applicability for first record")
	}

	other := []pldm.Descriptor{{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x11}}}
	if _, ok := p.MatchDevice(other); ok {
		t.Fatalf("expected no match for different vendor data")
	}
}

func TestReadImageZeroFillsSlackAndRejectsOverrun(t *testing.T) {
	testlog.Start(t)

	p := testPackage(t)
	dst := bytes.Repeat([]byte{0xff}, 6)
	if err := p.ReadImage(1, 2, dst); err != nil {
		t.Fatalf("read image: %v", err)
	}
	if !bytes.Equal(dst, []byte{'t', 'a', 0, 0, 0, 0}) {
		t.Fatalf("unexpected slack read: % x", dst)
	}

	dst = bytes.Repeat([]byte{0xff}, 4)
	if err := p.ReadImage(1, 33, dst); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
	if !bytes.Equal(dst, []byte{0xff, 0xff, 0xff, 0xff}) {
		t.Fatalf("rejected read must not touch dst: % x", dst)
	}
	if err := p.ReadImage(5, 0, dst); !errors.Is(err, ErrComponentIndex) {
		t.Fatalf("expected ErrComponentIndex, got %v", err)
	}
}

func TestLoadManifest(t *testing.T) {
	testlog.Start(t)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bmc.bin"), []byte("bmc-firmware"), 0o600); err != nil {
		t.Fatalf("write image: %v", err)
	}
	manifest := `
format_revision = 1
release = 2024-05-01T00:00:00Z
version = "bundle-1.2"

[[component]]
name = "bmc"
classification = 0x000a
id = 0x0001
comparison_stamp = 0x00010200
activation_method = 0x0004
version = "1.2.0"
file = "bmc.bin"

[[component]]
name = "cpld"
classification = 0x000a
id = 0x0002
force_update = true
version = "0.9"
data_hex = "deadbeef"

[[device]]
version = "set-1.2"
components = [0, 1]
descriptors = [{ type = 0x0000, data = "de:10" }, { type = 0x0100, data = "2001" }]
`
	path := filepath.Join(dir, "pkg.toml")
	if err := os.WriteFile(path, []byte(manifest), 0o600); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	p, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if p.Header.Identifier != IdentifierV1 {
		t.Fatalf("expected revision 1 identifier, got %s", p.Header.Identifier)
	}
	if len(p.Components) != 2 || p.Components[0].Size != uint32(len("bmc-firmware")) {
		t.Fatalf("unexpected components: %+v", p.Components)
	}
	if !p.Components[1].ForceUpdate() || p.Components[0].RequestedActivationMethod != pldm.ActivationMediumSpecificReset {
		t.Fatalf("unexpected component options: %+v", p.Components)
	}
	rec := p.Devices[0]
	if !rec.Applicable(0) || !rec.Applicable(1) {
		t.Fatalf("expected both components applicable")
	}
	if !bytes.Equal(rec.Descriptors[0].Data, []byte{0xde, 0x10}) {
		t.Fatalf("unexpected descriptor data % x", rec.Descriptors[0].Data)
	}
}

func TestLoadManifestRejectsUnknownComponentIndex(t *testing.T) {
	testlog.Start(t)

	m := Manifest{
		Components: []ManifestComponent{{DataHex: "00"}},
		Devices:    []ManifestDevice{{Components: []int{3}}},
	}
	if _, err := m.Build(t.TempDir()); !errors.Is(err, ErrInvalidManifest) {
		t.Fatalf("expected ErrInvalidManifest, got %v", err)
	}
}
