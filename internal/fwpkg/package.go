// Package fwpkg owns the in-memory firmware update package model.
//
// Ownership boundary:
// - package header, device-identifier records and component image table
// - descriptor matching and applicable-component bitmaps
// - bounded image reads for firmware data pulls
// - manifest loading (TOML + image files)
package fwpkg

import (
	"errors"
	"fmt"
	"time"

	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/google/uuid"
)

var (
	ErrNoComponents    = errors.New("fwpkg: package has no components")
	ErrNoDevices       = errors.New("fwpkg: package has no device records")
	ErrComponentIndex  = errors.New("fwpkg: component index out of range")
	ErrOutOfRange      = errors.New("fwpkg: read outside component image")
	ErrBitmapLength    = errors.New("fwpkg: applicable component bitmap length mismatch")
	ErrImageTooLarge   = errors.New("fwpkg: component image too large")
	ErrInvalidRevision = errors.New("fwpkg: unsupported format revision")
)

// Package identifiers for the published header format revisions.
var (
	IdentifierV1 = uuid.MustParse("f018878c-cb7d-4943-9800-a02f059aca02")
	IdentifierV2 = uuid.MustParse("1244d264-8d7d-4718-a030-fc8a56587d5a")
)

// Component option bits.
const (
	OptionForceUpdate        uint16 = 1 << 0
	OptionUseComparisonStamp uint16 = 1 << 1
)

type Header struct {
	Identifier               uuid.UUID
	FormatRevision           uint8
	ReleaseDateTime          time.Time
	ComponentBitmapBitLength uint16
	Version                  pldm.VersionString
}

// DeviceRecord identifies one class of FD and the components that apply to it.
type DeviceRecord struct {
	Descriptors          []pldm.Descriptor
	ApplicableComponents []byte
	UpdateOptionFlags    uint32
	ImageSetVersion      pldm.VersionString
	PackageData          []byte
}

// Applicable reports whether component index is set in the record bitmap.
func (r *DeviceRecord) Applicable(index int) bool {
	if index < 0 || index/8 >= len(r.ApplicableComponents) {
		return false
	}
	return r.ApplicableComponents[index/8]&(1<<(index%8)) != 0
}

// Component is one entry of the component image table. Offset and Size
// locate the image inside the package.
type Component struct {
	Classification            uint16
	ID                        uint16
	ComparisonStamp           uint32
	Options                   uint16
	RequestedActivationMethod uint16
	Offset                    uint32
	Size                      uint32
	Version                   pldm.VersionString
}

func (c Component) ForceUpdate() bool {
	return c.Options&OptionForceUpdate != 0
}

// Image pairs a component description with its bytes. Offset and Size of
// the component are assigned by New.
type Image struct {
	Component Component
	Data      []byte
}

// Package is a read-only firmware update package.
type Package struct {
	Header     Header
	Devices    []DeviceRecord
	Components []Component
	data       []byte
}

// New lays out images back to back and validates the device records.
func New(h Header, devices []DeviceRecord, images []Image) (*Package, error) {
	if len(images) == 0 {
		return nil, ErrNoComponents
	}
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}
	switch h.FormatRevision {
	case 0:
		h.FormatRevision = 2
	case 1, 2:
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidRevision, h.FormatRevision)
	}
	if h.Identifier == uuid.Nil {
		h.Identifier = IdentifierV1
		if h.FormatRevision >= 2 {
			h.Identifier = IdentifierV2
		}
	}
	if h.ComponentBitmapBitLength == 0 {
		h.ComponentBitmapBitLength = uint16((len(images) + 7) / 8 * 8)
	}
	if int(h.ComponentBitmapBitLength) < len(images) || h.ComponentBitmapBitLength%8 != 0 {
		return nil, fmt.Errorf("%w: bit length %d for %d components", ErrBitmapLength, h.ComponentBitmapBitLength, len(images))
	}

	bitmapLen := int(h.ComponentBitmapBitLength / 8)
	for i, d := range devices {
		if len(d.ApplicableComponents) != bitmapLen {
			return nil, fmt.Errorf("%w: device record %d has %d bytes want %d",
				ErrBitmapLength, i, len(d.ApplicableComponents), bitmapLen)
		}
	}

	p := &Package{Header: h, Devices: devices}
	var offset uint64
	for i, img := range images {
		if uint64(len(img.Data)) > 0xffffffff || offset+uint64(len(img.Data)) > 0xffffffff {
			return nil, fmt.Errorf("%w: component %d", ErrImageTooLarge, i)
		}
		c := img.Component
		c.Offset = uint32(offset)
		c.Size = uint32(len(img.Data))
		p.Components = append(p.Components, c)
		p.data = append(p.data, img.Data...)
		offset += uint64(len(img.Data))
	}
	return p, nil
}

// Bitmap builds an applicable-components bitmap of bitLength bits with the
// given component indexes set.
func Bitmap(bitLength int, indexes ...int) []byte {
	out := make([]byte, (bitLength+7)/8)
	for _, i := range indexes {
		if i >= 0 && i/8 < len(out) {
			out[i/8] |= 1 << (i % 8)
		}
	}
	return out
}

func (p *Package) Len() int {
	return len(p.data)
}

func (p *Package) ComponentTable() []Component {
	return p.Components
}

// MatchDevice returns the first device record whose descriptors are all
// present in the FD's descriptor list.
func (p *Package) MatchDevice(descriptors []pldm.Descriptor) (*DeviceRecord, bool) {
	for i := range p.Devices {
		if pldm.ContainsAll(descriptors, p.Devices[i].Descriptors) {
			return &p.Devices[i], true
		}
	}
	return nil, false
}

// ReadImage copies len(dst) bytes of component index starting at offset.
// Bytes past the image end, within the baseline transfer slack, read as zero.
func (p *Package) ReadImage(index int, offset uint32, dst []byte) error {
	if index < 0 || index >= len(p.Components) {
		return fmt.Errorf("%w: %d", ErrComponentIndex, index)
	}
	c := p.Components[index]
	end := uint64(offset) + uint64(len(dst))
	if end > uint64(c.Size)+pldm.BaselineTransferSize {
		return fmt.Errorf("%w: [%d,%d) of %d", ErrOutOfRange, offset, end, c.Size)
	}
	n := 0
	if offset < c.Size {
		image := p.data[c.Offset : c.Offset+c.Size]
		n = copy(dst, image[offset:])
	}
	clear(dst[n:])
	return nil
}
