package pldm

import (
	"bytes"
	"fmt"
)

// Descriptor is one device identifier as reported by QueryDeviceIdentifiers
// and listed in a package device-identifier record.
type Descriptor struct {
	Type uint16
	Data []byte
}

func (d Descriptor) Equal(o Descriptor) bool {
	return d.Type == o.Type && bytes.Equal(d.Data, o.Data)
}

// ContainsAll reports whether every descriptor in want appears in have.
func ContainsAll(have, want []Descriptor) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h.Equal(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func appendDescriptors(b []byte, descs []Descriptor) ([]byte, error) {
	for _, d := range descs {
		if len(d.Data) > 0xffff {
			return nil, fmt.Errorf("%w: descriptor 0x%04x data %d bytes", ErrInvalidLength, d.Type, len(d.Data))
		}
		b = appendU16(b, d.Type)
		b = appendU16(b, uint16(len(d.Data)))
		b = append(b, d.Data...)
	}
	return b, nil
}

func readDescriptors(r *reader, count int) []Descriptor {
	out := make([]Descriptor, 0, count)
	for i := 0; i < count && r.err == nil; i++ {
		typ := r.u16()
		n := r.u16()
		data := r.bytes(int(n))
		if r.err != nil {
			break
		}
		out = append(out, Descriptor{Type: typ, Data: data})
	}
	return out
}

// QueryDeviceIdentifiersResponse lists the FD's identifying descriptors.
type QueryDeviceIdentifiersResponse struct {
	CompletionCode CompletionCode
	Descriptors    []Descriptor
}

func (r QueryDeviceIdentifiersResponse) Encode() ([]byte, error) {
	if len(r.Descriptors) > 0xff {
		return nil, fmt.Errorf("%w: %d descriptors", ErrTooManyEntries, len(r.Descriptors))
	}
	descs, err := appendDescriptors(nil, r.Descriptors)
	if err != nil {
		return nil, err
	}
	b := []byte{byte(r.CompletionCode)}
	if r.CompletionCode != CodeSuccess {
		return b, nil
	}
	b = appendU32(b, uint32(len(descs)))
	b = append(b, byte(len(r.Descriptors)))
	return append(b, descs...), nil
}

func DecodeQueryDeviceIdentifiersResponse(p []byte) (QueryDeviceIdentifiersResponse, error) {
	cc, err := completion(CmdQueryDeviceIdentifiers, p)
	if err != nil {
		return QueryDeviceIdentifiersResponse{CompletionCode: cc}, err
	}
	r := newReader(p)
	r.u8()
	length := r.u32()
	count := r.u8()
	if r.err != nil {
		return QueryDeviceIdentifiersResponse{}, r.err
	}
	if uint64(r.remaining()) != uint64(length) {
		return QueryDeviceIdentifiersResponse{}, fmt.Errorf("%w: descriptor area %d bytes, header says %d",
			ErrInvalidLength, r.remaining(), length)
	}
	descs := readDescriptors(r, int(count))
	if r.err != nil {
		return QueryDeviceIdentifiersResponse{}, r.err
	}
	if r.remaining() != 0 {
		return QueryDeviceIdentifiersResponse{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidLength, r.remaining())
	}
	return QueryDeviceIdentifiersResponse{CompletionCode: cc, Descriptors: descs}, nil
}

// ComponentParameter is one entry of the FD's component parameter table.
type ComponentParameter struct {
	Classification           uint16
	ID                       uint16
	ClassificationIndex      uint8
	ActiveComparisonStamp    uint32
	ActiveVersion            VersionString
	ActiveReleaseDate        [8]byte
	PendingComparisonStamp   uint32
	PendingVersion           VersionString
	PendingReleaseDate       [8]byte
	ActivationMethods        uint16
	CapabilitiesDuringUpdate uint32
}

// Matches reports whether the entry describes the package component with
// the given classification and identifier.
func (c ComponentParameter) Matches(classification, id uint16) bool {
	return c.Classification == classification && c.ID == id
}

// GetFirmwareParametersResponse is the FD's firmware inventory.
type GetFirmwareParametersResponse struct {
	CompletionCode           CompletionCode
	CapabilitiesDuringUpdate uint32
	ActiveImageSetVersion    VersionString
	PendingImageSetVersion   VersionString
	Components               []ComponentParameter
}

func (r GetFirmwareParametersResponse) Encode() ([]byte, error) {
	b := []byte{byte(r.CompletionCode)}
	if r.CompletionCode != CodeSuccess {
		return b, nil
	}
	if len(r.Components) > 0xffff {
		return nil, fmt.Errorf("%w: %d components", ErrTooManyEntries, len(r.Components))
	}
	for _, v := range []VersionString{r.ActiveImageSetVersion, r.PendingImageSetVersion} {
		if err := v.check(); err != nil {
			return nil, err
		}
	}
	b = appendU32(b, r.CapabilitiesDuringUpdate)
	b = appendU16(b, uint16(len(r.Components)))
	b = append(b, r.ActiveImageSetVersion.Type, byte(len(r.ActiveImageSetVersion.Value)))
	b = append(b, r.PendingImageSetVersion.Type, byte(len(r.PendingImageSetVersion.Value)))
	b = append(b, r.ActiveImageSetVersion.Value...)
	b = append(b, r.PendingImageSetVersion.Value...)
	for _, c := range r.Components {
		if err := c.ActiveVersion.check(); err != nil {
			return nil, err
		}
		if err := c.PendingVersion.check(); err != nil {
			return nil, err
		}
		b = appendU16(b, c.Classification)
		b = appendU16(b, c.ID)
		b = append(b, c.ClassificationIndex)
		b = appendU32(b, c.ActiveComparisonStamp)
		b = append(b, c.ActiveVersion.Type, byte(len(c.ActiveVersion.Value)))
		b = append(b, c.ActiveReleaseDate[:]...)
		b = appendU32(b, c.PendingComparisonStamp)
		b = append(b, c.PendingVersion.Type, byte(len(c.PendingVersion.Value)))
		b = append(b, c.PendingReleaseDate[:]...)
		b = appendU16(b, c.ActivationMethods)
		b = appendU32(b, c.CapabilitiesDuringUpdate)
		b = append(b, c.ActiveVersion.Value...)
		b = append(b, c.PendingVersion.Value...)
	}
	return b, nil
}

func DecodeGetFirmwareParametersResponse(p []byte) (GetFirmwareParametersResponse, error) {
	cc, err := completion(CmdGetFirmwareParameters, p)
	if err != nil {
		return GetFirmwareParametersResponse{CompletionCode: cc}, err
	}
	r := newReader(p)
	r.u8()
	out := GetFirmwareParametersResponse{CompletionCode: cc}
	out.CapabilitiesDuringUpdate = r.u32()
	count := r.u16()
	out.ActiveImageSetVersion.Type = r.u8()
	activeLen := r.u8()
	out.PendingImageSetVersion.Type = r.u8()
	pendingLen := r.u8()
	out.ActiveImageSetVersion.Value = r.bytes(int(activeLen))
	out.PendingImageSetVersion.Value = r.bytes(int(pendingLen))

	out.Components = make([]ComponentParameter, 0, count)
	for i := 0; i < int(count) && r.err == nil; i++ {
		var c ComponentParameter
		c.Classification = r.u16()
		c.ID = r.u16()
		c.ClassificationIndex = r.u8()
		c.ActiveComparisonStamp = r.u32()
		c.ActiveVersion.Type = r.u8()
		aLen := r.u8()
		copy(c.ActiveReleaseDate[:], r.take(8))
		c.PendingComparisonStamp = r.u32()
		c.PendingVersion.Type = r.u8()
		pLen := r.u8()
		copy(c.PendingReleaseDate[:], r.take(8))
		c.ActivationMethods = r.u16()
		c.CapabilitiesDuringUpdate = r.u32()
		c.ActiveVersion.Value = r.bytes(int(aLen))
		c.PendingVersion.Value = r.bytes(int(pLen))
		if r.err == nil {
			out.Components = append(out.Components, c)
		}
	}
	if r.err != nil {
		return GetFirmwareParametersResponse{}, r.err
	}
	if r.remaining() != 0 {
		return GetFirmwareParametersResponse{}, fmt.Errorf("%w: %d trailing bytes", ErrInvalidLength, r.remaining())
	}
	return out, nil
}
