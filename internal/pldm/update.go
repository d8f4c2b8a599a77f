package pldm

import "fmt"

const (
	requestUpdateResponseLen      = 4
	passComponentTableResponseLen = 3
	updateComponentResponseLen    = 9
	activateFirmwareResponseLen   = 3
	cancelUpdateResponseLen       = 10
	completionOnlyResponseLen     = 1
	requestUpdateFixedLen         = 11
	passComponentTableFixedLen    = 12
	updateComponentFixedLen       = 19
	activateFirmwareRequestLen    = 1
)

// RequestUpdateRequest asks the FD to enter update mode.
type RequestUpdateRequest struct {
	MaxTransferSize                uint32
	NumComponents                  uint16
	MaxOutstandingTransferRequests uint8
	PackageDataLength              uint16
	ImageSetVersion                VersionString
}

func (r RequestUpdateRequest) Encode() ([]byte, error) {
	if err := r.ImageSetVersion.check(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, requestUpdateFixedLen+len(r.ImageSetVersion.Value))
	b = appendU32(b, r.MaxTransferSize)
	b = appendU16(b, r.NumComponents)
	b = append(b, r.MaxOutstandingTransferRequests)
	b = appendU16(b, r.PackageDataLength)
	b = append(b, r.ImageSetVersion.Type, byte(len(r.ImageSetVersion.Value)))
	return append(b, r.ImageSetVersion.Value...), nil
}

func DecodeRequestUpdateRequest(p []byte) (RequestUpdateRequest, error) {
	r := newReader(p)
	var out RequestUpdateRequest
	out.MaxTransferSize = r.u32()
	out.NumComponents = r.u16()
	out.MaxOutstandingTransferRequests = r.u8()
	out.PackageDataLength = r.u16()
	out.ImageSetVersion.Type = r.u8()
	n := r.u8()
	out.ImageSetVersion.Value = r.bytes(int(n))
	return out, r.err
}

type RequestUpdateResponse struct {
	CompletionCode           CompletionCode
	FDMetaDataLength         uint16
	FDWillSendGetPackageData uint8
}

func (r RequestUpdateResponse) Encode() ([]byte, error) {
	b := []byte{byte(r.CompletionCode)}
	b = appendU16(b, r.FDMetaDataLength)
	return append(b, r.FDWillSendGetPackageData), nil
}

func DecodeRequestUpdateResponse(p []byte) (RequestUpdateResponse, error) {
	cc, err := completion(CmdRequestUpdate, p)
	if err != nil {
		return RequestUpdateResponse{CompletionCode: cc}, err
	}
	if err := exact(CmdRequestUpdate, p, requestUpdateResponseLen); err != nil {
		return RequestUpdateResponse{}, err
	}
	r := newReader(p[1:])
	return RequestUpdateResponse{
		CompletionCode:           cc,
		FDMetaDataLength:         r.u16(),
		FDWillSendGetPackageData: r.u8(),
	}, nil
}

// PassComponentTableRequest describes one component the UA intends to update.
type PassComponentTableRequest struct {
	TransferFlag        uint8
	Classification      uint16
	ID                  uint16
	ClassificationIndex uint8
	ComparisonStamp     uint32
	Version             VersionString
}

func (r PassComponentTableRequest) Encode() ([]byte, error) {
	if err := r.Version.check(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, passComponentTableFixedLen+len(r.Version.Value))
	b = append(b, r.TransferFlag)
	b = appendU16(b, r.Classification)
	b = appendU16(b, r.ID)
	b = append(b, r.ClassificationIndex)
	b = appendU32(b, r.ComparisonStamp)
	b = append(b, r.Version.Type, byte(len(r.Version.Value)))
	return append(b, r.Version.Value...), nil
}

func DecodePassComponentTableRequest(p []byte) (PassComponentTableRequest, error) {
	r := newReader(p)
	var out PassComponentTableRequest
	out.TransferFlag = r.u8()
	out.Classification = r.u16()
	out.ID = r.u16()
	out.ClassificationIndex = r.u8()
	out.ComparisonStamp = r.u32()
	out.Version.Type = r.u8()
	n := r.u8()
	out.Version.Value = r.bytes(int(n))
	return out, r.err
}

type PassComponentTableResponse struct {
	CompletionCode        CompletionCode
	ComponentResponse     uint8
	ComponentResponseCode uint8
}

func (r PassComponentTableResponse) Encode() ([]byte, error) {
	return []byte{byte(r.CompletionCode), r.ComponentResponse, r.ComponentResponseCode}, nil
}

func DecodePassComponentTableResponse(p []byte) (PassComponentTableResponse, error) {
	cc, err := completion(CmdPassComponentTable, p)
	if err != nil {
		return PassComponentTableResponse{CompletionCode: cc}, err
	}
	if err := exact(CmdPassComponentTable, p, passComponentTableResponseLen); err != nil {
		return PassComponentTableResponse{}, err
	}
	return PassComponentTableResponse{
		CompletionCode:        cc,
		ComponentResponse:     p[1],
		ComponentResponseCode: p[2],
	}, nil
}

// UpdateComponentRequest starts the transfer of one component image.
type UpdateComponentRequest struct {
	Classification      uint16
	ID                  uint16
	ClassificationIndex uint8
	ComparisonStamp     uint32
	ImageSize           uint32
	UpdateOptionFlags   uint32
	Version             VersionString
}

func (r UpdateComponentRequest) Encode() ([]byte, error) {
	if err := r.Version.check(); err != nil {
		return nil, err
	}
	b := make([]byte, 0, updateComponentFixedLen+len(r.Version.Value))
	b = appendU16(b, r.Classification)
	b = appendU16(b, r.ID)
	b = append(b, r.ClassificationIndex)
	b = appendU32(b, r.ComparisonStamp)
	b = appendU32(b, r.ImageSize)
	b = appendU32(b, r.UpdateOptionFlags)
	b = append(b, r.Version.Type, byte(len(r.Version.Value)))
	return append(b, r.Version.Value...), nil
}

func DecodeUpdateComponentRequest(p []byte) (UpdateComponentRequest, error) {
	r := newReader(p)
	var out UpdateComponentRequest
	out.Classification = r.u16()
	out.ID = r.u16()
	out.ClassificationIndex = r.u8()
	out.ComparisonStamp = r.u32()
	out.ImageSize = r.u32()
	out.UpdateOptionFlags = r.u32()
	out.Version.Type = r.u8()
	n := r.u8()
	out.Version.Value = r.bytes(int(n))
	return out, r.err
}

type UpdateComponentResponse struct {
	CompletionCode            CompletionCode
	CompatibilityResponse     uint8
	CompatibilityResponseCode uint8
	UpdateOptionFlagsEnabled  uint32
	// TimeBeforeRequestFwData is in milliseconds.
	TimeBeforeRequestFwData uint16
}

func (r UpdateComponentResponse) Encode() ([]byte, error) {
	b := []byte{byte(r.CompletionCode), r.CompatibilityResponse, r.CompatibilityResponseCode}
	b = appendU32(b, r.UpdateOptionFlagsEnabled)
	return appendU16(b, r.TimeBeforeRequestFwData), nil
}

func DecodeUpdateComponentResponse(p []byte) (UpdateComponentResponse, error) {
	cc, err := completion(CmdUpdateComponent, p)
	if err != nil {
		return UpdateComponentResponse{CompletionCode: cc}, err
	}
	if err := exact(CmdUpdateComponent, p, updateComponentResponseLen); err != nil {
		return UpdateComponentResponse{}, err
	}
	r := newReader(p[1:])
	return UpdateComponentResponse{
		CompletionCode:            cc,
		CompatibilityResponse:     r.u8(),
		CompatibilityResponseCode: r.u8(),
		UpdateOptionFlagsEnabled:  r.u32(),
		TimeBeforeRequestFwData:   r.u16(),
	}, nil
}

// ActivateFirmwareRequest asks the FD to activate every applied component.
type ActivateFirmwareRequest struct {
	SelfContainedActivation bool
}

func (r ActivateFirmwareRequest) Encode() ([]byte, error) {
	if r.SelfContainedActivation {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func DecodeActivateFirmwareRequest(p []byte) (ActivateFirmwareRequest, error) {
	if len(p) < activateFirmwareRequestLen {
		return ActivateFirmwareRequest{}, ErrTruncated
	}
	return ActivateFirmwareRequest{SelfContainedActivation: p[0] != 0}, nil
}

type ActivateFirmwareResponse struct {
	CompletionCode CompletionCode
	// EstimatedTimeForActivation is in seconds.
	EstimatedTimeForActivation uint16
}

func (r ActivateFirmwareResponse) Encode() ([]byte, error) {
	return appendU16([]byte{byte(r.CompletionCode)}, r.EstimatedTimeForActivation), nil
}

func DecodeActivateFirmwareResponse(p []byte) (ActivateFirmwareResponse, error) {
	cc, err := completion(CmdActivateFirmware, p)
	if err != nil {
		return ActivateFirmwareResponse{CompletionCode: cc}, err
	}
	if err := exact(CmdActivateFirmware, p, activateFirmwareResponseLen); err != nil {
		return ActivateFirmwareResponse{}, err
	}
	r := newReader(p[1:])
	return ActivateFirmwareResponse{CompletionCode: cc, EstimatedTimeForActivation: r.u16()}, nil
}

type CancelUpdateResponse struct {
	CompletionCode                    CompletionCode
	NonFunctioningComponentIndication uint8
	NonFunctioningComponentBitmap     uint64
}

func (r CancelUpdateResponse) Encode() ([]byte, error) {
	b := []byte{byte(r.CompletionCode), r.NonFunctioningComponentIndication}
	return appendU64(b, r.NonFunctioningComponentBitmap), nil
}

func DecodeCancelUpdateResponse(p []byte) (CancelUpdateResponse, error) {
	cc, err := completion(CmdCancelUpdate, p)
	if err != nil {
		return CancelUpdateResponse{CompletionCode: cc}, err
	}
	if err := exact(CmdCancelUpdate, p, cancelUpdateResponseLen); err != nil {
		return CancelUpdateResponse{}, err
	}
	r := newReader(p[1:])
	return CancelUpdateResponse{
		CompletionCode:                    cc,
		NonFunctioningComponentIndication: r.u8(),
		NonFunctioningComponentBitmap:     r.u64(),
	}, nil
}

// CompletionResponse is a response that carries only a completion code.
type CompletionResponse struct {
	CompletionCode CompletionCode
}

func (r CompletionResponse) Encode() ([]byte, error) {
	return []byte{byte(r.CompletionCode)}, nil
}

// DecodeCompletionResponse checks a completion-code-only response to cmd.
func DecodeCompletionResponse(cmd Command, p []byte) (CompletionResponse, error) {
	cc, err := completion(cmd, p)
	if err != nil {
		return CompletionResponse{CompletionCode: cc}, err
	}
	if err := exact(cmd, p, completionOnlyResponseLen); err != nil {
		return CompletionResponse{}, fmt.Errorf("decode %s: %w", cmd, err)
	}
	return CompletionResponse{CompletionCode: cc}, nil
}
