package pldm

const (
	RequestFirmwareDataRequestLen = 8
	TransferCompleteRequestLen    = 1
	VerifyCompleteRequestLen      = 1
	ApplyCompleteRequestLen       = 3
)

// RequestFirmwareDataRequest is an FD pull of Length bytes at Offset of the
// component image being transferred.
type RequestFirmwareDataRequest struct {
	Offset uint32
	Length uint32
}

func (r RequestFirmwareDataRequest) Encode() ([]byte, error) {
	b := make([]byte, 0, RequestFirmwareDataRequestLen)
	b = appendU32(b, r.Offset)
	return appendU32(b, r.Length), nil
}

func DecodeRequestFirmwareDataRequest(p []byte) (RequestFirmwareDataRequest, error) {
	r := newReader(p)
	out := RequestFirmwareDataRequest{Offset: r.u32(), Length: r.u32()}
	return out, r.err
}

// End returns Offset+Length without overflow.
func (r RequestFirmwareDataRequest) End() uint64 {
	return uint64(r.Offset) + uint64(r.Length)
}

type RequestFirmwareDataResponse struct {
	CompletionCode CompletionCode
	Data           []byte
}

func (r RequestFirmwareDataResponse) Encode() ([]byte, error) {
	b := make([]byte, 0, 1+len(r.Data))
	b = append(b, byte(r.CompletionCode))
	return append(b, r.Data...), nil
}

func DecodeRequestFirmwareDataResponse(p []byte) (RequestFirmwareDataResponse, error) {
	cc, err := completion(CmdRequestFirmwareData, p)
	if err != nil {
		return RequestFirmwareDataResponse{CompletionCode: cc}, err
	}
	data := make([]byte, len(p)-1)
	copy(data, p[1:])
	return RequestFirmwareDataResponse{CompletionCode: cc, Data: data}, nil
}

type TransferCompleteRequest struct {
	Result uint8
}

func (r TransferCompleteRequest) Encode() ([]byte, error) {
	return []byte{r.Result}, nil
}

func DecodeTransferCompleteRequest(p []byte) (TransferCompleteRequest, error) {
	if len(p) < TransferCompleteRequestLen {
		return TransferCompleteRequest{}, ErrTruncated
	}
	return TransferCompleteRequest{Result: p[0]}, nil
}

type VerifyCompleteRequest struct {
	Result uint8
}

func (r VerifyCompleteRequest) Encode() ([]byte, error) {
	return []byte{r.Result}, nil
}

func DecodeVerifyCompleteRequest(p []byte) (VerifyCompleteRequest, error) {
	if len(p) < VerifyCompleteRequestLen {
		return VerifyCompleteRequest{}, ErrTruncated
	}
	return VerifyCompleteRequest{Result: p[0]}, nil
}

type ApplyCompleteRequest struct {
	Result                        uint8
	ActivationMethodsModification uint16
}

func (r ApplyCompleteRequest) Encode() ([]byte, error) {
	return appendU16([]byte{r.Result}, r.ActivationMethodsModification), nil
}

func DecodeApplyCompleteRequest(p []byte) (ApplyCompleteRequest, error) {
	r := newReader(p)
	out := ApplyCompleteRequest{Result: r.u8(), ActivationMethodsModification: r.u16()}
	return out, r.err
}
