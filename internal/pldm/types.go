package pldm

import (
	"fmt"
	"strings"
)

const (
	MCTPTypePLDM       uint8 = 0x01
	TypeFirmwareUpdate uint8 = 0x05

	RequestBit     uint8 = 0x80
	DatagramBit    uint8 = 0x40
	InstanceIDMask uint8 = 0x1f
	TypeMask       uint8 = 0x3f

	HeaderLen         = 4
	ResponseHeaderLen = HeaderLen + 1

	// BaselineTransferSize is the slack an FD may read past the end of a
	// component image when its transfer size does not divide the image.
	BaselineTransferSize = 32
)

// Command is a PLDM for Firmware Update command code.
type Command uint8

const (
	CmdQueryDeviceIdentifiers           Command = 0x01
	CmdGetFirmwareParameters            Command = 0x02
	CmdQueryDownstreamDevices           Command = 0x03
	CmdQueryDownstreamIdentifiers       Command = 0x04
	CmdGetDownstreamFirmwareParameters  Command = 0x05
	CmdRequestUpdate                    Command = 0x10
	CmdGetPackageData                   Command = 0x11
	CmdGetDeviceMetaData                Command = 0x12
	CmdPassComponentTable               Command = 0x13
	CmdUpdateComponent                  Command = 0x14
	CmdRequestFirmwareData              Command = 0x15
	CmdTransferComplete                 Command = 0x16
	CmdVerifyComplete                   Command = 0x17
	CmdApplyComplete                    Command = 0x18
	CmdGetMetaData                      Command = 0x19
	CmdActivateFirmware                 Command = 0x1a
	CmdGetStatus                        Command = 0x1b
	CmdCancelUpdateComponent            Command = 0x1c
	CmdCancelUpdate                     Command = 0x1d
	CmdActivatePendingComponentImageSet Command = 0x1e
	CmdActivatePendingComponentImage    Command = 0x1f
	CmdRequestDownstreamDeviceUpdate    Command = 0x20
)

var commandNames = map[Command]string{
	CmdQueryDeviceIdentifiers:           "QueryDeviceIdentifiers",
	CmdGetFirmwareParameters:            "GetFirmwareParameters",
	CmdQueryDownstreamDevices:           "QueryDownstreamDevices",
	CmdQueryDownstreamIdentifiers:       "QueryDownstreamIdentifiers",
	CmdGetDownstreamFirmwareParameters:  "GetDownstreamFirmwareParameters",
	CmdRequestUpdate:                    "RequestUpdate",
	CmdGetPackageData:                   "GetPackageData",
	CmdGetDeviceMetaData:                "GetDeviceMetaData",
	CmdPassComponentTable:               "PassComponentTable",
	CmdUpdateComponent:                  "UpdateComponent",
	CmdRequestFirmwareData:              "RequestFirmwareData",
	CmdTransferComplete:                 "TransferComplete",
	CmdVerifyComplete:                   "VerifyComplete",
	CmdApplyComplete:                    "ApplyComplete",
	CmdGetMetaData:                      "GetMetaData",
	CmdActivateFirmware:                 "ActivateFirmware",
	CmdGetStatus:                        "GetStatus",
	CmdCancelUpdateComponent:            "CancelUpdateComponent",
	CmdCancelUpdate:                     "CancelUpdate",
	CmdActivatePendingComponentImageSet: "ActivatePendingComponentImageSet",
	CmdActivatePendingComponentImage:    "ActivatePendingComponentImage",
	CmdRequestDownstreamDeviceUpdate:    "RequestDownstreamDeviceUpdate",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(0x%02x)", uint8(c))
}

// ParseCommand resolves a command by its name, case-insensitively.
func ParseCommand(name string) (Command, bool) {
	name = strings.TrimSpace(name)
	for c, n := range commandNames {
		if strings.EqualFold(n, name) {
			return c, true
		}
	}
	return 0, false
}

// Transfer flags for PassComponentTable.
const (
	TransferFlagStart  uint8 = 0x01
	TransferFlagMiddle uint8 = 0x02
	TransferFlagEnd    uint8 = 0x04
)

// TransferFlag returns the flag for entry index of count table entries.
func TransferFlag(index, count int) uint8 {
	var flag uint8
	if index == 0 {
		flag |= TransferFlagStart
	}
	if index == count-1 {
		flag |= TransferFlagEnd
	}
	if flag == 0 {
		flag = TransferFlagMiddle
	}
	return flag
}

// Component activation methods.
const (
	ActivationAutomatic           uint16 = 1 << 0
	ActivationSelfContained       uint16 = 1 << 1
	ActivationMediumSpecificReset uint16 = 1 << 2
	ActivationSystemReboot        uint16 = 1 << 3
	ActivationDCPowerCycle        uint16 = 1 << 4
	ActivationACPowerCycle        uint16 = 1 << 5
	ActivationPendingImage        uint16 = 1 << 6
	ActivationPendingImageSet     uint16 = 1 << 7
)

// Update option flags for UpdateComponent.
const (
	UpdateOptionForceUpdate uint32 = 1 << 0
)

// PassComponentTable component response and UpdateComponent compatibility
// response values.
const (
	ComponentCanBeUpdated    uint8 = 0x00
	ComponentMayNotBeUpdated uint8 = 0x01

	CompatibilityCanBeUpdated  uint8 = 0x00
	CompatibilityWillNotUpdate uint8 = 0x01
)

// Component classifications.
const (
	ClassificationUnknown        uint16 = 0x0000
	ClassificationOther          uint16 = 0x0001
	ClassificationDriver         uint16 = 0x0002
	ClassificationConfiguration  uint16 = 0x0003
	ClassificationApplication    uint16 = 0x0004
	ClassificationInstrument     uint16 = 0x0005
	ClassificationFirmwareBIOS   uint16 = 0x0006
	ClassificationDiagnostic     uint16 = 0x0007
	ClassificationOS             uint16 = 0x0008
	ClassificationMiddleware     uint16 = 0x0009
	ClassificationFirmware       uint16 = 0x000a
	ClassificationBIOSFCode      uint16 = 0x000b
	ClassificationSupportPack    uint16 = 0x000c
	ClassificationSoftwareBundle uint16 = 0x000d
	ClassificationDownstream     uint16 = 0xffff
)

// Descriptor types.
const (
	DescriptorPCIVendorID           uint16 = 0x0000
	DescriptorIANAEnterpriseID      uint16 = 0x0001
	DescriptorUUID                  uint16 = 0x0002
	DescriptorPnPVendorID           uint16 = 0x0003
	DescriptorACPIVendorID          uint16 = 0x0004
	DescriptorIEEECompanyID         uint16 = 0x0005
	DescriptorSCSIVendorID          uint16 = 0x0006
	DescriptorPCIDeviceID           uint16 = 0x0100
	DescriptorPCISubsystemVendorID  uint16 = 0x0101
	DescriptorPCISubsystemID        uint16 = 0x0102
	DescriptorPCIRevisionID         uint16 = 0x0103
	DescriptorPnPProductIdentifier  uint16 = 0x0104
	DescriptorACPIProductIdentifier uint16 = 0x0105
	DescriptorVendorDefined         uint16 = 0xffff
)

// Version string types.
const (
	StringTypeUnknown uint8 = 0
	StringTypeASCII   uint8 = 1
	StringTypeUTF8    uint8 = 2
	StringTypeUTF16   uint8 = 3
	StringTypeUTF16LE uint8 = 4
	StringTypeUTF16BE uint8 = 5
)
