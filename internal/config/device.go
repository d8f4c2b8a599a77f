package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/fwupdctl/internal/fdsim"
	"github.com/danmuck/fwupdctl/internal/pldm"
)

// Device is one simulated firmware device of a rehearsal campaign.
type Device struct {
	Name     string
	Behavior fdsim.Behavior
}

type deviceConfig struct {
	Name                    string             `toml:"name"`
	ActiveVersion           string             `toml:"active_version"`
	ChunkSize               uint32             `toml:"chunk_size"`
	TimeBeforeRequestFwData uint16             `toml:"time_before_request_fw_data"`
	Descriptors             []descriptorConfig `toml:"descriptors"`
	Components              []componentConfig  `toml:"components"`
	TransferResult          uint8              `toml:"transfer_result"`
	VerifyResult            uint8              `toml:"verify_result"`
	ApplyResult             uint8              `toml:"apply_result"`
	ActivationModification  uint16             `toml:"activation_modification"`
	Faults                  faultConfig        `toml:"faults"`
}

type descriptorConfig struct {
	Type uint16 `toml:"type"`
	Data string `toml:"data"`
}

type componentConfig struct {
	Classification        uint16 `toml:"classification"`
	ID                    uint16 `toml:"id"`
	ClassificationIndex   uint8  `toml:"classification_index"`
	ActiveVersion         string `toml:"active_version"`
	ActiveComparisonStamp uint32 `toml:"active_comparison_stamp"`
	ActivationMethods     uint16 `toml:"activation_methods"`
}

type faultConfig struct {
	Silent          []string         `toml:"silent"`
	Drop            map[string]int   `toml:"drop"`
	CorruptInstance map[string]int   `toml:"corrupt_instance"`
	Duplicate       map[string]int   `toml:"duplicate"`
	CompletionCodes map[string]uint8 `toml:"completion_codes"`
	StallAfterPulls int              `toml:"stall_after_pulls"`
	SkipVerify      bool             `toml:"skip_verify"`
}

func (dc deviceConfig) device() (Device, error) {
	name := strings.TrimSpace(dc.Name)
	if name == "" {
		return Device{}, fmt.Errorf("name is required")
	}
	if len(dc.Descriptors) == 0 {
		return Device{}, fmt.Errorf("at least one descriptor is required")
	}

	b := fdsim.Behavior{
		ActiveImageSetVersion:   dc.ActiveVersion,
		ChunkSize:               dc.ChunkSize,
		TimeBeforeRequestFwData: dc.TimeBeforeRequestFwData,
		TransferResult:          dc.TransferResult,
		VerifyResult:            dc.VerifyResult,
		ApplyResult:             dc.ApplyResult,
		ActivationModification:  dc.ActivationModification,
		StallAfterPulls:         dc.Faults.StallAfterPulls,
		SkipVerify:              dc.Faults.SkipVerify,
	}
	for i, d := range dc.Descriptors {
		raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(d.Data), ":", ""))
		if err != nil || len(raw) == 0 {
			return Device{}, fmt.Errorf("descriptor %d: invalid data %q", i, d.Data)
		}
		b.Descriptors = append(b.Descriptors, pldm.Descriptor{Type: d.Type, Data: raw})
	}
	for _, c := range dc.Components {
		b.Components = append(b.Components, pldm.ComponentParameter{
			Classification:        c.Classification,
			ID:                    c.ID,
			ClassificationIndex:   c.ClassificationIndex,
			ActiveComparisonStamp: c.ActiveComparisonStamp,
			ActiveVersion:         pldm.NewASCIIVersion(c.ActiveVersion),
			ActivationMethods:     c.ActivationMethods,
		})
	}

	var err error
	if b.Silent, err = silentCommands(dc.Faults.Silent); err != nil {
		return Device{}, err
	}
	if b.Drop, err = commandMap(dc.Faults.Drop); err != nil {
		return Device{}, err
	}
	if b.CorruptInstance, err = commandMap(dc.Faults.CorruptInstance); err != nil {
		return Device{}, err
	}
	if b.Duplicate, err = commandMap(dc.Faults.Duplicate); err != nil {
		return Device{}, err
	}
	codes, err := commandMap(dc.Faults.CompletionCodes)
	if err != nil {
		return Device{}, err
	}
	if codes != nil {
		b.CompletionCodes = make(map[pldm.Command]pldm.CompletionCode, len(codes))
		for cmd, code := range codes {
			b.CompletionCodes[cmd] = pldm.CompletionCode(code)
		}
	}
	return Device{Name: name, Behavior: b}, nil
}

func silentCommands(names []string) (map[pldm.Command]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := make(map[pldm.Command]bool, len(names))
	for _, name := range names {
		cmd, ok := pldm.ParseCommand(name)
		if !ok {
			return nil, fmt.Errorf("faults: unknown command %q", name)
		}
		out[cmd] = true
	}
	return out, nil
}

func commandMap[V any](in map[string]V) (map[pldm.Command]V, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[pldm.Command]V, len(in))
	for name, v := range in {
		cmd, ok := pldm.ParseCommand(name)
		if !ok {
			return nil, fmt.Errorf("faults: unknown command %q", name)
		}
		out[cmd] = v
	}
	return out, nil
}
