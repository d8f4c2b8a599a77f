package fwpkg

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidManifest = errors.New("fwpkg: invalid manifest")

// Manifest is the TOML description of a package: header fields, component
// images (read from files relative to the manifest, or inline hex) and the
// device records they apply to.
type Manifest struct {
	Identifier     string              `toml:"identifier"`
	FormatRevision uint8               `toml:"format_revision"`
	Release        time.Time           `toml:"release"`
	Version        string              `toml:"version"`
	Components     []ManifestComponent `toml:"component"`
	Devices        []ManifestDevice    `toml:"device"`
}

type ManifestComponent struct {
	Name             string `toml:"name"`
	Classification   uint16 `toml:"classification"`
	ID               uint16 `toml:"id"`
	ComparisonStamp  uint32 `toml:"comparison_stamp"`
	ForceUpdate      bool   `toml:"force_update"`
	ActivationMethod uint16 `toml:"activation_method"`
	Version          string `toml:"version"`
	File             string `toml:"file"`
	DataHex          string `toml:"data_hex"`
}

type ManifestDevice struct {
	Version           string               `toml:"version"`
	UpdateOptionFlags uint32               `toml:"update_option_flags"`
	Components        []int                `toml:"components"`
	Descriptors       []ManifestDescriptor `toml:"descriptors"`
}

type ManifestDescriptor struct {
	Type uint16 `toml:"type"`
	Data string `toml:"data"`
}

// LoadManifest reads a manifest file and builds the package it describes.
func LoadManifest(path string) (*Package, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest load failed (%s): %w", path, err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest parse failed (%s): %w", path, err)
	}
	return m.Build(filepath.Dir(path))
}

// Build resolves component files against dir and assembles the package.
func (m Manifest) Build(dir string) (*Package, error) {
	h := Header{
		FormatRevision:  m.FormatRevision,
		ReleaseDateTime: m.Release,
		Version:         pldm.NewASCIIVersion(m.Version),
	}
	if id := strings.TrimSpace(m.Identifier); id != "" {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: identifier: %v", ErrInvalidManifest, err)
		}
		h.Identifier = parsed
	}

	images := make([]Image, 0, len(m.Components))
	for i, mc := range m.Components {
		data, err := mc.load(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: component %d (%s): %v", ErrInvalidManifest, i, mc.Name, err)
		}
		var opts uint16
		if mc.ForceUpdate {
			opts |= OptionForceUpdate
		}
		images = append(images, Image{
			Component: Component{
				Classification:            mc.Classification,
				ID:                        mc.ID,
				ComparisonStamp:           mc.ComparisonStamp,
				Options:                   opts,
				RequestedActivationMethod: mc.ActivationMethod,
				Version:                   pldm.NewASCIIVersion(mc.Version),
			},
			Data: data,
		})
	}

	bitLength := (len(images) + 7) / 8 * 8
	devices := make([]DeviceRecord, 0, len(m.Devices))
	for i, md := range m.Devices {
		rec := DeviceRecord{
			UpdateOptionFlags: md.UpdateOptionFlags,
			ImageSetVersion:   pldm.NewASCIIVersion(md.Version),
		}
		for _, idx := range md.Components {
			if idx < 0 || idx >= len(images) {
				return nil, fmt.Errorf("%w: device %d names component %d of %d", ErrInvalidManifest, i, idx, len(images))
			}
		}
		rec.ApplicableComponents = Bitmap(bitLength, md.Components...)
		for j, d := range md.Descriptors {
			raw, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(d.Data), ":", ""))
			if err != nil {
				return nil, fmt.Errorf("%w: device %d descriptor %d: %v", ErrInvalidManifest, i, j, err)
			}
			rec.Descriptors = append(rec.Descriptors, pldm.Descriptor{Type: d.Type, Data: raw})
		}
		devices = append(devices, rec)
	}

	return New(h, devices, images)
}

func (mc ManifestComponent) load(dir string) ([]byte, error) {
	switch {
	case mc.File != "" && mc.DataHex != "":
		return nil, errors.New("file and data_hex are exclusive")
	case mc.File != "":
		path := mc.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return os.ReadFile(path)
	case mc.DataHex != "":
		return hex.DecodeString(strings.TrimSpace(mc.DataHex))
	default:
		return nil, errors.New("missing file or data_hex")
	}
}
