package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ManifestFile is the manifest name the campaign template points at.
const ManifestFile = "bundle.toml"

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "campaign":
		return campaignTemplate, nil
	case "manifest":
		return manifestTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// WriteStarter writes a campaign file and the manifest it references into
// dir.
func WriteStarter(dir string, overwrite bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := WriteTemplate(filepath.Join(dir, ManifestFile), "manifest", overwrite); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "campaign.toml")
	if err := WriteTemplate(path, "campaign", overwrite); err != nil {
		return "", err
	}
	return path, nil
}

const campaignTemplate = `package = "bundle.toml"
status_addr = "127.0.0.1:9480"
cors_origins = ["http://localhost:3000"]
cancel_on_fatal = true

[timing]
response_timeout = "5s"
activate_extra_timeout = "20s"
retries = 2
firmware_data_timeout = "90s"
state_change_timeout = "0s"
poll_interval = "1ms"
max_transfer_size = 4096

[[device]]
name = "bmc0"
active_version = "set-1.0"
chunk_size = 16
descriptors = [{ type = 0, data = "de:10" }, { type = 1, data = "01:20" }]
components = [
  { classification = 10, id = 1, active_version = "1.0.0", active_comparison_stamp = 256 },
  { classification = 10, id = 2, active_version = "0.3" },
]

[[device]]
name = "bmc1"
active_version = "set-1.0"
chunk_size = 24
descriptors = [{ type = 0, data = "de:10" }]
components = [{ classification = 10, id = 1, active_version = "1.0.0" }]

[device.faults]
corrupt_instance = { GetFirmwareParameters = 1 }
`

const manifestTemplate = `identifier = "8f0c6c5e-3b2a-4f5e-9d61-2a6f0e3c1b7d"
format_revision = 1
release = 2026-01-15T00:00:00Z
version = "bundle-1.1"

[[component]]
name = "bmc"
classification = 10
id = 1
comparison_stamp = 257
activation_method = 4
version = "1.1.0"
data_hex = "424d43010000000000000000000000000102030405060708090a0b0c0d0e0f10111213"

[[component]]
name = "cpld"
classification = 10
id = 2
force_update = true
version = "0.4"
data_hex = "a55aa55aa55aa55aa55aa55a"

[[device]]
version = "set-1.1"
components = [0, 1]
descriptors = [{ type = 0, data = "de:10" }]
`
