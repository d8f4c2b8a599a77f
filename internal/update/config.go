package update

import (
	"time"

	"github.com/danmuck/fwupdctl/internal/pldm"
)

// Config defines exchange timing and transfer limits for every session of a
// campaign.
type Config struct {
	// ResponseTimeout is the base wait for a response to a UA request.
	ResponseTimeout time.Duration
	// ActivateExtraTimeout is added to ResponseTimeout for ActivateFirmware.
	ActivateExtraTimeout time.Duration
	// Retries is the number of resends after the first attempt.
	Retries int
	// FirmwareDataTimeout bounds the idle time between FD data pulls.
	FirmwareDataTimeout time.Duration
	// StateChangeTimeout bounds the wait for VerifyComplete and ApplyComplete.
	// Zero cancels the FD-idle deadline after TransferComplete, leaving those
	// waits unbounded.
	StateChangeTimeout time.Duration
	MaxTransferSize    uint32
	RecvBufferSize     int
	// PollInterval is slept when a whole scheduler pass found no messages.
	PollInterval  time.Duration
	CancelOnFatal bool
}

// DefaultConfig returns DSP0267 timing defaults.
func DefaultConfig() Config {
	return Config{
		ResponseTimeout:      5 * time.Second,
		ActivateExtraTimeout: 20 * time.Second,
		Retries:              2,
		FirmwareDataTimeout:  90 * time.Second,
		MaxTransferSize:      4096,
		RecvBufferSize:       1024,
		PollInterval:         time.Millisecond,
	}
}

// WithDefaults fills unset durations and sizes from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = def.ResponseTimeout
	}
	if c.ActivateExtraTimeout < 0 {
		c.ActivateExtraTimeout = 0
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.FirmwareDataTimeout <= 0 {
		c.FirmwareDataTimeout = def.FirmwareDataTimeout
	}
	if c.StateChangeTimeout < 0 {
		c.StateChangeTimeout = 0
	}
	if c.MaxTransferSize == 0 {
		c.MaxTransferSize = def.MaxTransferSize
	}
	if c.MaxTransferSize < pldm.BaselineTransferSize {
		c.MaxTransferSize = pldm.BaselineTransferSize
	}
	if c.RecvBufferSize < pldm.ResponseHeaderLen {
		c.RecvBufferSize = def.RecvBufferSize
	}
	if c.PollInterval < 0 {
		c.PollInterval = 0
	}
	return c
}
