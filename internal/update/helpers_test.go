package update

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/fwupdctl/internal/fdsim"
	"github.com/danmuck/fwupdctl/internal/fwpkg"
	"github.com/danmuck/fwupdctl/internal/pldm"
	"github.com/danmuck/fwupdctl/internal/transport"
)

var (
	vendorDescriptor = pldm.Descriptor{Type: pldm.DescriptorPCIVendorID, Data: []byte{0xde, 0x10}}
	bmcImage         = bytes.Repeat([]byte("bmc-"), 38)[:150]
	cpldImage        = bytes.Repeat([]byte{0xa5, 0x5a}, 20)
)

// stepClock advances by step on every read so deadlines expire after a
// bounded number of polls.
type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newStepClock() *stepClock {
	return &stepClock{t: time.Unix(1_700_000_000, 0), step: time.Second}
}

// testConfig keeps protocol defaults but never sleeps between idle passes.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.PollInterval = 0
	return cfg
}

func testPackage(t *testing.T) *fwpkg.Package {
	t.Helper()
	return testPackageFor(t, 0, 1)
}

// testPackageFor builds the two-component package with only the given
// component indexes applicable to the device record.
func testPackageFor(t *testing.T, applicable ...int) *fwpkg.Package {
	t.Helper()
	p, err := fwpkg.New(
		fwpkg.Header{Version: pldm.NewASCIIVersion("bundle-2.1")},
		[]fwpkg.DeviceRecord{{
			Descriptors:          []pldm.Descriptor{vendorDescriptor},
			ApplicableComponents: fwpkg.Bitmap(8, applicable...),
			ImageSetVersion:      pldm.NewASCIIVersion("set-2.1"),
		}},
		[]fwpkg.Image{
			{
				Component: fwpkg.Component{
					Classification:            pldm.ClassificationFirmware,
					ID:                        1,
					ComparisonStamp:           0x0201,
					RequestedActivationMethod: pldm.ActivationMediumSpecificReset,
					Version:                   pldm.NewASCIIVersion("2.1.0"),
				},
				Data: bmcImage,
			},
			{
				Component: fwpkg.Component{
					Classification: pldm.ClassificationFirmware,
					ID:             2,
					Options:        fwpkg.OptionForceUpdate,
					Version:        pldm.NewASCIIVersion("0.4"),
				},
				Data: cpldImage,
			},
		},
	)
	if err != nil {
		t.Fatalf("build package: %v", err)
	}
	return p
}

func matchingBehavior() fdsim.Behavior {
	return fdsim.Behavior{
		Descriptors: []pldm.Descriptor{
			{Type: pldm.DescriptorPCIDeviceID, Data: []byte{0x01, 0x20}},
			vendorDescriptor,
		},
		Components: []pldm.ComponentParameter{
			{Classification: pldm.ClassificationFirmware, ID: 1},
			{Classification: pldm.ClassificationFirmware, ID: 2},
		},
		ActiveImageSetVersion: "set-2.0",
	}
}

type run struct {
	campaign *Campaign
	result   Result
	err      error
	progress []int
}

func runCampaign(t *testing.T, cfg Config, devices ...*fdsim.Device) run {
	t.Helper()
	transports := make([]transport.Transport, len(devices))
	for i, d := range devices {
		transports[i] = d
	}
	return runCampaignOn(t, cfg, testPackage(t), newStepClock(), transports...)
}

func runCampaignOn(t *testing.T, cfg Config, pkg *fwpkg.Package, clock *stepClock, transports ...transport.Transport) run {
	t.Helper()
	logger := zerolog.Nop()
	var r run
	r.campaign = NewCampaign(len(transports), Options{
		Config:   cfg,
		Progress: func(p int) { r.progress = append(r.progress, p) },
		Logger:   &logger,
		Now:      clock.Now,
	})
	for _, tr := range transports {
		if _, err := r.campaign.CreateSession(tr, pkg); err != nil {
			t.Fatalf("create session %s: %v", tr.DeviceName(), err)
		}
	}
	r.result, r.err = r.campaign.ExecuteAll(context.Background())
	return r
}

// pacedDevice holds back selected FD requests for one empty poll and moves
// the clock forward by the configured gap before delivering them.
type pacedDevice struct {
	*fdsim.Device
	clock *stepClock
	gaps  map[pldm.Command]time.Duration

	held    []byte
	heldTag uint8
	holding bool
}

func pace(d *fdsim.Device, clock *stepClock, gaps map[pldm.Command]time.Duration) *pacedDevice {
	return &pacedDevice{Device: d, clock: clock, gaps: gaps}
}

func (p *pacedDevice) Recv(timeout time.Duration, buf []byte) (int, uint8, error) {
	if p.holding {
		p.holding = false
		return copy(buf, p.held), p.heldTag, nil
	}
	n, tag, err := p.Device.Recv(timeout, buf)
	if err != nil {
		return n, tag, err
	}
	h, herr := pldm.DecodeHeader(buf[:n])
	if herr != nil || !h.Request || p.gaps[h.Command] == 0 {
		return n, tag, nil
	}
	p.held = append(p.held[:0], buf[:n]...)
	p.heldTag = tag
	p.holding = true
	p.clock.t = p.clock.t.Add(p.gaps[h.Command])
	return 0, 0, transport.ErrTimeout
}

func expectKind(t *testing.T, r run, kind ErrorKind) *SessionError {
	t.Helper()
	if r.err == nil {
		t.Fatalf("expected %s failure, campaign succeeded", kind)
	}
	serr, ok := r.err.(*SessionError)
	if !ok {
		t.Fatalf("expected *SessionError, got %T: %v", r.err, r.err)
	}
	if serr.Kind != kind || r.result.Kind != kind {
		t.Fatalf("expected kind %s, got %s (result %s): %v", kind, serr.Kind, r.result.Kind, r.err)
	}
	return serr
}

func hasAnswer(d *fdsim.Device, cmd pldm.Command, code pldm.CompletionCode) bool {
	for _, a := range d.Answers() {
		if a.Command == cmd && a.Code == code {
			return true
		}
	}
	return false
}
