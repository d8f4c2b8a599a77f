package fdsim

import "github.com/danmuck/fwupdctl/internal/pldm"

// Commands returns every UA request received, including dropped ones.
func (d *Device) Commands() []pldm.Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pldm.Command(nil), d.log...)
}

// Count returns how many times the UA sent cmd.
func (d *Device) Count(cmd pldm.Command) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.log {
		if c == cmd {
			n++
		}
	}
	return n
}

// Answers returns the UA's completion codes for FD requests in order.
func (d *Device) Answers() []Answer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Answer(nil), d.answers...)
}

// Image returns the bytes received for the component with the given id once
// its transfer reached the end of the image.
func (d *Device) Image(id uint16) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	img, ok := d.images[id]
	return img, ok
}

func (d *Device) PassTable() []pldm.PassComponentTableRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pldm.PassComponentTableRequest(nil), d.passTable...)
}

func (d *Device) Updates() []pldm.UpdateComponentRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]pldm.UpdateComponentRequest(nil), d.updates...)
}

// RequestUpdate returns the last RequestUpdate the device accepted.
func (d *Device) RequestUpdate() pldm.RequestUpdateRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.request
}

func (d *Device) Activated() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.activated
}

func (d *Device) Cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelled
}
