package update

import (
	"fmt"

	"github.com/danmuck/fwupdctl/internal/pldm"
)

func (s *Session) handleQueryDeviceIdentifiers(p []byte) {
	rsp, err := pldm.DecodeQueryDeviceIdentifiersResponse(p)
	if err != nil {
		s.responseFailed(KindQueryDeviceIdsFailed, err)
		return
	}
	s.descriptors = rsp.Descriptors
	s.logger.Debug().Int("descriptors", len(rsp.Descriptors)).Msg("device identifiers")
	s.state = StateGetFirmwareParametersSend
}

func (s *Session) handleGetFirmwareParameters(p []byte) {
	rsp, err := pldm.DecodeGetFirmwareParametersResponse(p)
	if err != nil {
		s.responseFailed(KindGetFwParamsFailed, err)
		return
	}
	s.params = rsp.Components
	s.logger.Debug().
		Int("components", len(rsp.Components)).
		Str("active_version", rsp.ActiveImageSetVersion.String()).
		Msg("firmware parameters")
	s.state = StateProcessPackage
}

// processPackage matches the device against the package and counts the
// (component, FD parameter entry) pairs to update.
func (s *Session) processPackage() {
	record, ok := s.pkg.MatchDevice(s.descriptors)
	if !ok {
		s.fail(KindNoDeviceMatch, 0, fmt.Errorf("no package record matches %d device descriptors", len(s.descriptors)))
		return
	}
	s.record = record
	s.components = s.pkg.ComponentTable()

	pairs := 0
	for i, c := range s.components {
		if !record.Applicable(i) {
			continue
		}
		for _, p := range s.params {
			if p.Matches(c.Classification, c.ID) {
				pairs++
			}
		}
	}
	if pairs == 0 || pairs > 0xffff {
		s.fail(KindNoUpdateComponents, 0, fmt.Errorf("%d applicable components match device parameters", pairs))
		return
	}
	s.updatePairs = pairs
	s.passIndex = 0
	s.seek(0, 0)
	s.logger.Info().
		Int("components", pairs).
		Str("image_set", record.ImageSetVersion.String()).
		Msg("package matched")
	s.state = StateRequestUpdateSend
}

// seek moves the cursor to the first applicable component at or after
// (component, param) that has a matching FD parameter entry.
func (s *Session) seek(component, param int) bool {
	for ; component < len(s.components); component, param = component+1, 0 {
		if !s.record.Applicable(component) {
			continue
		}
		c := s.components[component]
		for ; param < len(s.params); param++ {
			if s.params[param].Matches(c.Classification, c.ID) {
				s.componentIndex = component
				s.paramIndex = param
				return true
			}
		}
	}
	return false
}
