package update

import (
	"fmt"

	"github.com/danmuck/fwupdctl/internal/pldm"
)

func (s *Session) sendRequestUpdate() {
	s.prepare(pldm.CmdRequestUpdate, pldm.RequestUpdateRequest{
		MaxTransferSize:                s.cfg.MaxTransferSize,
		NumComponents:                  uint16(s.updatePairs),
		MaxOutstandingTransferRequests: 1,
		PackageDataLength:              uint16(len(s.record.PackageData)),
		ImageSetVersion:                s.record.ImageSetVersion,
	}, StateRequestUpdateResponse)
}

func (s *Session) handleRequestUpdate(p []byte) {
	rsp, err := pldm.DecodeRequestUpdateResponse(p)
	if err != nil {
		s.responseFailed(KindRequestUpdateFailed, err)
		return
	}
	if rsp.FDMetaDataLength > 0 || rsp.FDWillSendGetPackageData != 0 {
		s.fail(KindRequestUpdateUnsupported, 0, fmt.Errorf("device metadata %d bytes, will send package data %d",
			rsp.FDMetaDataLength, rsp.FDWillSendGetPackageData))
		return
	}
	if !s.firePhase(eventRequestUpdate) {
		return
	}
	s.state = StatePassComponentTableSend
}

func (s *Session) sendPassComponentTable() {
	c := s.components[s.componentIndex]
	param := s.params[s.paramIndex]
	s.prepare(pldm.CmdPassComponentTable, pldm.PassComponentTableRequest{
		TransferFlag:        pldm.TransferFlag(s.passIndex, s.updatePairs),
		Classification:      c.Classification,
		ID:                  c.ID,
		ClassificationIndex: param.ClassificationIndex,
		ComparisonStamp:     c.ComparisonStamp,
		Version:             c.Version,
	}, StatePassComponentTableResponse)
}

func (s *Session) handlePassComponentTable(p []byte) {
	rsp, err := pldm.DecodePassComponentTableResponse(p)
	if err != nil {
		s.responseFailed(KindPassComponentTableFailed, err)
		return
	}
	if rsp.ComponentResponse != pldm.ComponentCanBeUpdated {
		s.fail(KindPassComponentTableBadResponse, rsp.ComponentResponseCode,
			fmt.Errorf("component %d may not be updated", s.componentIndex))
		return
	}
	s.passIndex++
	s.state = StatePassComponentTableNext
}

func (s *Session) passComponentTableNext() {
	if s.seek(s.componentIndex, s.paramIndex+1) {
		s.state = StatePassComponentTableSend
		return
	}
	if !s.firePhase(eventLearned) {
		return
	}
	s.seek(0, 0)
	s.state = StateUpdateComponentSend
}
