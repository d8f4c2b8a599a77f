package update

import (
	"context"

	"github.com/looplab/fsm"
)

// FDPhase is the UA's model of the device-side update state.
type FDPhase string

const (
	PhaseIdle            FDPhase = "idle"
	PhaseLearnComponents FDPhase = "learn_components"
	PhaseReadyXfer       FDPhase = "ready_xfer"
	PhaseDownload        FDPhase = "download"
	PhaseVerify          FDPhase = "verify"
	PhaseApply           FDPhase = "apply"
	PhaseActivate        FDPhase = "activate"
)

const (
	eventRequestUpdate    = "request_update"
	eventLearned          = "learned"
	eventUpdateComponent  = "update_component"
	eventTransferComplete = "transfer_complete"
	eventVerifyComplete   = "verify_complete"
	eventApplyComplete    = "apply_complete"
	eventActivate         = "activate"
	eventActivated        = "activated"
	eventCancelComponent  = "cancel_component"
	eventCancel           = "cancel"
)

// phaseTracker wraps an fsm.FSM with the DSP0267 FD state transitions the UA
// drives or observes.
type phaseTracker struct {
	machine *fsm.FSM
}

func newPhaseTracker(onChange func(from, to FDPhase)) *phaseTracker {
	busy := []string{string(PhaseDownload), string(PhaseVerify), string(PhaseApply)}
	nonIdle := []string{
		string(PhaseLearnComponents), string(PhaseReadyXfer), string(PhaseDownload),
		string(PhaseVerify), string(PhaseApply), string(PhaseActivate),
	}
	callbacks := fsm.Callbacks{}
	if onChange != nil {
		callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
			onChange(FDPhase(e.Src), FDPhase(e.Dst))
		}
	}
	return &phaseTracker{machine: fsm.NewFSM(
		string(PhaseIdle),
		fsm.Events{
			{Name: eventRequestUpdate, Src: []string{string(PhaseIdle)}, Dst: string(PhaseLearnComponents)},
			{Name: eventLearned, Src: []string{string(PhaseLearnComponents)}, Dst: string(PhaseReadyXfer)},
			{Name: eventUpdateComponent, Src: []string{string(PhaseReadyXfer)}, Dst: string(PhaseDownload)},
			{Name: eventTransferComplete, Src: []string{string(PhaseDownload)}, Dst: string(PhaseVerify)},
			{Name: eventVerifyComplete, Src: []string{string(PhaseVerify)}, Dst: string(PhaseApply)},
			{Name: eventApplyComplete, Src: []string{string(PhaseApply)}, Dst: string(PhaseReadyXfer)},
			{Name: eventActivate, Src: []string{string(PhaseReadyXfer)}, Dst: string(PhaseActivate)},
			{Name: eventActivated, Src: []string{string(PhaseActivate)}, Dst: string(PhaseIdle)},
			{Name: eventCancelComponent, Src: busy, Dst: string(PhaseReadyXfer)},
			{Name: eventCancel, Src: nonIdle, Dst: string(PhaseIdle)},
		},
		callbacks,
	)}
}

func (p *phaseTracker) Current() FDPhase {
	return FDPhase(p.machine.Current())
}

func (p *phaseTracker) Can(event string) bool {
	return p.machine.Can(event)
}

func (p *phaseTracker) Fire(event string) error {
	return p.machine.Event(context.Background(), event)
}
