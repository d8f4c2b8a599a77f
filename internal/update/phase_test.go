package update

import (
	"testing"

	"github.com/danmuck/fwupdctl/internal/testutil/testlog"
)

func TestPhaseTrackerFollowsUpdateFlow(t *testing.T) {
	testlog.Start(t)

	var transitions []FDPhase
	p := newPhaseTracker(func(_, to FDPhase) {
		transitions = append(transitions, to)
	})
	steps := []string{
		eventRequestUpdate, eventLearned,
		eventUpdateComponent, eventTransferComplete, eventVerifyComplete, eventApplyComplete,
		eventActivate, eventActivated,
	}
	for _, ev := range steps {
		if err := p.Fire(ev); err != nil {
			t.Fatalf("fire %s from %s: %v", ev, p.Current(), err)
		}
	}
	want := []FDPhase{
		PhaseLearnComponents, PhaseReadyXfer,
		PhaseDownload, PhaseVerify, PhaseApply, PhaseReadyXfer,
		PhaseActivate, PhaseIdle,
	}
	if len(transitions) != len(want) {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("transition %d: got %s want %s", i, transitions[i], want[i])
		}
	}
}

func TestPhaseTrackerRejectsOutOfOrderEvents(t *testing.T) {
	testlog.Start(t)

	p := newPhaseTracker(nil)
	if p.Can(eventTransferComplete) {
		t.Fatalf("transfer complete must not be allowed from idle")
	}
	if err := p.Fire(eventVerifyComplete); err == nil {
		t.Fatalf("expected error firing verify_complete from idle")
	}
	if p.Current() != PhaseIdle {
		t.Fatalf("rejected event must not change phase, got %s", p.Current())
	}
	if p.Can(eventCancel) {
		t.Fatalf("cancel is not a transition from idle")
	}
}

func TestPhaseTrackerCancelPaths(t *testing.T) {
	testlog.Start(t)

	p := newPhaseTracker(nil)
	for _, ev := range []string{eventRequestUpdate, eventLearned, eventUpdateComponent, eventTransferComplete} {
		if err := p.Fire(ev); err != nil {
			t.Fatalf("fire %s: %v", ev, err)
		}
	}
	if err := p.Fire(eventCancelComponent); err != nil {
		t.Fatalf("cancel component from verify: %v", err)
	}
	if p.Current() != PhaseReadyXfer {
		t.Fatalf("expected ready_xfer after component cancel, got %s", p.Current())
	}
	if err := p.Fire(eventCancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if p.Current() != PhaseIdle {
		t.Fatalf("expected idle after cancel, got %s", p.Current())
	}
}
