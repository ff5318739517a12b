package zarr

import (
	"errors"
	"testing"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

func TestNewStateMachine(t *testing.T) {
	sm := NewStateMachine()
	if sm.CurrentStatus() != model.JobQueued {
		t.Errorf("CurrentStatus(): ожидалось queued, получено %s", sm.CurrentStatus())
	}
}

func TestTransitions_Allowed(t *testing.T) {
	tests := []struct {
		from, to model.JobStatus
		want     bool
	}{
		{model.JobQueued, model.JobRunning, true},
		{model.JobQueued, model.JobFailed, true},
		{model.JobQueued, model.JobReady, false},
		{model.JobRunning, model.JobReady, true},
		{model.JobRunning, model.JobFailed, true},
		{model.JobRunning, model.JobQueued, false},
		{model.JobReady, model.JobRunning, false},
		{model.JobFailed, model.JobRunning, false},
	}

	for _, tt := range tests {
		got := CanTransitionTo(tt.from, tt.to)
		if got != tt.want {
			t.Errorf("CanTransitionTo(%s, %s): ожидалось %v, получено %v", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestStateMachine_TransitionTo(t *testing.T) {
	sm := NewStateMachine()

	if err := sm.TransitionTo(model.JobRunning); err != nil {
		t.Fatalf("queued → running: неожиданная ошибка: %v", err)
	}
	if sm.CurrentStatus() != model.JobRunning {
		t.Errorf("CurrentStatus(): ожидалось running, получено %s", sm.CurrentStatus())
	}

	if err := sm.TransitionTo(model.JobReady); err != nil {
		t.Fatalf("running → ready: неожиданная ошибка: %v", err)
	}

	err := sm.TransitionTo(model.JobRunning)
	if err == nil {
		t.Fatal("ready → running должен вернуть ошибку")
	}
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("ожидалась *TransitionError, получено %T", err)
	}
}

func TestStateMachine_TerminalStatesAreFinal(t *testing.T) {
	for _, terminal := range []model.JobStatus{model.JobReady, model.JobFailed} {
		sm := NewStateMachine()
		sm.ForceStatus(terminal)
		for _, target := range []model.JobStatus{model.JobQueued, model.JobRunning, model.JobReady, model.JobFailed} {
			if target == terminal {
				continue
			}
			if CanTransitionTo(terminal, target) {
				t.Errorf("%s → %s не должен быть допустим", terminal, target)
			}
		}
	}
}
