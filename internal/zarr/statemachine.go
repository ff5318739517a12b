// Конечный автомат статусов ZarrJob: queued → running → ready/failed.
// Переходы однонаправлены, обратных не существует. Потокобезопасен
// через sync.RWMutex.
package zarr

import (
	"fmt"
	"sync"

	"github.com/freva-org/freva-nextgen/internal/domain/model"
)

// validTransitions — матрица допустимых переходов статусов задания.
var validTransitions = map[model.JobStatus]map[model.JobStatus]bool{
	model.JobQueued:  {model.JobRunning: true, model.JobFailed: true},
	model.JobRunning: {model.JobReady: true, model.JobFailed: true},
	model.JobReady:   {}, // конечное состояние
	model.JobFailed:  {}, // конечное состояние
}

// TransitionError — ошибка недопустимого перехода статуса задания.
type TransitionError struct {
	From, To model.JobStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("переход %s → %s недопустим", e.From, e.To)
}

// StateMachine — потокобезопасный конечный автомат статуса одного ZarrJob
// в памяти процесса. Broker его не использует: источник истины — Redis,
// и broker.go проверяет переходы функцией CanTransitionTo внутри
// WATCH/MULTI.
type StateMachine struct {
	mu      sync.RWMutex
	current model.JobStatus
}

// NewStateMachine создаёт автомат в состоянии queued.
func NewStateMachine() *StateMachine {
	return &StateMachine{current: model.JobQueued}
}

// CurrentStatus возвращает текущий статус.
func (sm *StateMachine) CurrentStatus() model.JobStatus {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.current
}

// CanTransitionTo проверяет допустимость перехода без его выполнения.
func CanTransitionTo(from, to model.JobStatus) bool {
	transitions, ok := validTransitions[from]
	if !ok {
		return false
	}
	return transitions[to]
}

// TransitionTo выполняет локальный переход, возвращая ошибку при
// недопустимом переходе.
func (sm *StateMachine) TransitionTo(target model.JobStatus) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !CanTransitionTo(sm.current, target) {
		return &TransitionError{From: sm.current, To: target}
	}
	sm.current = target
	return nil
}

// ForceStatus устанавливает статус напрямую, без проверки перехода.
func (sm *StateMachine) ForceStatus(s model.JobStatus) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.current = s
}
