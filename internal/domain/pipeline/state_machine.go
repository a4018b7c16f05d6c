// Пакет pipeline - конечный автомат жизненного цикла одного запроса экспорта.
//
// Прямой путь: requested → authorized → loaded → generated → stored → completed.
// Из любого нетерминального состояния допустим переход в failed.
// completed и failed - терминальные состояния.
//
// Автомат живёт в пределах одного запроса и нигде не сохраняется,
// поэтому не защищён мьютексом.
package pipeline

import (
	"fmt"
	"time"
)

// State - состояние запроса экспорта.
type State string

const (
	StateRequested  State = "requested"
	StateAuthorized State = "authorized"
	StateLoaded     State = "loaded"
	StateGenerated  State = "generated"
	StateStored     State = "stored"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// validTransitions - матрица допустимых переходов.
var validTransitions = map[State]map[State]bool{
	StateRequested:  {StateAuthorized: true, StateFailed: true},
	StateAuthorized: {StateLoaded: true, StateFailed: true},
	StateLoaded:     {StateGenerated: true, StateFailed: true},
	StateGenerated:  {StateStored: true, StateFailed: true},
	StateStored:     {StateCompleted: true, StateFailed: true},
	StateCompleted:  {},
	StateFailed:     {},
}

// TransitionRecord - запись о переходе.
type TransitionRecord struct {
	From      State     `json:"from"`
	To        State     `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Request - автомат одного запроса экспорта.
type Request struct {
	current   State
	startedAt time.Time
	history   []TransitionRecord
	// failedIn - состояние, в котором произошла ошибка
	failedIn State
	now      func() time.Time
}

// NewRequest создаёт автомат в состоянии requested.
func NewRequest() *Request {
	return newRequest(time.Now)
}

func newRequest(now func() time.Time) *Request {
	return &Request{
		current:   StateRequested,
		startedAt: now(),
		history:   make([]TransitionRecord, 0, 6),
		now:       now,
	}
}

// Current возвращает текущее состояние.
func (r *Request) Current() State {
	return r.current
}

// IsTerminal проверяет, завершён ли запрос.
func (r *Request) IsTerminal() bool {
	return r.current == StateCompleted || r.current == StateFailed
}

// Advance переводит автомат в следующее состояние прямого пути.
func (r *Request) Advance(target State) error {
	if target == StateFailed {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: "переход в failed выполняется через Fail",
		}
	}
	return r.transition(target)
}

// Fail переводит автомат в failed и запоминает, на каком шаге произошёл сбой.
// Повторный вызов из терминального состояния возвращает ошибку.
func (r *Request) Fail() error {
	from := r.current
	if err := r.transition(StateFailed); err != nil {
		return err
	}
	r.failedIn = from
	return nil
}

// FailedIn возвращает состояние, из которого запрос перешёл в failed.
// Пустая строка, если запрос не завершился ошибкой.
func (r *Request) FailedIn() State {
	return r.failedIn
}

// Duration возвращает время с момента создания запроса.
func (r *Request) Duration() time.Duration {
	return r.now().Sub(r.startedAt)
}

// History возвращает копию истории переходов.
func (r *Request) History() []TransitionRecord {
	result := make([]TransitionRecord, len(r.history))
	copy(result, r.history)
	return result
}

func (r *Request) transition(target State) error {
	transitions, ok := validTransitions[r.current]
	if !ok || !transitions[target] {
		return &TransitionError{
			Code:    "INVALID_TRANSITION",
			Message: fmt.Sprintf("переход %s → %s недопустим", r.current, target),
		}
	}

	r.history = append(r.history, TransitionRecord{
		From:      r.current,
		To:        target,
		Timestamp: r.now().UTC(),
	})
	r.current = target
	return nil
}

// TransitionError - ошибка перехода между состояниями.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
