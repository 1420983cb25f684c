package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Phase names the stage a running task is in. Phases are set before their
// work starts, so a stuck external call is attributed to the right stage.
type Phase string

const (
	PhaseParsingDeck     Phase = "parsing-deck"
	PhaseTranscribing    Phase = "transcribing"
	PhaseAligning        Phase = "aligning"
	PhaseAnalyzingSpeech Phase = "analyzing-speech"
	PhaseScoringSlides   Phase = "scoring-slides"
	PhaseComparingScript Phase = "comparing-script"
	PhaseJudging         Phase = "judging"
	PhaseAssembling      Phase = "assembling"
)

// Task is the observable state of one analysis run.
type Task struct {
	ID          string    `json:"task_id"`
	SessionID   string    `json:"session_id"`
	State       State     `json:"state"`
	Phase       Phase     `json:"phase,omitempty"`
	ProgressPct int       `json:"progress_pct"`
	Error       *Error    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskStore keeps task state in memory. Get returns a copy; mutation goes
// through Update so readers never observe a half-written task.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*Task)}
}

// Create registers a new pending task for the session and returns its copy.
func (s *TaskStore) Create(sessionID string) Task {
	task := &Task{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		State:     StatePending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	return *task
}

func (s *TaskStore) Get(taskID string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// Update applies fn to the task under the lock and returns the new copy.
func (s *TaskStore) Update(taskID string, fn func(*Task)) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	fn(task)
	task.UpdatedAt = time.Now()
	return *task, true
}
