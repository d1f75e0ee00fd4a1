package chat

// State is the phase of a character's send cycle.
type State string

const (
	StateIdle           State = "idle"
	StateSending        State = "sending"
	StateAwaitingRecall State = "awaiting_recall"
	StateDelivering     State = "delivering"
)

// Status is the observable state of one character's conversation. Text is
// only set while details are being recalled.
type Status struct {
	CharID string `json:"char_id"`
	State  State  `json:"state"`
	Text   string `json:"text,omitempty"`
}

// Observer is notified of state transitions and of every message the engine
// appends. Calls are made synchronously from the cycle's goroutine and must
// not block for long.
type Observer interface {
	StatusChanged(Status)
	MessageAppended(Message)
}

// Recorder receives cycle outcomes for metrics.
type Recorder interface {
	ObserveCycle(outcome string, seconds float64)
	ObserveRecall(outcome string)
	ObserveChunk()
}

type nopObserver struct{}

func (nopObserver) StatusChanged(Status)    {}
func (nopObserver) MessageAppended(Message) {}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(string, float64) {}
func (nopRecorder) ObserveRecall(string)         {}
func (nopRecorder) ObserveChunk()                {}
