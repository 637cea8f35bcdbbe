package tasks

// Observer receives a snapshot of a task after every registry mutation.
// The snapshot is a private copy; observers may retain it.
type Observer interface {
	TaskUpdated(task *Task)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(task *Task)

func (f ObserverFunc) TaskUpdated(task *Task) { f(task) }

// Progress is one advancement report from the pipeline. Zero-valued fields
// other than Step leave the corresponding task field untouched.
type Progress struct {
	Step              Step
	Percent           int
	Message           string
	CurrentTime       float64
	SegmentsProcessed int
	SegmentsTotal     int
}
