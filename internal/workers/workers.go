package workers

import "context"

type Workers struct {
	workers []Worker
}

// New aggregates the given workers so they can be started together.
func New(ws ...Worker) *Workers {
	return &Workers{workers: ws}
}

func (w *Workers) Run(ctx context.Context) {
	for _, worker := range w.workers {
		worker.Run(ctx)
	}
}
