package workflow

import (
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// NewWorker builds a Temporal worker with the workflow and all activities
// registered. An empty task queue falls back to TaskQueue.
func NewWorker(c client.Client, taskQueue string, acts *Activities) worker.Worker {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	w := worker.New(c, taskQueue, worker.Options{})
	w.RegisterWorkflow(CVIWorkflow)
	w.RegisterActivity(acts)
	return w
}
