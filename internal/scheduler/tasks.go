// Package scheduler contains the asynq task definitions, the enqueue client,
// and the worker that executes scoring runs in the background.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskClientIncremental folds one client's new leads into its stored counters.
const TaskClientIncremental = "scoring:client_incremental"

// TaskFleetSync runs the watermark-driven incremental update for every client.
const TaskFleetSync = "scoring:fleet_sync"

type ClientIncrementalPayload struct {
	ClientID string `json:"clientId"`
}

func NewClientIncrementalTask(payload ClientIncrementalPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskClientIncremental, data), nil
}

func ParseClientIncrementalPayload(task *asynq.Task) (ClientIncrementalPayload, error) {
	var payload ClientIncrementalPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ClientIncrementalPayload{}, err
	}
	return payload, nil
}

func NewFleetSyncTask() *asynq.Task {
	return asynq.NewTask(TaskFleetSync, nil)
}
