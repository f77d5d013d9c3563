package audit

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"serviceflow_gateway/internal/upstream"
)

const TaskServiceTime = "audit.service_time"

// ServiceTimePayload carries one append-only service-time entry plus the
// track that selects the upstream audit endpoint.
type ServiceTimePayload struct {
	Entry upstream.ServiceTimeEntry `json:"entry"`
	Track upstream.Track            `json:"track"`
}

func NewServiceTimeTask(payload ServiceTimePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskServiceTime, data, asynq.MaxRetry(10)), nil
}

func ParseServiceTimePayload(task *asynq.Task) (ServiceTimePayload, error) {
	var payload ServiceTimePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ServiceTimePayload{}, err
	}
	return payload, nil
}
