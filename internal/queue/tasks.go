package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/pixellab/internal/domain"
	"github.com/hibiken/asynq"
)

const TypeRecordUsage = "usage:record"

func NewRecordUsageTask(usage domain.UsageLog) (*asynq.Task, error) {
	if strings.TrimSpace(usage.RequestID) == "" {
		return nil, errors.New("usage request_id is required")
	}
	body, err := json.Marshal(usage)
	if err != nil {
		return nil, fmt.Errorf("marshal usage payload: %w", err)
	}
	return asynq.NewTask(TypeRecordUsage, body), nil
}

func ParseRecordUsagePayload(task *asynq.Task) (domain.UsageLog, error) {
	var usage domain.UsageLog
	if err := json.Unmarshal(task.Payload(), &usage); err != nil {
		return domain.UsageLog{}, fmt.Errorf("unmarshal usage payload: %w", err)
	}
	if strings.TrimSpace(usage.RequestID) == "" {
		return domain.UsageLog{}, errors.New("usage payload has no request_id")
	}
	return usage, nil
}
