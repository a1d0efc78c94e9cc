// Package scheduler provides the background task plumbing: task definitions,
// the enqueue client used by the API process, and the worker consuming them.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskScrapeJobRun = "scrapejobs.run"

const TaskEmailSend = "emails.send"

type ScrapeJobRunPayload struct {
	JobID string `json:"jobId"`
}

type EmailSendPayload struct {
	EmailID string `json:"emailId"`
}

func NewScrapeJobRunTask(payload ScrapeJobRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScrapeJobRun, data), nil
}

func ParseScrapeJobRunPayload(task *asynq.Task) (ScrapeJobRunPayload, error) {
	var payload ScrapeJobRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScrapeJobRunPayload{}, err
	}
	return payload, nil
}

func NewEmailSendTask(payload EmailSendPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmailSend, data), nil
}

func ParseEmailSendPayload(task *asynq.Task) (EmailSendPayload, error) {
	var payload EmailSendPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmailSendPayload{}, err
	}
	return payload, nil
}
