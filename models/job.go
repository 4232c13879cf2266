package models

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Job records one pipeline run requested through the HTTP or CLI surface.
type Job struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Status        Status    `json:"status"`
	Transcription string    `json:"transcription,omitempty"`
	ModelName     string    `json:"model_name,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewJob(url, modelName string) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    StatusProcessing,
		ModelName: modelName,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (j *Job) Complete(text string) {
	j.Status = StatusCompleted
	j.Transcription = text
	j.Error = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) Fail(err error) {
	j.Status = StatusFailed
	if err != nil {
		j.Error = err.Error()
	}
	j.UpdatedAt = time.Now().UTC()
}

func (j *Job) IsProcessing() bool { return j.Status == StatusProcessing }
func (j *Job) IsCompleted() bool  { return j.Status == StatusCompleted }
func (j *Job) IsFailed() bool     { return j.Status == StatusFailed }
