package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthfire/shelter-engine/internal/services/events"
	servicequeue "github.com/hearthfire/shelter-engine/internal/services/queue"
	"github.com/hearthfire/shelter-engine/pkg/project"
	"github.com/hearthfire/shelter-engine/pkg/queue"
	"github.com/hearthfire/shelter-engine/pkg/storage"
)

func setupJobsHandler(t *testing.T) (*JobsHandler, *storage.MockStorage, *servicequeue.JobQueue) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client, err := servicequeue.NewClient(mr.Addr(), handlerLogger())
	require.NoError(t, err, "failed to create queue client")
	t.Cleanup(func() { _ = client.Close() })

	jobQueue := servicequeue.NewJobQueue(client)
	broadcaster := events.NewBroadcaster(client.GetRedisClient(), handlerLogger())
	mock := storage.NewMockStorage()

	return NewJobsHandler(mock, jobQueue, broadcaster, handlerLogger()), mock, jobQueue
}

func enqueueBody(t *testing.T, projectID uuid.UUID, jobType string, chapter int) *bytes.Buffer {
	t.Helper()
	body := fmt.Sprintf(`{"project_id": %q, "type": %q, "chapter": %d}`, projectID, jobType, chapter)
	return bytes.NewBufferString(body)
}

func TestJobsHandler_EnqueueStory(t *testing.T) {
	handler, mock, jobQueue := setupJobsHandler(t)

	p := project.New("Boreal Winter")
	require.NoError(t, mock.SaveProject(context.Background(), p))

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", enqueueBody(t, p.ID, "story", 0))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp EnqueueJobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "queued", resp.Status)

	depth, err := jobQueue.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	job, err := jobQueue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.JobTypeStory, job.Type)
	assert.Equal(t, p.ID, job.ProjectID)

	status, err := mock.LoadJobStatus(context.Background(), resp.JobID)
	require.NoError(t, err)
	require.NotNil(t, status, "job status should be persisted at enqueue time")
	assert.Equal(t, "queued", status.Status)
}

func TestJobsHandler_EnqueueProduction(t *testing.T) {
	handler, mock, jobQueue := setupJobsHandler(t)

	p := project.New("Boreal Winter")
	require.NoError(t, mock.SaveProject(context.Background(), p))

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", enqueueBody(t, p.ID, "production", 2))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	job, err := jobQueue.Dequeue(context.Background())
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, queue.JobTypeProduction, job.Type)
	assert.Equal(t, 2, job.Chapter)
}

func TestJobsHandler_EnqueueValidation(t *testing.T) {
	handler, mock, _ := setupJobsHandler(t)

	p := project.New("Boreal Winter")
	require.NoError(t, mock.SaveProject(context.Background(), p))

	tests := []struct {
		name string
		body string
	}{
		{
			name: "missing project ID",
			body: `{"type": "story"}`,
		},
		{
			name: "unknown job type",
			body: fmt.Sprintf(`{"project_id": %q, "type": "render"}`, p.ID),
		},
		{
			name: "production without chapter",
			body: fmt.Sprintf(`{"project_id": %q, "type": "production"}`, p.ID),
		},
		{
			name: "invalid body",
			body: "not json",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/jobs", bytes.NewBufferString(tc.body))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestJobsHandler_EnqueueUnknownProject(t *testing.T) {
	handler, _, _ := setupJobsHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs", enqueueBody(t, uuid.New(), "story", 0))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
}

func TestJobsHandler_Status(t *testing.T) {
	handler, mock, _ := setupJobsHandler(t)

	jobID := uuid.New().String()
	status := &project.JobStatus{
		JobID:     jobID,
		ProjectID: uuid.New(),
		Type:      "story",
		Status:    "processing",
		Message:   "Generating story",
		StartedAt: time.Now(),
	}
	require.NoError(t, mock.SaveJobStatus(context.Background(), status))

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var loaded project.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, "processing", loaded.Status)
}

func TestJobsHandler_StatusNotFound(t *testing.T) {
	handler, _, _ := setupJobsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.New().String(), nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
