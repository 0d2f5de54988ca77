package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akolanti/DocsetAgent/internal/agent"
	"github.com/akolanti/DocsetAgent/internal/api"
	"github.com/akolanti/DocsetAgent/internal/config"
	"github.com/akolanti/DocsetAgent/internal/data/store"
	"github.com/akolanti/DocsetAgent/internal/domain/docModel"
	"github.com/akolanti/DocsetAgent/internal/domain/jobModel"
	"github.com/akolanti/DocsetAgent/internal/handlers"
	"github.com/akolanti/DocsetAgent/internal/job"
	"github.com/akolanti/DocsetAgent/internal/middleware"
	"github.com/akolanti/DocsetAgent/internal/rag"
)

const token = "test-token"

// mockRag only answers what the handlers ask before a job is queued.
type mockRag struct {
	built map[string]bool
}

func (m *mockRag) ListDocsets(ctx context.Context) ([]docModel.Docset, error) {
	return []docModel.Docset{
		{ID: "ds-1", Name: "Rental Agreements"},
		{ID: "ds-2", Name: "Invoices"},
	}, nil
}

func (m *mockRag) Build(ctx context.Context, id string, mode docModel.IndexMode) (*rag.DocsetRuntime, error) {
	return nil, nil
}

func (m *mockRag) Runtime(id string) (*rag.DocsetRuntime, bool) {
	if m.built[id] {
		return &rag.DocsetRuntime{}, true
	}
	return nil, false
}

func (m *mockRag) BuildDocset(ctx context.Context, j jobModel.Job) jobModel.Job { return j }

func (m *mockRag) Ask(ctx context.Context, j jobModel.Job, h []agent.Turn) jobModel.Job { return j }

func (m *mockRag) Close() error { return nil }

type fixture struct {
	router   http.Handler
	jobs     chan jobModel.Job
	jobStore *store.InMemoryJobStore
	messages *store.InMemoryMessageStore
}

func setup(t *testing.T, serverCfg config.Server) *fixture {
	t.Helper()
	f := &fixture{
		jobs:     make(chan jobModel.Job, 10),
		jobStore: store.NewInMemoryJobStore(),
		messages: store.NewInMemoryMessageStore(config.ChatHistoryLength),
	}
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:           f.jobs,
		DispatcherChannel:    make(chan bool, 1),
		JobStore:             f.jobStore,
		MessageStore:         f.messages,
		RequestsPerNewWorker: 5,
	})
	handlers.InitJobHandler(service, &mockRag{built: map[string]bool{"ds-1": true}})
	middleware.Init(config.Auth{Token: token}, serverCfg)
	f.router = Routes()
	return f
}

func (f *fixture) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth_NoAuth(t *testing.T) {
	f := setup(t, config.Server{})

	rec := f.do(http.MethodGet, "/health", "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAuth(t *testing.T) {
	f := setup(t, config.Server{})

	rec := f.do(http.MethodGet, "/docsets", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/docsets", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListDocsets(t *testing.T) {
	f := setup(t, config.Server{})

	rec := f.do(http.MethodGet, "/docsets", "", true)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[api.DocsetList](t, rec)
	assert.Equal(t, []api.Docset{
		{Index: 1, ID: "ds-1", Name: "Rental Agreements", Indexed: true},
		{Index: 2, ID: "ds-2", Name: "Invoices", Indexed: false},
	}, list.Docsets)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-Id"))
}

func TestIndexDocset(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		expectedCode int
		expectedMode string
	}{
		{name: "No_Body_Defaults_To_Create", body: "", expectedCode: http.StatusAccepted, expectedMode: "create"},
		{name: "Recreate", body: `{"mode":"recreate"}`, expectedCode: http.StatusAccepted, expectedMode: "recreate"},
		{name: "Unknown_Mode", body: `{"mode":"overwrite"}`, expectedCode: http.StatusBadRequest},
		{name: "Malformed_Body", body: `{"mode":`, expectedCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, config.Server{})

			rec := f.do(http.MethodPost, "/docsets/ds-2/index", tt.body, true)

			require.Equal(t, tt.expectedCode, rec.Code, rec.Body.String())
			if tt.expectedCode != http.StatusAccepted {
				assert.Empty(t, f.jobs)
				return
			}
			resp := decode[api.InitJobResponse](t, rec)
			assert.Equal(t, "status/"+resp.Id, resp.StatusURL)

			queued := <-f.jobs
			assert.Equal(t, jobModel.JobTypeBuildIndex, queued.JobType)
			assert.Equal(t, "ds-2", queued.JobPayload.DocsetID)
			assert.Equal(t, tt.expectedMode, queued.JobPayload.Mode)

			saved, ok := f.jobStore.GetJob(context.Background(), resp.Id)
			require.True(t, ok)
			assert.Equal(t, jobModel.JobStatusQueued, saved.Status)
		})
	}
}

func TestAskDocset(t *testing.T) {
	t.Run("New_Chat", func(t *testing.T) {
		f := setup(t, config.Server{})

		rec := f.do(http.MethodPost, "/docsets/ds-1/ask", `{"message":"Who is the tenant?"}`, true)

		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
		resp := decode[api.InitJobResponse](t, rec)
		require.NotEmpty(t, resp.ChatId)
		assert.True(t, f.messages.ValidateChatId(context.Background(), resp.ChatId))

		queued := <-f.jobs
		assert.Equal(t, jobModel.JobTypeQuery, queued.JobType)
		assert.Equal(t, resp.ChatId, queued.ChatId)
		assert.Equal(t, "Who is the tenant?", queued.JobPayload.Question)
	})

	t.Run("Existing_Chat", func(t *testing.T) {
		f := setup(t, config.Server{})
		require.NoError(t, f.messages.InitNewChat(context.Background(), "chat-1"))

		rec := f.do(http.MethodPost, "/docsets/ds-1/ask", `{"message":"And the rent?","chatID":"chat-1"}`, true)

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "chat-1", decode[api.InitJobResponse](t, rec).ChatId)
	})

	t.Run("Unknown_Chat", func(t *testing.T) {
		f := setup(t, config.Server{})
		rec := f.do(http.MethodPost, "/docsets/ds-1/ask", `{"message":"hi","chatID":"ghost"}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, f.jobs)
	})

	t.Run("Empty_Message", func(t *testing.T) {
		f := setup(t, config.Server{})
		rec := f.do(http.MethodPost, "/docsets/ds-1/ask", `{"message":""}`, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Not_Indexed", func(t *testing.T) {
		f := setup(t, config.Server{})
		rec := f.do(http.MethodPost, "/docsets/ds-2/ask", `{"message":"hi"}`, true)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, f.jobs)
	})
}

func TestGetStatus(t *testing.T) {
	f := setup(t, config.Server{})
	require.NoError(t, f.jobStore.SaveJob(context.Background(), jobModel.Job{
		Id:          "job-1",
		JobType:     jobModel.JobTypeQuery,
		Status:      jobModel.JobStatusComplete,
		CurrentStep: jobModel.Complete,
		JobPayload:  jobModel.JobPayload{DocsetID: "ds-1", Question: "q", Answer: "a"},
	}))

	rec := f.do(http.MethodGet, "/status/job-1", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[api.JobResponse](t, rec)
	require.NotNil(t, resp.Result.RAGExternalResponse)
	assert.Equal(t, "a", resp.Result.RAGExternalResponse.Answer)
	assert.Nil(t, resp.Error)

	rec = f.do(http.MethodGet, "/status/missing", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decode[api.JobResponse](t, rec).Error.Code)
}

func TestRateLimiter(t *testing.T) {
	f := setup(t, config.Server{RateLimitPerSecond: 0.001, BurstRateLimit: 1})

	first := f.do(http.MethodGet, "/docsets", "", true)
	second := f.do(http.MethodGet, "/docsets", "", true)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	//health is not limited
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/health", "", false).Code)
}
