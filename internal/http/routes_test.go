package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsmilne3/ai-video-analyzer/internal/auth"
	"github.com/dsmilne3/ai-video-analyzer/internal/db"
	"github.com/dsmilne3/ai-video-analyzer/internal/migrations"
	"github.com/dsmilne3/ai-video-analyzer/internal/rubric"
	"github.com/dsmilne3/ai-video-analyzer/internal/schemas"
	"github.com/dsmilne3/ai-video-analyzer/internal/storage"
	"github.com/dsmilne3/ai-video-analyzer/internal/worker"
)

const apiToken = "test-token"

type fakeQueue struct{ ids []string }

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	var p worker.EvaluatePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return nil, err
	}
	q.ids = append(q.ids, p.EvaluationID)
	return &asynq.TaskInfo{ID: p.EvaluationID, Type: task.Type()}, nil
}

type fixture struct {
	srv   *Server
	h     http.Handler
	queue *fakeQueue
	blobs *storage.FSStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrations.Run(conn))

	blobs, err := storage.NewFSStore(t.TempDir())
	require.NoError(t, err)
	q := &fakeQueue{}
	s := &Server{
		DB:      conn,
		Repo:    db.NewEvaluations(conn),
		Blobs:   blobs,
		Rubrics: rubric.NewStore(blobs, "rubrics/", nil, zerolog.Nop()),
		Queue:   q,
		Auth:    auth.NewAuthenticator(apiToken, "jwt-secret"),
		Log:     zerolog.Nop(),
	}
	return &fixture{srv: s, h: s.Handler(Options{MaxUploadMB: 1}), queue: q, blobs: blobs}
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.h.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) create(t *testing.T, body any) schemas.CreateEvaluationResponse {
	t.Helper()
	b, _ := json.Marshal(body)
	rec := f.do(t, http.MethodPost, "/evaluations", apiToken, bytes.NewReader(b), "application/json")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var out schemas.CreateEvaluationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var submitter = map[string]string{"first_name": "Ada", "last_name": "Lovelace", "partner_name": "Acme"}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/evaluations", "", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/evaluations", "wrong", nil, "").Code)

	jwt, err := f.srv.Auth.Issue("ops", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/evaluations", jwt, nil, "").Code)
}

func TestCreateWithTranscriptEnqueues(t *testing.T) {
	f := newFixture(t)
	out := f.create(t, map[string]any{"transcript": "Here is the demo.", "submitter": submitter})

	assert.Equal(t, string(db.StatusQueued), out.Status)
	assert.Empty(t, out.UploadToken)
	assert.Equal(t, []string{out.EvaluationID}, f.queue.ids)

	rec := f.do(t, http.MethodGet, "/evaluations/"+out.EvaluationID, apiToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got schemas.EvaluationOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, rubric.DefaultName, got.Rubric)
	assert.Equal(t, "Ada", got.Submitter.FirstName)
	assert.Empty(t, got.Report)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	b, _ := json.Marshal(map[string]any{"transcript": "x", "submitter": map[string]string{"first_name": "Ada"}})
	rec := f.do(t, http.MethodPost, "/evaluations", apiToken, bytes.NewReader(b), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/evaluations", apiToken, strings.NewReader("{"), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.queue.ids)
}

func TestCreateRejectsInvalidRubric(t *testing.T) {
	f := newFixture(t)
	bad := `{"criteria":[{"id":"a","label":"A","desc":"d","weight":0.5}],"scale":{"min":0,"max":10},"overall_method":"weighted_mean","thresholds":{"pass":7,"revise":5}}`
	_, err := f.blobs.Put(context.Background(), "rubrics/bad.json", strings.NewReader(bad), "application/json")
	require.NoError(t, err)

	b, _ := json.Marshal(map[string]any{"rubric": "bad", "transcript": "x", "submitter": submitter})
	rec := f.do(t, http.MethodPost, "/evaluations", apiToken, bytes.NewReader(b), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "weights must sum")
}

func TestAudioUploadFlow(t *testing.T) {
	f := newFixture(t)
	out := f.create(t, map[string]any{"submitter": submitter})
	require.Equal(t, string(db.StatusAwaitingUpload), out.Status)
	require.NotEmpty(t, out.UploadToken)
	assert.Empty(t, f.queue.ids)

	upload := func(token string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", "demo.mp3")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("ID3 fake audio"))
		require.NoError(t, mw.Close())
		return f.do(t, http.MethodPost, "/evaluations/"+out.EvaluationID+"/audio", token, &buf, mw.FormDataContentType())
	}

	assert.Equal(t, http.StatusNotFound, upload("not-the-token").Code)
	assert.Equal(t, http.StatusUnauthorized, upload("").Code)

	rec := upload(out.UploadToken)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []string{out.EvaluationID}, f.queue.ids)

	row, err := f.srv.Repo.Get(context.Background(), out.EvaluationID)
	require.NoError(t, err)
	assert.Equal(t, db.StatusQueued, row.Status)
	assert.True(t, strings.HasPrefix(row.AudioRef, "uploads/"))
	assert.True(t, strings.HasSuffix(row.AudioRef, ".mp3"))

	// token is single use
	assert.Equal(t, http.StatusNotFound, upload(out.UploadToken).Code)
}

func TestGetIncludesReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	out := f.create(t, map[string]any{"transcript": "demo", "submitter": submitter})
	ref, err := storage.PutJSON(ctx, f.blobs, "results/r.json", map[string]any{"rubric": "Default"})
	require.NoError(t, err)
	require.NoError(t, f.srv.Repo.Complete(ctx, out.EvaluationID, ref, "pass", 91.5))

	rec := f.do(t, http.MethodGet, "/evaluations/"+out.EvaluationID, apiToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got schemas.EvaluationOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "pass", got.PassStatus)
	require.NotNil(t, got.Percentage)
	assert.InDelta(t, 91.5, *got.Percentage, 1e-9)
	assert.JSONEq(t, `{"rubric":"Default"}`, string(got.Report))

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/evaluations/nope", apiToken, nil, "").Code)
}

func TestListEvaluations(t *testing.T) {
	f := newFixture(t)
	f.create(t, map[string]any{"transcript": "one", "submitter": submitter})
	f.create(t, map[string]any{"submitter": submitter})

	rec := f.do(t, http.MethodGet, "/evaluations", apiToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []schemas.EvaluationOut
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestRubricEndpoints(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/rubrics", apiToken, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []rubric.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.NotEmpty(t, list)
	assert.Equal(t, rubric.SampleName, list[0].Filename)

	good, err := json.Marshal(rubric.Default())
	require.NoError(t, err)
	rec = f.do(t, http.MethodPost, "/rubrics/validate", apiToken, bytes.NewReader(good), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var v schemas.ValidateRubricResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	assert.True(t, v.Valid)
	assert.Equal(t, rubric.Default().CriterionCount(), v.Criteria)

	rec = f.do(t, http.MethodPost, "/rubrics/validate", apiToken, strings.NewReader(`{"name":"x"}`), "application/json")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"valid":false`)
}
