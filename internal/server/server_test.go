package server_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kimalale/tactical-workflow-manager/internal/assert/helpers"
	"github.com/kimalale/tactical-workflow-manager/internal/server"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type testServerEnv struct {
	Server *server.Server
	Router *gin.Engine
	*helpers.TestEngineEnv
}

func TestHealthEndpoint(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var res api.HealthResponse
	decode(t, w, &res)
	assert.Equal(t, "healthy", res.Status)
	assert.NotEmpty(t, res.Version)
}

func TestCORSPreflight(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodOptions, "/engine/run", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWorkflowInstallAndRunWait(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/engine/workflow", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/engine/run", api.RunRequest{})
	assert.Equal(t, http.StatusConflict, w.Code)

	env.install(t, linearDoc())

	w = env.do(t, http.MethodGet, "/engine/workflow", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/engine/run", api.RunRequest{
		Payload: map[string]any{"n": 4},
		Wait:    true,
	})
	require.Equal(t, http.StatusOK, w.Code)

	var st api.RunState
	decode(t, w, &st)
	assert.Equal(t, api.RunSuccess, st.Status)
	assert.Equal(t, float64(8), st.Executed["double"])

	w = env.do(t, http.MethodGet, "/engine/run/"+string(st.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/engine/run/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/engine/run", nil)
	var runs api.RunsListResponse
	decode(t, w, &runs)
	assert.Equal(t, 1, runs.Count)

	w = env.do(t, http.MethodGet, "/engine/board", nil)
	var board api.BoardResponse
	decode(t, w, &board)
	assert.Equal(t, api.NodeComplete, board.Nodes["double"].Status)

	w = env.do(t, http.MethodGet, "/engine/history", nil)
	var hist api.HistoryResponse
	decode(t, w, &hist)
	assert.Equal(t, 1, hist.Count)
	assert.Equal(t, st.ID, hist.Executions[0].RunID)
}

func TestInstallInvalidWorkflow(t *testing.T) {
	env := testServer(t)

	w := env.doRaw(t, http.MethodPut, "/engine/workflow", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/engine/workflow", api.Document{
		Nodes: []*api.Node{{ID: "a"}, {ID: "a"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartRunAsyncAndCancel(t *testing.T) {
	env := testServer(t)
	env.install(t, linearDoc())

	w := env.do(t, http.MethodPost, "/engine/run", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var res api.RunStartedResponse
	decode(t, w, &res)
	assert.NotEmpty(t, res.RunID)

	w = env.do(t, http.MethodPost,
		"/engine/run/"+string(res.RunID)+"/cancel", nil)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = env.do(t, http.MethodPost, "/engine/run/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebhookEndpoints(t *testing.T) {
	env := testServer(t)
	env.install(t, linearDoc())

	w := env.do(t, http.MethodPost, "/engine/webhook",
		api.CreateWebhookRequest{Name: "orders"})
	require.Equal(t, http.StatusCreated, w.Code)
	var wh api.Webhook
	decode(t, w, &wh)

	w = env.do(t, http.MethodPost, "/webhook/"+string(wh.ID),
		map[string]any{"n": 1})
	require.Equal(t, http.StatusAccepted, w.Code)
	var trig api.WebhookTriggeredResponse
	decode(t, w, &trig)
	assert.Equal(t, "Triggered: orders", trig.Message)

	st, err := env.Engine.Wait(t.Context(), trig.RunID)
	require.NoError(t, err)
	assert.Equal(t, api.TriggerWebhook, st.Trigger)
	assert.EqualValues(t, 2, st.Executed["double"])

	w = env.do(t, http.MethodGet, "/engine/webhook/events", nil)
	var evs []*api.WebhookEvent
	decode(t, w, &evs)
	assert.Len(t, evs, 1)

	w = env.do(t, http.MethodPost,
		"/engine/webhook/"+string(wh.ID)+"/toggle", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/webhook/"+string(wh.ID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.doRaw(t, http.MethodPost, "/webhook/"+string(wh.ID),
		[]byte("not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodDelete, "/engine/webhook/"+string(wh.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodPost, "/webhook/"+string(wh.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/engine/webhook", nil)
	var hooks []*api.Webhook
	decode(t, w, &hooks)
	assert.Empty(t, hooks)
}

func TestScheduleEndpoints(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/engine/schedule",
		api.CreateScheduleRequest{IntervalSeconds: 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/engine/schedule",
		api.CreateScheduleRequest{IntervalSeconds: 3600})
	require.Equal(t, http.StatusCreated, w.Code)
	var sc api.Schedule
	decode(t, w, &sc)
	assert.Equal(t, 3600, sc.IntervalSeconds)

	w = env.do(t, http.MethodPost, "/engine/schedule/start", nil)
	var res api.SchedulesResponse
	decode(t, w, &res)
	assert.True(t, res.Running)
	assert.Len(t, res.Schedules, 1)

	w = env.do(t, http.MethodPost, "/engine/schedule/stop", nil)
	decode(t, w, &res)
	assert.False(t, res.Running)

	w = env.do(t, http.MethodDelete, "/engine/schedule/"+string(sc.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/engine/schedule/"+string(sc.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/engine/schedule", nil)
	decode(t, w, &res)
	assert.Empty(t, res.Schedules)
}

func TestVariableEndpoints(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPut, "/engine/vars/count", map[string]any{
		"value": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/engine/vars/count", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v api.VariableResponse
	decode(t, w, &v)
	assert.Equal(t, float64(3), v.Value)

	w = env.do(t, http.MethodGet, "/engine/vars", nil)
	var all map[string]any
	decode(t, w, &all)
	assert.Equal(t, map[string]any{"count": float64(3)}, all)

	w = env.do(t, http.MethodDelete, "/engine/vars/count", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/engine/vars/count", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodPut, "/engine/vars/a", map[string]any{"value": 1})
	w = env.do(t, http.MethodDelete, "/engine/vars", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/engine/logs", nil)
	var logs api.LogsResponse
	decode(t, w, &logs)
	var msgs []string
	for _, l := range logs.Logs {
		if l.NodeID == api.TagStorage {
			msgs = append(msgs, l.Message)
		}
	}
	assert.Equal(t, []string{
		"Variable set: count = 3",
		"Variable deleted: count",
		"Variable set: a = 1",
		"All variables cleared",
	}, msgs)
}

func TestDatabaseEndpoints(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodPost, "/engine/database",
		api.DatabaseConnection{Name: "main", Type: "oracle"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	conn := api.DatabaseConnection{
		Name:     "main",
		Type:     api.DatabasePostgres,
		Host:     "db",
		Password: "secret",
	}
	w = env.do(t, http.MethodPost, "/engine/database", conn)
	require.Equal(t, http.StatusCreated, w.Code)
	var created api.DatabaseConnection
	decode(t, w, &created)
	assert.Empty(t, created.Password)
	assert.Equal(t, api.ConnectionTesting, created.Status)

	w = env.do(t, http.MethodPost, "/engine/database", conn)
	assert.Equal(t, http.StatusConflict, w.Code)

	env.Registry.Wait()
	w = env.do(t, http.MethodGet, "/engine/database", nil)
	var list []*api.DatabaseConnection
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, api.ConnectionConnected, list[0].Status)
	assert.Empty(t, list[0].Password)

	w = env.do(t, http.MethodPost, "/engine/database/main/test", nil)
	var res api.DatabaseTestResponse
	decode(t, w, &res)
	assert.True(t, res.Success)
	assert.Equal(t, api.DatabasePostgres, res.Type)

	w = env.do(t, http.MethodPost, "/engine/database/missing/test", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/engine/database/main", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, "/engine/database/main", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClearLogs(t *testing.T) {
	env := testServer(t)
	env.install(t, linearDoc())
	env.do(t, http.MethodPost, "/engine/run", api.RunRequest{Wait: true})

	w := env.do(t, http.MethodDelete, "/engine/logs", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/engine/logs", nil)
	var logs api.LogsResponse
	decode(t, w, &logs)
	require.Equal(t, 1, logs.Count)
	assert.Equal(t, "Console cleared", logs.Logs[0].Message)
}

func linearDoc() *api.Document {
	return helpers.Document(
		[]*api.Node{
			helpers.LuaNode("start", api.KindBasic,
				`return (input and input.n) or 0`),
			helpers.LuaNode("double", api.KindBasic, `return input * 2`),
		},
		helpers.Edge("start", "double"),
	)
}

func (e *testServerEnv) install(t *testing.T, doc *api.Document) {
	t.Helper()
	w := e.do(t, http.MethodPut, "/engine/workflow", doc)
	require.Equal(t, http.StatusOK, w.Code)
}

func (e *testServerEnv) do(
	t *testing.T, method, path string, body any,
) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	return e.doRaw(t, method, path, raw)
}

func (e *testServerEnv) doRaw(
	t *testing.T, method, path string, body []byte,
) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

func testServer(t *testing.T) *testServerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := helpers.NewTestEngine(t)
	srv := server.NewServer(server.Services{
		Engine:    env.Engine,
		Hub:       env.Hub,
		Webhooks:  env.Webhooks,
		Schedules: env.Schedules,
		Vars:      env.Vars,
		Registry:  env.Registry,
	})
	t.Cleanup(srv.CloseWebSockets)

	return &testServerEnv{
		Server:        srv,
		Router:        srv.SetupRoutes(),
		TestEngineEnv: env,
	}
}
