package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easeaico/npc-town/internal/affinity"
	"github.com/easeaico/npc-town/internal/character"
	"github.com/easeaico/npc-town/internal/dialogue"
	"github.com/easeaico/npc-town/internal/memory"
	"github.com/easeaico/npc-town/internal/repository"
	"github.com/easeaico/npc-town/internal/scheduler"
	"github.com/easeaico/npc-town/internal/types"
)

type testServer struct {
	router    *gin.Engine
	scores    *affinity.Store
	memory    memory.Bridge
	scheduler *scheduler.Scheduler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := character.NewRegistry()
	require.NoError(t, err)
	repo, err := repository.NewSQLiteMemoryRepo(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	ts := &testServer{
		scores:    affinity.NewStore(),
		memory:    memory.NewService(repo, nil, memory.DefaultPolicy()),
		scheduler: scheduler.New(scheduler.NewGenerator(nil, registry, time.Second), scheduler.Options{Interval: time.Hour}),
	}
	orch := dialogue.New(dialogue.Deps{
		Characters: registry,
		Affinity:   ts.scores,
		Memory:     ts.memory,
	})
	ts.router = NewRouter(NewHandler(Deps{
		Characters: registry,
		Dialogue:   orch,
		Scheduler:  ts.scheduler,
		Affinity:   ts.scores,
		Memory:     ts.memory,
	}), false)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w, out
}

func TestHealthAndRoot(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["offline"])

	w, body = ts.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "running", body["status"])
	assert.Contains(t, body, "endpoints")
}

func TestChatOffline(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodPost, "/chat", gin.H{"npc_name": "张三", "message": "你好"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "张三", body["npc_name"])
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "模拟模式")
}

func TestChatErrors(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodPost, "/chat", gin.H{"npc_name": "路人甲", "message": "你好"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", body["code"])
	assert.Contains(t, body["error"], "路人甲")

	w, body = ts.do(t, http.MethodPost, "/chat", gin.H{"npc_name": "张三"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])

	w, _ = ts.do(t, http.MethodPost, "/chat", gin.H{"npc_name": "张三", "message": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListAndGetNPC(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/npcs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 6, body["total"])
	first := body["npcs"].([]any)[0].(map[string]any)
	assert.Equal(t, "张三", first["name"])
	assert.Equal(t, true, first["available"])

	w, body = ts.do(t, http.MethodGet, "/npcs/李四", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "李四", body["npc_info"].(map[string]any)["name"])

	w, _ = ts.do(t, http.MethodGet, "/npcs/路人甲", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusAndRefresh(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/npcs/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["last_update"])

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		w, body = ts.do(t, method, "/npcs/status/refresh", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "NPC状态已刷新", body["message"])
		assert.Len(t, body["dialogues"], 6)
	}

	_, body = ts.do(t, http.MethodGet, "/npcs/status", nil)
	assert.NotNil(t, body["last_update"])
	assert.Len(t, body["dialogues"], 6)

	_, body = ts.do(t, http.MethodGet, "/npcs/张三", nil)
	assert.NotEmpty(t, body["dialogue"])
}

func TestAffinityEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w, body := ts.do(t, http.MethodGet, "/npcs/张三/affinity", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 50, body["affinity"])
	assert.Equal(t, "友好", body["level"])
	assert.Equal(t, "player", body["player_id"])

	w, body = ts.do(t, http.MethodPut, "/npcs/张三/affinity?affinity=85&player_id=p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 85, body["affinity"])
	assert.Equal(t, "挚友", body["level"])

	w, body = ts.do(t, http.MethodPut, "/npcs/李四/affinity", gin.H{"affinity": 30, "player_id": "p1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "熟悉", body["level"])

	w, body = ts.do(t, http.MethodPut, "/npcs/张三/affinity?affinity=150&player_id=p1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.EqualValues(t, 85, ts.scores.GetOrInit("张三", "p1"), "rejected value must not mutate")

	w, _ = ts.do(t, http.MethodPut, "/npcs/张三/affinity", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = ts.do(t, http.MethodGet, "/affinities?player_id=p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	all := body["affinities"].(map[string]any)
	assert.Len(t, all, 2)
	assert.EqualValues(t, 30, all["李四"].(map[string]any)["affinity"])
}

func TestSetAffinityChunkedBody(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPut, "/npcs/王五/affinity", strings.NewReader(`{"affinity": 72, "player_id": "p2"}`))
	req.ContentLength = -1
	req.TransferEncoding = []string{"chunked"}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 72, ts.scores.GetOrInit("王五", "p2"))

	req = httptest.NewRequest(http.MethodPut, "/npcs/王五/affinity?affinity=40&player_id=p2", strings.NewReader(""))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 40, ts.scores.GetOrInit("王五", "p2"))
}

func TestMemoryEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for _, kind := range []types.MemoryKind{types.MemoryKindWorking, types.MemoryKindWorking, types.MemoryKindEpisodic} {
		require.NoError(t, ts.memory.Append(ctx, "张三", types.MemoryEntry{
			UserID: "player", Content: "聊了" + string(kind), Kind: kind, Importance: 0.5,
		}))
	}

	w, body := ts.do(t, http.MethodGet, "/npcs/张三/memories?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, body["total"])

	w, _ = ts.do(t, http.MethodGet, "/npcs/张三/memories?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodDelete, "/npcs/张三/memories?memory_type=semantic", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = ts.do(t, http.MethodDelete, "/npcs/张三/memories?memory_type=working", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "working", body["memory_type"])
	assert.EqualValues(t, 2, body["removed"])

	_, body = ts.do(t, http.MethodGet, "/npcs/张三/memories", nil)
	assert.EqualValues(t, 1, body["total"])

	w, body = ts.do(t, http.MethodDelete, "/npcs/张三/memories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", body["memory_type"])

	_, body = ts.do(t, http.MethodGet, "/npcs/张三/memories", nil)
	assert.EqualValues(t, 0, body["total"])
	assert.NotNil(t, body["memories"])
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/chat", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var first scheduler.Snapshot
	require.NoError(t, conn.ReadJSON(&first))
	assert.Nil(t, first.LastUpdate)

	_, err = ts.scheduler.ForceUpdate(context.Background())
	require.NoError(t, err)

	var next scheduler.Snapshot
	require.NoError(t, conn.ReadJSON(&next))
	require.NotNil(t, next.LastUpdate)
	assert.Len(t, next.Dialogues, 6)
}
