// Package api exposes the town over HTTP and a websocket status stream.
package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/easeaico/npc-town/internal/affinity"
	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/character"
	"github.com/easeaico/npc-town/internal/dialogue"
	"github.com/easeaico/npc-town/internal/memory"
	"github.com/easeaico/npc-town/internal/scheduler"
	"github.com/easeaico/npc-town/internal/types"
)

const (
	serviceName    = "NPC Town API"
	serviceVersion = "1.0.0"

	defaultMemoryLimit = 10
	maxMemoryLimit     = 100
)

// Deps are the services the handlers call.
type Deps struct {
	Characters *character.Registry
	Dialogue   *dialogue.Orchestrator
	Scheduler  *scheduler.Scheduler
	Affinity   *affinity.Store
	Memory     memory.Bridge
}

// Handler serves the HTTP routes.
type Handler struct {
	characters *character.Registry
	dialogue   *dialogue.Orchestrator
	scheduler  *scheduler.Scheduler
	affinity   *affinity.Store
	memory     memory.Bridge
	now        func() time.Time
}

// NewHandler returns a Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{
		characters: deps.Characters,
		dialogue:   deps.Dialogue,
		scheduler:  deps.Scheduler,
		affinity:   deps.Affinity,
		memory:     deps.Memory,
		now:        time.Now,
	}
}

// Root 返回服务信息和接口索引
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":  serviceName,
		"version":  serviceVersion,
		"status":   "running",
		"offline":  h.dialogue.Offline(),
		"features": []string{"AI对话", "NPC记忆系统", "好感度系统", "批量状态更新"},
		"endpoints": gin.H{
			"chat":           "/chat",
			"npcs":           "/npcs",
			"npcs_status":    "/npcs/status",
			"npc_memories":   "/npcs/{npc_name}/memories",
			"npc_affinity":   "/npcs/{npc_name}/affinity",
			"all_affinities": "/affinities",
			"status_stream":  "/ws/status",
		},
	})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": h.now(),
		"offline":   h.dialogue.Offline(),
	})
}

type chatRequest struct {
	NPCName  string `json:"npc_name" binding:"required"`
	Message  string `json:"message" binding:"required"`
	PlayerID string `json:"player_id"`
}

// Chat 与NPC对话
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求参数错误: %v", err)
		return
	}

	result, err := h.dialogue.Chat(c.Request.Context(), dialogue.TurnRequest{
		NPC:     req.NPCName,
		UserID:  req.PlayerID,
		Message: req.Message,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type npcInfo struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	Location  string `json:"location"`
	Activity  string `json:"activity"`
	Available bool   `json:"available"`
}

// ListNPCs 获取所有NPC
func (h *Handler) ListNPCs(c *gin.Context) {
	all := h.characters.All()
	npcs := make([]npcInfo, 0, len(all))
	for _, ch := range all {
		npcs = append(npcs, npcInfo{
			Name:      ch.Name,
			Title:     ch.Title,
			Location:  ch.Location,
			Activity:  ch.Activity,
			Available: true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"npcs": npcs, "total": len(npcs)})
}

// Status 当前所有NPC的闲聊状态
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.scheduler.CurrentState())
}

// RefreshStatus 强制刷新NPC状态
func (h *Handler) RefreshStatus(c *gin.Context) {
	snap, err := h.scheduler.ForceUpdate(c.Request.Context())
	if err != nil {
		respondError(c, apperr.New(apperr.KindInternal, "刷新NPC状态失败", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "NPC状态已刷新",
		"dialogues": snap.Dialogues,
	})
}

// GetNPC 获取指定NPC的详细信息
func (h *Handler) GetNPC(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}
	line, _ := h.scheduler.Dialogue(ch.Name)
	c.JSON(http.StatusOK, gin.H{
		"npc_info": ch,
		"status":   "active",
		"dialogue": line,
	})
}

// Memories 获取NPC的记忆列表
func (h *Handler) Memories(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}

	limit := defaultMemoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "limit 必须是正整数")
			return
		}
		limit = min(n, maxMemoryLimit)
	}

	entries, err := h.memory.List(c.Request.Context(), ch.Name, limit)
	if err != nil {
		respondError(c, apperr.New(apperr.KindInternal, "获取记忆失败", err))
		return
	}
	if entries == nil {
		entries = []types.MemoryEntry{}
	}
	c.JSON(http.StatusOK, gin.H{
		"npc_name": ch.Name,
		"memories": entries,
		"total":    len(entries),
	})
}

// ClearMemories 清空NPC的记忆,memory_type 为空时清空全部
func (h *Handler) ClearMemories(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}

	var kind *types.MemoryKind
	label := "all"
	if raw := strings.TrimSpace(c.Query("memory_type")); raw != "" {
		parsed, err := types.ParseMemoryKind(raw)
		if err != nil {
			badRequest(c, "未知的记忆类型: %s", raw)
			return
		}
		kind, label = &parsed, raw
	}

	removed, err := h.memory.Clear(c.Request.Context(), ch.Name, kind)
	if err != nil {
		respondError(c, apperr.New(apperr.KindInternal, "清空记忆失败", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":     "已清空" + ch.Name + "的记忆",
		"npc_name":    ch.Name,
		"memory_type": label,
		"removed":     removed,
	})
}

// GetAffinity 获取NPC对玩家的好感度
func (h *Handler) GetAffinity(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}
	playerID := playerIDOf(c.Query("player_id"))
	summary := affinity.Summarize(h.affinity.GetOrInit(ch.Name, playerID))
	c.JSON(http.StatusOK, affinityBody(ch.Name, playerID, summary, ""))
}

type setAffinityRequest struct {
	Affinity *float64 `json:"affinity"`
	PlayerID string   `json:"player_id"`
}

// SetAffinity 设置NPC对玩家的好感度,参数可走 query 或 JSON body
func (h *Handler) SetAffinity(c *gin.Context) {
	ch, ok := h.lookup(c)
	if !ok {
		return
	}

	var req setAffinityRequest
	// chunked 请求的 ContentLength 为 -1, 只能靠读取判断是否有 body
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "请求参数错误: %v", err)
			return
		}
	}
	if raw := c.Query("affinity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, "affinity 必须是数字")
			return
		}
		req.Affinity = &v
	}
	if req.Affinity == nil {
		badRequest(c, "缺少 affinity 参数")
		return
	}
	if q := c.Query("player_id"); q != "" {
		req.PlayerID = q
	}
	playerID := playerIDOf(req.PlayerID)

	if err := h.affinity.SetStrict(ch.Name, playerID, *req.Affinity); err != nil {
		respondError(c, err)
		return
	}
	summary := affinity.Summarize(h.affinity.GetOrInit(ch.Name, playerID))
	c.JSON(http.StatusOK, affinityBody(ch.Name, playerID, summary, "已设置"+ch.Name+"对玩家的好感度"))
}

// AllAffinities 获取所有NPC对玩家的好感度
func (h *Handler) AllAffinities(c *gin.Context) {
	playerID := playerIDOf(c.Query("player_id"))
	c.JSON(http.StatusOK, gin.H{
		"player_id":  playerID,
		"affinities": h.affinity.AllFor(playerID),
	})
}

func (h *Handler) lookup(c *gin.Context) (types.Character, bool) {
	ch, err := h.characters.Get(c.Param("name"))
	if err != nil {
		respondError(c, err)
		return types.Character{}, false
	}
	return ch, true
}

func playerIDOf(raw string) string {
	if id := strings.TrimSpace(raw); id != "" {
		return id
	}
	return dialogue.DefaultUserID
}

func affinityBody(npc, playerID string, s affinity.Summary, message string) gin.H {
	body := gin.H{
		"npc_name":  npc,
		"player_id": playerID,
		"affinity":  s.Score,
		"level":     s.Level,
		"level_key": s.LevelKey,
		"modifier":  s.Modifier,
	}
	if message != "" {
		body["message"] = message
	}
	return body
}
