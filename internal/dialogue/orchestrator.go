// Package dialogue runs one player turn against an NPC end to end.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/affinity"
	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/character"
	"github.com/easeaico/npc-town/internal/dialoguelog"
	"github.com/easeaico/npc-town/internal/memory"
	"github.com/easeaico/npc-town/internal/models"
	"github.com/easeaico/npc-town/internal/prompt"
	"github.com/easeaico/npc-town/internal/types"
)

// DefaultUserID is used when a request carries no player id.
const DefaultUserID = "player"

const (
	memoryLimit         = 5
	memoryMinImportance = 0.3
	workingImportance   = 0.5
	episodicImportance  = 0.8
	// episodicDelta is the |change| at which a turn is kept as episodic.
	episodicDelta = 5
)

// Classifier judges the affinity impact of one exchange.
type Classifier interface {
	Classify(ctx context.Context, npcName, playerMessage, npcResponse string) (affinity.Judgment, error)
}

// TurnRequest is one incoming player message.
type TurnRequest struct {
	NPC     string
	UserID  string
	Message string
}

// AffinityOutcome reports how a turn moved affinity.
type AffinityOutcome struct {
	Changed   bool    `json:"changed"`
	Old       float64 `json:"old_affinity"`
	New       float64 `json:"new_affinity"`
	Delta     int     `json:"change_amount"`
	OldLevel  string  `json:"old_level"`
	NewLevel  string  `json:"new_level"`
	Reason    string  `json:"reason"`
	Sentiment string  `json:"sentiment"`
}

// TurnResult is what the caller gets back. Success is true even for degraded
// turns; Degraded marks the apology fallback.
type TurnResult struct {
	NPC          string           `json:"npc_name"`
	Title        string           `json:"npc_title"`
	Reply        string           `json:"message"`
	Success      bool             `json:"success"`
	Degraded     bool             `json:"degraded,omitempty"`
	Affinity     *AffinityOutcome `json:"affinity,omitempty"`
	MemoriesUsed int              `json:"memories_used"`
	Timestamp    time.Time        `json:"timestamp"`
}

// Deps wires an Orchestrator. Model may be nil for offline mode.
type Deps struct {
	Characters   *character.Registry
	Model        model.LLM
	Classifier   Classifier
	Affinity     *affinity.Store
	Memory       memory.Bridge
	Log          *dialoguelog.Logger
	ModelTimeout time.Duration
}

// Orchestrator runs dialogue turns.
type Orchestrator struct {
	characters *character.Registry
	model      model.LLM
	classifier Classifier
	affinity   *affinity.Store
	memory     memory.Bridge
	log        *dialoguelog.Logger
	locks      *PairLocks
	timeout    time.Duration
	now        func() time.Time
}

// New returns an Orchestrator.
func New(deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = dialoguelog.Discard()
	}
	return &Orchestrator{
		characters: deps.Characters,
		model:      deps.Model,
		classifier: deps.Classifier,
		affinity:   deps.Affinity,
		memory:     deps.Memory,
		log:        log,
		locks:      NewPairLocks(),
		timeout:    deps.ModelTimeout,
		now:        time.Now,
	}
}

// Offline reports whether no model is configured.
func (o *Orchestrator) Offline() bool {
	return o.model == nil
}

// OfflineReply is the fixed line returned without a model.
func OfflineReply(c types.Character) string {
	return fmt.Sprintf("你好!我是%s,一名%s。(当前为模拟模式,请配置API_KEY以启用AI对话)", c.Name, c.Title)
}

// ApologyReply is returned when a turn fails after validation.
func ApologyReply(c types.Character) string {
	return fmt.Sprintf("抱歉,%s现在有点忙,稍后再聊吧。", c.Name)
}

// Chat runs one turn. Only unknown NPCs and empty messages return errors;
// failures past that point degrade to ApologyReply.
func (o *Orchestrator) Chat(ctx context.Context, req TurnRequest) (TurnResult, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return TurnResult{}, apperr.Validation("消息不能为空")
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = DefaultUserID
	}

	c, err := o.characters.Get(req.NPC)
	if err != nil {
		return TurnResult{}, err
	}
	result := TurnResult{NPC: c.Name, Title: c.Title, Success: true}

	if o.Offline() {
		result.Reply = OfflineReply(c)
		result.Timestamp = o.now()
		return result, nil
	}

	release, err := o.locks.Acquire(ctx, c.Name, req.UserID)
	if err != nil {
		slog.Warn("failed to acquire dialogue turn", "npc", c.Name, "user", req.UserID, "error", err)
		return o.degrade(result, c), nil
	}
	defer release()

	if err := o.runTurn(ctx, c, req, &result); err != nil {
		slog.Error("dialogue turn failed", "npc", c.Name, "user", req.UserID, "error", err)
		o.log.Error(fmt.Sprintf("❌ 对话失败: %v", err))
		return o.degrade(result, c), nil
	}
	result.Timestamp = o.now()
	return result, nil
}

func (o *Orchestrator) degrade(result TurnResult, c types.Character) TurnResult {
	result.Reply = ApologyReply(c)
	result.Degraded = true
	result.Affinity = nil
	result.Timestamp = o.now()
	return result
}

func (o *Orchestrator) runTurn(ctx context.Context, c types.Character, req TurnRequest, result *TurnResult) error {
	o.log.TurnStart(c.Name, req.UserID, req.Message)

	score := o.affinity.GetOrInit(c.Name, req.UserID)
	level := affinity.LevelOf(score)
	o.log.Affinity(score, level.String())

	memories, err := o.memory.Retrieve(ctx, c.Name, types.MemoryQuery{
		Text:          req.Message,
		UserID:        req.UserID,
		Kinds:         []types.MemoryKind{types.MemoryKindWorking, types.MemoryKindEpisodic},
		Limit:         memoryLimit,
		MinImportance: memoryMinImportance,
	})
	if err != nil {
		return fmt.Errorf("failed to retrieve memories: %w", err)
	}
	o.log.MemoryRetrieval(memories)
	result.MemoriesUsed = len(memories)

	reply, err := o.respond(ctx, c, prompt.TurnContext{
		Score:    score,
		Level:    level.String(),
		Modifier: affinity.ModifierText(score),
		Memories: memories,
		Message:  req.Message,
	})
	if err != nil {
		return err
	}
	o.log.Response(c.Name, reply)
	result.Reply = reply

	outcome := o.applyJudgment(ctx, c.Name, req, reply, score)
	o.log.AffinityChange(dialoguelog.Change{
		Changed:   outcome.Changed,
		Old:       outcome.Old,
		New:       outcome.New,
		Delta:     float64(outcome.Delta),
		Reason:    outcome.Reason,
		Sentiment: outcome.Sentiment,
		OldLevel:  outcome.OldLevel,
		NewLevel:  outcome.NewLevel,
	})
	result.Affinity = &outcome

	o.remember(ctx, c.Name, req, reply, outcome)
	o.log.TurnEnd()
	return nil
}

func (o *Orchestrator) respond(ctx context.Context, c types.Character, turn prompt.TurnContext) (string, error) {
	system, err := prompt.Persona(c)
	if err != nil {
		return "", err
	}
	user, err := prompt.Turn(turn)
	if err != nil {
		return "", err
	}

	o.log.Generating()
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(user, "user")},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, "system"),
		},
	}
	return models.Invoke(ctx, o.model, req, o.timeout)
}

// applyJudgment classifies the exchange and applies the delta. A failed
// classification leaves the score unchanged.
func (o *Orchestrator) applyJudgment(ctx context.Context, npc string, req TurnRequest, reply string, score float64) AffinityOutcome {
	outcome := AffinityOutcome{
		Old:       score,
		New:       score,
		OldLevel:  affinity.LevelOf(score).String(),
		NewLevel:  affinity.LevelOf(score).String(),
		Reason:    "分析失败",
		Sentiment: affinity.SentimentNeutral,
	}
	if o.classifier == nil {
		return outcome
	}

	judgment, err := o.classifier.Classify(ctx, npc, req.Message, reply)
	if err != nil {
		slog.Warn("failed to classify exchange", "npc", npc, "user", req.UserID, "error", err)
		return outcome
	}
	outcome.Reason = judgment.Reason
	outcome.Sentiment = judgment.Sentiment
	if !judgment.ShouldChange {
		return outcome
	}

	old, updated := o.affinity.ApplyDelta(npc, req.UserID, float64(judgment.ChangeAmount))
	outcome.Changed = true
	outcome.Old = old
	outcome.New = updated
	outcome.Delta = judgment.ChangeAmount
	outcome.OldLevel = affinity.LevelOf(old).String()
	outcome.NewLevel = affinity.LevelOf(updated).String()
	return outcome
}

// remember stores the player line and the reply. Failures are logged only.
func (o *Orchestrator) remember(ctx context.Context, npc string, req TurnRequest, reply string, outcome AffinityOutcome) {
	kind, importance := types.MemoryKindWorking, workingImportance
	if math.Abs(float64(outcome.Delta)) >= episodicDelta {
		kind, importance = types.MemoryKindEpisodic, episodicImportance
	}

	turnID := uuid.NewString()
	now := o.now()
	lines := []struct {
		speaker string
		content string
		at      time.Time
	}{
		{speaker: req.UserID, content: req.Message, at: now},
		{speaker: npc, content: reply, at: now.Add(time.Millisecond)},
	}

	saved := true
	for _, line := range lines {
		entry := types.MemoryEntry{
			UserID:     req.UserID,
			Content:    line.content,
			Kind:       kind,
			Importance: importance,
			CreatedAt:  line.at,
			Metadata: map[string]any{
				types.MetaSpeaker:        line.speaker,
				types.MetaUserID:         req.UserID,
				types.MetaTurnID:         turnID,
				types.MetaAffinity:       outcome.New,
				types.MetaAffinityChange: outcome.Delta,
				types.MetaSentiment:      outcome.Sentiment,
			},
		}
		if err := o.memory.Append(ctx, npc, entry); err != nil {
			saved = false
			slog.Warn("failed to save memory", "npc", npc, "user", req.UserID, "error", err)
		}
	}
	if saved {
		o.log.MemorySaved(npc)
	}
}
