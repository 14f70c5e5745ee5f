package affinity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/apperr"
	"github.com/easeaico/npc-town/internal/models"
)

const classifierSystemPrompt = `你是一个情感分析专家,负责分析对话中的情感倾向,判断是否应该改变NPC对玩家的好感度。

【任务】
分析玩家与NPC的对话,判断是否应该改变好感度,以及改变的幅度。

【分析维度】
1. 玩家态度: 友好/中立/不友好
2. 对话内容: 积极/中立/消极
3. 互动质量: 深入/一般/敷衍
4. 情感倾向: 赞美/批评/中性

【好感度变化规则】
- 赞美、感谢、请教: +3 到 +8
- 友好问候、正常交流: +1 到 +3
- 普通闲聊、中性话题: 0
- 批评、质疑、不耐烦: -3 到 -8
- 侮辱、攻击、恶意: -8 到 -15

【输出格式】(严格遵守JSON格式,不要添加任何其他文字)
{"should_change": true/false, "change_amount": -15到+10之间的整数, "reason": "简短说明原因(10字以内)", "sentiment": "positive/neutral/negative"}

【示例1】
玩家: "你好,很高兴认识你!"
NPC: "你好!我也很高兴认识你。"
输出: {"should_change": true, "change_amount": 5, "reason": "友好问候", "sentiment": "positive"}

【示例2】
玩家: "你这个设计太丑了!"
NPC: "抱歉,我会改进的..."
输出: {"should_change": true, "change_amount": -8, "reason": "批评工作", "sentiment": "negative"}

【示例3】
玩家: "今天天气不错"
NPC: "是啊,挺好的。"
输出: {"should_change": false, "change_amount": 0, "reason": "普通闲聊", "sentiment": "neutral"}

【示例4】
玩家: "你的代码写得真棒!"
NPC: "谢谢!我最近在研究新技术。"
输出: {"should_change": true, "change_amount": 8, "reason": "赞美工作", "sentiment": "positive"}

【示例5】
玩家: "能教教我吗?"
NPC: "当然可以!我很乐意分享。"
输出: {"should_change": true, "change_amount": 6, "reason": "请教学习", "sentiment": "positive"}

【重要】
- 只输出JSON,不要添加任何解释或其他文字
- change_amount必须是整数
- reason必须简短(10字以内)
- sentiment必须是positive/neutral/negative之一`

func judgmentSchema() *jsonschema.Schema {
	minChange, maxChange := float64(MinChange), float64(MaxChange)
	return &jsonschema.Schema{
		Title: "affinity_judgment",
		Type:  "object",
		Properties: map[string]*jsonschema.Schema{
			"should_change": {Type: "boolean"},
			"change_amount": {Type: "integer", Minimum: &minChange, Maximum: &maxChange},
			"reason":        {Type: "string"},
			"sentiment":     {Type: "string", Enum: []any{SentimentPositive, SentimentNeutral, SentimentNegative}},
		},
		Required: []string{"should_change", "change_amount", "reason", "sentiment"},
	}
}

// Classifier judges how an exchange should move affinity.
type Classifier struct {
	model   model.LLM
	timeout time.Duration
}

// NewClassifier returns a Classifier. A nil model makes every call fail with
// configuration_absent.
func NewClassifier(m model.LLM, timeout time.Duration) *Classifier {
	return &Classifier{model: m, timeout: timeout}
}

// Classify asks the model for a judgment on one exchange. On any failure it
// returns an unchanged neutral judgment together with the error.
func (c *Classifier) Classify(ctx context.Context, npcName, playerMessage, npcResponse string) (Judgment, error) {
	if c == nil || c.model == nil {
		return Unchanged("分析失败"), apperr.ConfigurationAbsent("affinity classifier not configured")
	}

	prompt := fmt.Sprintf("请分析以下对话:\n\n玩家: %s\n%s: %s\n\n请判断是否应该改变好感度,并给出变化量。",
		playerMessage, npcName, npcResponse)
	temperature := float32(0.1)
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(prompt, "user")},
		Config: &genai.GenerateContentConfig{
			SystemInstruction:  genai.NewContentFromText(classifierSystemPrompt, "system"),
			Temperature:        &temperature,
			ResponseMIMEType:   "application/json",
			ResponseJsonSchema: judgmentSchema(),
		},
	}

	raw, err := models.Invoke(ctx, c.model, req, c.timeout)
	if err != nil {
		return Unchanged("分析失败"), err
	}

	judgment, step, err := ParseJudgment(raw)
	if err != nil {
		slog.Warn("failed to parse classifier output", "npc", npcName, "raw", raw, "error", err)
		return judgment, err
	}
	slog.Debug("exchange classified", "npc", npcName, "step", step,
		"should_change", judgment.ShouldChange, "change", judgment.ChangeAmount, "sentiment", judgment.Sentiment)
	return judgment, nil
}
