package prompt

import (
	"strings"
	"testing"
	"time"

	"github.com/easeaico/npc-town/internal/types"
)

var testCharacter = types.Character{
	Name:        "张三",
	Title:       "Python工程师",
	Location:    "工位区",
	Activity:    "写代码",
	Personality: "技术宅,喜欢讨论算法和框架",
	Expertise:   "多智能体系统、HelloAgents框架、Python开发",
	Style:       "简洁专业",
	Hobbies:     "刷LeetCode",
}

func TestPersona(t *testing.T) {
	text, err := Persona(testCharacter)
	if err != nil {
		t.Fatalf("persona: %v", err)
	}
	for _, want := range []string{
		"你是Datawhale办公室的Python工程师张三。",
		"- 当前活动: 写代码",
		"主要负责多智能体系统。",
		"不要说\"我是AI\"",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("persona missing %q:\n%s", want, text)
		}
	}
}

func TestTurnWithoutMemories(t *testing.T) {
	text, err := Turn(TurnContext{Score: 50, Level: "友好", Modifier: "礼貌友善", Message: "你好"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if strings.Contains(text, MemoryHeader) {
		t.Fatalf("empty memory should omit the block:\n%s", text)
	}
	if !strings.Contains(text, "好感度: 50/100") || !strings.HasSuffix(text, "\n\n你好") {
		t.Fatalf("unexpected turn prompt:\n%s", text)
	}
}

func TestTurnRendersMemoriesOldestFirst(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.Local)
	newest := types.MemoryEntry{Content: "谢谢!", CreatedAt: base.Add(time.Minute), Metadata: map[string]any{types.MetaSpeaker: "张三"}}
	oldest := types.MemoryEntry{Content: "你的代码写得真棒", CreatedAt: base, Metadata: map[string]any{types.MetaSpeaker: "player"}}

	text, err := Turn(TurnContext{
		Score:    63,
		Level:    "亲密",
		Modifier: "友好热情",
		Memories: []types.MemoryEntry{newest, oldest},
		Message:  "今天忙吗?",
	})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	want := MemoryHeader + "\n- [2025-03-01 09:30] player: 你的代码写得真棒\n- [2025-03-01 09:31] 张三: 谢谢!\n\n今天忙吗?"
	if !strings.Contains(text, want) {
		t.Fatalf("unexpected memory block:\n%s", text)
	}
}

func TestTurnSortsRelevanceOrderedMemories(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	matched := types.MemoryEntry{Content: "一起去喝咖啡", CreatedAt: base.Add(time.Minute)}
	mid := types.MemoryEntry{Content: "中午吃什么", CreatedAt: base.Add(5 * time.Minute)}
	newest := types.MemoryEntry{Content: "下午开会", CreatedAt: base.Add(10 * time.Minute)}
	input := []types.MemoryEntry{matched, newest, mid}

	text, err := Turn(TurnContext{Score: 50, Level: "友好", Memories: input, Message: "咖啡?"})
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	want := MemoryHeader + "\n- [2025-03-01 09:01] 一起去喝咖啡\n- [2025-03-01 09:05] 中午吃什么\n- [2025-03-01 09:10] 下午开会\n"
	if !strings.Contains(text, want) {
		t.Fatalf("memories not in time order:\n%s", text)
	}
	if input[1].Content != "下午开会" {
		t.Fatal("caller slice must not be reordered")
	}
}

func TestFormatMemoryLineWithoutSpeaker(t *testing.T) {
	if got := FormatMemoryLine(types.MemoryEntry{Content: " 记得带伞 "}); got != "- 记得带伞" {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestScene(t *testing.T) {
	other := testCharacter
	other.Name = "李四"
	other.Title = "产品经理"
	other.Location = "会议室"
	other.Activity = "整理需求"

	text, err := Scene("午餐时间", []types.Character{testCharacter, other})
	if err != nil {
		t.Fatalf("scene: %v", err)
	}
	for _, want := range []string{
		"请为Datawhale办公室的2个NPC生成",
		"【场景】午餐时间",
		"- 张三(Python工程师): 在工位区写代码,性格技术宅",
		"- 李四(产品经理): 在会议室整理需求",
		`{"张三":"...","李四":"..."}`,
		"20-40字",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("scene prompt missing %q:\n%s", want, text)
		}
	}
}
