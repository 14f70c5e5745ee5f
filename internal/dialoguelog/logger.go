package dialoguelog

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/easeaico/npc-town/internal/types"
	"github.com/easeaico/npc-town/internal/utils"
)

const rule = "============================================================"

// Logger records dialogue turns for humans to read.
type Logger struct {
	log *slog.Logger
	out *dailyFile
}

// New writes to dir/dialogue_YYYY-MM-DD.log. mirror, when non-nil, receives
// a copy of every line.
func New(dir string, mirror io.Writer) *Logger {
	out := &dailyFile{dir: dir, mirror: mirror}
	return &Logger{
		log: slog.New(&lineHandler{out: out, level: slog.LevelInfo}),
		out: out,
	}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return &Logger{}
}

func (l *Logger) info(format string, args ...any) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Info(fmt.Sprintf(format, args...))
}

// Close releases the current file.
func (l *Logger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	return l.out.close()
}

func (l *Logger) TurnStart(npc, user, message string) {
	l.info(rule)
	l.info("💬 对话开始: %s <-> %s", npc, user)
	l.info(rule)
	l.info("📝 玩家消息: %s", message)
}

func (l *Logger) Affinity(score float64, level string) {
	l.info("💖 当前好感度: %.1f/100 (%s)", score, level)
}

func (l *Logger) MemoryRetrieval(entries []types.MemoryEntry) {
	l.info("🧠 检索到%d条相关记忆", len(entries))
	if len(entries) == 0 {
		return
	}
	l.info("  📚 相关记忆:")
	for i, m := range entries {
		if i >= 3 {
			break
		}
		l.info("    %d. %s", i+1, utils.TruncateRunes(m.Content, 50))
	}
}

func (l *Logger) Generating() {
	l.info("🤖 正在生成回复...")
}

func (l *Logger) Response(npc, reply string) {
	l.info("💬 %s回复: %s", npc, reply)
}

// Change describes one affinity update for the log.
type Change struct {
	Changed   bool
	Old       float64
	New       float64
	Delta     float64
	Reason    string
	Sentiment string
	OldLevel  string
	NewLevel  string
}

func (l *Logger) AffinityChange(c Change) {
	if !c.Changed {
		l.info("  ➡️ 好感度未变化 (当前: %.1f)", c.New)
		l.info("  原因: %s", c.Reason)
		return
	}
	symbol := "📈"
	if c.Delta < 0 {
		symbol = "📉"
	}
	l.info("%s 好感度变化: %.1f -> %.1f (%+.1f)", symbol, c.Old, c.New, c.Delta)
	l.info("  原因: %s", c.Reason)
	l.info("  情感: %s", c.Sentiment)
	if c.OldLevel != c.NewLevel {
		l.info("  🎉 关系等级变化: %s -> %s", c.OldLevel, c.NewLevel)
	}
}

func (l *Logger) MemorySaved(npc string) {
	l.info("  💾 对话已保存到%s的记忆中", npc)
}

func (l *Logger) TurnEnd() {
	l.info(rule)
	l.info("✅ 对话完成")
}

func (l *Logger) Info(message string) {
	l.info("%s", message)
}

func (l *Logger) Error(message string) {
	if l == nil || l.log == nil {
		return
	}
	l.log.Error(strings.TrimSpace(message))
}
