package dialoguelog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/easeaico/npc-town/internal/types"
)

var linePattern = regexp.MustCompile(`^\d{2}:\d{2}:\d{2} - .+$`)

func TestLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	var mirror bytes.Buffer
	l := New(dir, &mirror)

	l.TurnStart("张三", "player", "你好")
	l.Affinity(50, "友好")
	l.MemoryRetrieval([]types.MemoryEntry{{Content: strings.Repeat("长", 60)}})
	l.Response("张三", "你好!")
	l.AffinityChange(Change{Changed: true, Old: 55, New: 63, Delta: 8, Reason: "赞美工作", Sentiment: "positive", OldLevel: "友好", NewLevel: "亲密"})
	l.MemorySaved("张三")
	l.TurnEnd()
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	for _, want := range []string{
		"💬 对话开始: 张三 <-> player",
		"💖 当前好感度: 50.0/100 (友好)",
		"🧠 检索到1条相关记忆",
		"📈 好感度变化: 55.0 -> 63.0 (+8.0)",
		"🎉 关系等级变化: 友好 -> 亲密",
		"✅ 对话完成",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("log missing %q:\n%s", want, content)
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(content), "\n") {
		if !linePattern.MatchString(line) {
			t.Fatalf("unexpected line format: %q", line)
		}
	}
	if mirror.String() != content {
		t.Fatalf("mirror should receive the same lines")
	}
}

func TestUnchangedAffinityLine(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, nil)
	l.AffinityChange(Change{New: 50, Reason: "普通闲聊"})
	_ = l.Close()

	data, _ := os.ReadFile(filepath.Join(dir, FileName(time.Now())))
	if !strings.Contains(string(data), "➡️ 好感度未变化 (当前: 50.0)") {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestDiscardIsSafe(t *testing.T) {
	l := Discard()
	l.TurnStart("张三", "player", "你好")
	l.Error("boom")
	var nilLogger *Logger
	nilLogger.TurnEnd()
	if err := nilLogger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestListAndPathFor(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"dialogue_2025-03-01.log", "dialogue_2025-03-02.log", "other.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x\n"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	files, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 || files[0].Name != "dialogue_2025-03-02.log" {
		t.Fatalf("unexpected files: %+v", files)
	}

	path, err := PathFor(dir, "2025-03-01")
	if err != nil || path != filepath.Join(dir, "dialogue_2025-03-01.log") {
		t.Fatalf("unexpected path %q err=%v", path, err)
	}
	if _, err := PathFor(dir, "yesterday"); err == nil {
		t.Fatalf("expected invalid day error")
	}

	var buf bytes.Buffer
	if err := Copy(&buf, path); err != nil || buf.String() != "x\n" {
		t.Fatalf("copy: %q err=%v", buf.String(), err)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestTailFollowsAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dialogue_2025-03-01.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- Tail(ctx, out, path, 5*time.Millisecond) }()

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, _ = f.WriteString("new line\n")
	_ = f.Close()

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "new line") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("tail: %v", err)
	}
	if got := out.String(); got != "new line\n" {
		t.Fatalf("unexpected tail output %q", got)
	}
}
