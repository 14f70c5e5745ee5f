package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/easeaico/npc-town/internal/types"
)

// MemoryHeader introduces the remembered lines in a turn prompt.
const MemoryHeader = "【相关记忆】"

const memoryTimeLayout = "2006-01-02 15:04"

// Persona renders the character's system instruction.
func Persona(c types.Character) (string, error) {
	var buf bytes.Buffer
	if err := personaTemplate.Execute(&buf, c); err != nil {
		return "", fmt.Errorf("failed to build persona prompt: %w", err)
	}
	return buf.String(), nil
}

// TurnContext contains all inputs for one turn's user prompt.
type TurnContext struct {
	Score    float64
	Level    string
	Modifier string
	// Memories may arrive in relevance order; they render oldest first.
	Memories []types.MemoryEntry
	Message  string
}

// Turn renders the affinity block, the memory block (if any) and the raw
// player message.
func Turn(ctx TurnContext) (string, error) {
	memories := slices.Clone(ctx.Memories)
	slices.SortStableFunc(memories, func(a, b types.MemoryEntry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	data := struct {
		TurnContext
		Memories []types.MemoryEntry
	}{TurnContext: ctx, Memories: memories}

	var buf bytes.Buffer
	if err := turnTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build turn prompt: %w", err)
	}
	return buf.String(), nil
}

// FormatMemoryLine renders "- [2006-01-02 15:04] speaker: content".
func FormatMemoryLine(m types.MemoryEntry) string {
	parts := []string{"-"}
	if !m.CreatedAt.IsZero() {
		parts = append(parts, "["+m.CreatedAt.Format(memoryTimeLayout)+"]")
	}
	if speaker := strings.TrimSpace(m.Speaker()); speaker != "" {
		parts = append(parts, speaker+":")
	}
	parts = append(parts, strings.TrimSpace(m.Content))
	return strings.Join(parts, " ")
}

// Scene renders the batch idle-dialogue prompt.
func Scene(scene string, characters []types.Character) (string, error) {
	format := make(map[string]string, len(characters))
	for _, c := range characters {
		format[c.Name] = "..."
	}
	// map keys marshal sorted; order is irrelevant for the model
	raw, err := json.Marshal(format)
	if err != nil {
		return "", fmt.Errorf("failed to build scene format: %w", err)
	}

	data := struct {
		Scene      string
		Characters []types.Character
		Format     string
	}{Scene: scene, Characters: characters, Format: string(raw)}

	var buf bytes.Buffer
	if err := sceneTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build scene prompt: %w", err)
	}
	return buf.String(), nil
}
