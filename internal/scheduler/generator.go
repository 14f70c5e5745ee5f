package scheduler

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/easeaico/npc-town/internal/character"
	"github.com/easeaico/npc-town/internal/models"
	"github.com/easeaico/npc-town/internal/prompt"
	"github.com/easeaico/npc-town/internal/utils"
)

// Generator produces one idle line per character with a single model call.
type Generator struct {
	model      model.LLM
	characters *character.Registry
	timeout    time.Duration
	now        func() time.Time
}

// NewGenerator returns a Generator. A nil model always yields presets.
func NewGenerator(m model.LLM, characters *character.Registry, timeout time.Duration) *Generator {
	return &Generator{model: m, characters: characters, timeout: timeout, now: time.Now}
}

// Generate returns a line for every registered character. An empty scene is
// inferred from the time of day. Lines the model omits are filled from the
// preset table, so the result is always complete.
func (g *Generator) Generate(ctx context.Context, scene string) map[string]string {
	now := g.now()
	if strings.TrimSpace(scene) == "" {
		scene = SceneFor(now)
	}
	characters := g.characters.All()
	presets := Presets(BandOf(now.Hour()), characters)

	if g.model == nil {
		return presets
	}

	text, err := prompt.Scene(scene, characters)
	if err != nil {
		slog.Error("failed to build batch prompt", "error", err)
		return presets
	}
	req := &model.LLMRequest{
		Contents: []*genai.Content{genai.NewContentFromText(text, "user")},
		Config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(prompt.SceneSystemPrompt, "system"),
			ResponseMIMEType:  "application/json",
		},
	}
	raw, err := models.Invoke(ctx, g.model, req, g.timeout)
	if err != nil {
		slog.Warn("failed to generate batch dialogue, using presets", "error", err)
		return presets
	}

	var generated map[string]any
	tier, err := utils.DecodeJSONObject(raw, &generated)
	if err != nil {
		slog.Warn("failed to parse batch dialogue, using presets", "error", err, "raw", utils.TruncateRunes(raw, 100))
		return presets
	}

	out := make(map[string]string, len(characters))
	missing := 0
	for _, c := range characters {
		line, _ := generated[c.Name].(string)
		if line = strings.TrimSpace(line); line == "" {
			line = presets[c.Name]
			missing++
		}
		out[c.Name] = line
	}
	slog.Info("batch dialogue generated", "count", len(out)-missing, "filled", missing, "tier", tier)
	return out
}
