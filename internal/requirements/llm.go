package requirements

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/skill-gap-wizard/internal/llm"
	"github.com/jonathan/skill-gap-wizard/internal/prompts"
)

// maxRepairAttempts bounds the follow-up calls made for schema-invalid output.
const maxRepairAttempts = 1

// LLMGenerator drafts requirements with a language model.
type LLMGenerator struct {
	client llm.Client
	tier   llm.ModelTier
	logger *zap.Logger
}

// NewLLMGenerator creates a generator backed by client.
func NewLLMGenerator(client llm.Client, logger *zap.Logger) *LLMGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMGenerator{client: client, tier: llm.TierStandard, logger: logger}
}

// Generate prompts the model and validates its answer against the schema.
// An answer that fails the schema gets one repair round with the violations
// fed back to the model.
func (g *LLMGenerator) Generate(ctx context.Context, req Request) (*Requirements, error) {
	if err := req.Validate(); err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "invalid request", Cause: err}
	}

	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "failed to build prompt", Cause: err}
	}
	out, err := g.client.GenerateJSON(ctx, prompt, g.tier)
	if err != nil {
		return nil, &GenerationError{Role: req.RoleName, Message: "model call failed", Cause: err}
	}
	reqs, err := Decode([]byte(llm.CleanJSONBlock(out)))

	for attempt := 0; err != nil && attempt < maxRepairAttempts; attempt++ {
		var ve *ValidationError
		if !errors.As(err, &ve) {
			break
		}
		g.logger.Info("repairing model output",
			zap.String("role", req.RoleName),
			zap.Int("violations", len(ve.Errors)))

		repair, perr := repairPrompt(ve, out)
		if perr != nil {
			return nil, &GenerationError{Role: req.RoleName, Message: "failed to build prompt", Cause: perr}
		}
		out, err = g.client.GenerateJSON(ctx, repair, g.tier)
		if err != nil {
			return nil, &GenerationError{Role: req.RoleName, Message: "model call failed", Cause: err}
		}
		reqs, err = Decode([]byte(llm.CleanJSONBlock(out)))
	}

	if err != nil {
		g.logger.Warn("model returned invalid requirements", zap.String("role", req.RoleName), zap.Error(err))
		return nil, &GenerationError{Role: req.RoleName, Message: "malformed model output", Cause: err}
	}
	return reqs, nil
}

// BuildPrompt renders the generation prompt for req.
func BuildPrompt(req Request) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Role: %s\n", req.RoleName)
	if req.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", req.Industry)
	}
	if req.ExperienceLevel != "" {
		fmt.Fprintf(&sb, "Experience level: %s\n", req.ExperienceLevel)
	}
	if req.Objective != "" {
		fmt.Fprintf(&sb, "Analysis objective: %s\n", req.Objective)
	}
	if req.Scenario != "" {
		fmt.Fprintf(&sb, "Benchmark scenario: %s\n", req.Scenario)
	}
	return prompts.Render(prompts.Requirements, "generate-requirements",
		map[string]string{"Context": sb.String()})
}

func repairPrompt(ve *ValidationError, output string) (string, error) {
	var problems strings.Builder
	for _, fe := range ve.Errors {
		fmt.Fprintf(&problems, "- %s: %s\n", fe.Field, fe.Message)
	}
	return prompts.Render(prompts.Requirements, "repair-requirements", map[string]string{
		"Problems": strings.TrimSuffix(problems.String(), "\n"),
		"Output":   output,
	})
}
