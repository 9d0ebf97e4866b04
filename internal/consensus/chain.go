package consensus

import (
	"context"
	"math"
	"time"

	"dev.consensus.engine/internal/models"
)

// scoreTolerance is the numeric tolerance spec.md §4.5 "edge cases" names
// for the improved-score test in the chain refinement gate.
const scoreTolerance = 1e-9

// runChain executes up to chainDepth critique-and-revise rounds (spec.md
// §4.5 step 8). It mutates nothing in place: it returns the possibly-updated
// consensus text/score and the recorded trace, leaving the caller to decide
// what to keep.
func (e *Engine) runChain(
	ctx context.Context,
	question string,
	successModelIDs []string,
	vectors map[string][]float32,
	weights map[string]float64,
	currentText string,
	currentScore float64,
	chainDepth int,
	deadline time.Time,
	temperature float64,
) (string, float64, []models.ChainRound) {
	n := len(successModelIDs)
	if n == 0 || chainDepth <= 0 {
		return currentText, currentScore, nil
	}

	trace := make([]models.ChainRound, 0, chainDepth)
	text := currentText
	score := currentScore

	for k := 0; k < chainDepth; k++ {
		if ctx.Err() != nil || time.Now().After(deadline) {
			break
		}

		roundsLeft := chainDepth - k
		remaining := time.Until(deadline)
		subBudget := remaining / time.Duration(roundsLeft+1)
		subDeadline := time.Now().Add(subBudget)

		criticID := successModelIDs[(k+1)%n]
		reviserID := successModelIDs[(k+2)%n]

		roundCtx, roundSpan := e.tracer.StartChainRound(ctx, k+1, criticID, reviserID)

		critique, err := e.callChainStep(roundCtx, criticID, renderCritiquePrompt(question, text), subDeadline, temperature)
		if err != nil {
			roundSpan.End()
			continue
		}
		revised, err := e.callChainStep(roundCtx, reviserID, renderRevisionPrompt(question, text, critique), subDeadline, temperature)
		if err != nil {
			roundSpan.End()
			continue
		}
		roundSpan.End()

		newVec := e.embedder.Embed(revised)
		candidateVectors := make([][]float32, 0, n)
		candidateWeights := make([]float64, 0, n)
		for _, id := range successModelIDs {
			if id == reviserID {
				continue
			}
			candidateVectors = append(candidateVectors, vectors[id])
			candidateWeights = append(candidateWeights, weights[id])
		}
		candidateVectors = append(candidateVectors, newVec)
		candidateWeights = append(candidateWeights, weights[reviserID])

		result := scoreAgreement(candidateVectors, candidateWeights)
		newScore := result.overall

		round := models.ChainRound{
			Round:       k + 1,
			CriticID:    criticID,
			Critique:    critique,
			ReviserID:   reviserID,
			RevisedText: revised,
			NewScore:    newScore,
		}
		trace = append(trace, round)

		if newScore >= score-scoreTolerance {
			text = revised
			score = math.Max(score, newScore)
		}
	}

	return text, score, trace
}

// callChainStep invokes one critic or reviser call against its own
// sub-deadline, returning the adapter's raw text.
func (e *Engine) callChainStep(ctx context.Context, modelID, prompt string, deadline time.Time, temperature float64) (string, error) {
	entry, ok := e.directory.Lookup(modelID)
	if !ok {
		return "", errUnknownModel(modelID)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	maxTokens := entry.Descriptor.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := entry.Provider.Complete(ctx, &models.LLMRequest{
		ID:       modelID,
		Messages: []models.Message{{Role: "user", Content: prompt}},
		Prompt:   prompt,
		ModelParams: models.ModelParameters{
			Temperature: temperature,
			MaxTokens:   maxTokens,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
