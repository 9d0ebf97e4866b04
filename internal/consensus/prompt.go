package consensus

import (
	"fmt"
	"strings"

	"dev.consensus.engine/internal/models"
)

// neutralRoleTemplate is used when the request carries no roles at all.
const neutralRoleTemplate = "Answer the following question as accurately and concisely as possible.\n\nQuestion: %s"

const roleTemplate = "You are acting as a %s. Apply your specialized expertise to answer the following question.\n\nQuestion: %s"

// renderPrompt builds the prompt for one (model, role) pair per spec.md
// §4.5 step 2: role index wraps if |roles| < |models|; empty roles fall
// back to a neutral template; enable_chain_of_thought wraps the result in
// the selected reasoning scaffold.
func renderPrompt(req *models.ConsensusRequest, modelIndex int) string {
	base := renderRolePrompt(req.Question, req.Roles, modelIndex)
	if !req.EnableChainOfThought {
		return base
	}
	return wrapReasoning(base, req.ReasoningMethod)
}

func renderRolePrompt(question string, roles []string, modelIndex int) string {
	if len(roles) == 0 {
		return fmt.Sprintf(neutralRoleTemplate, question)
	}
	role := roles[modelIndex%len(roles)]
	return fmt.Sprintf(roleTemplate, role, question)
}

// reasoningTemplates is the deterministic prompt registry spec.md §4.5 step
// 2 calls for: one scaffold per reasoning_method, each a pure function of
// the base prompt.
var reasoningTemplates = map[models.ReasoningMethod]func(string) string{
	models.ReasoningChainOfThought: func(base string) string {
		return base + "\n\nThink through this step by step before giving your final answer."
	},
	models.ReasoningSocraticMethod: func(base string) string {
		return base + "\n\nExplore this by questioning your own assumptions, then give your final answer."
	},
	models.ReasoningMultiPerspective: func(base string) string {
		return base + "\n\nConsider multiple distinct perspectives before giving your final answer."
	},
}

func wrapReasoning(base string, method models.ReasoningMethod) string {
	if wrap, ok := reasoningTemplates[method]; ok {
		return wrap(base)
	}
	return reasoningTemplates[models.ReasoningChainOfThought](base)
}

// renderCritiquePrompt builds the critic's prompt for one chain round.
func renderCritiquePrompt(question, currentAnswer string) string {
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(question)
	b.WriteString("\n\nCandidate answer:\n")
	b.WriteString(currentAnswer)
	b.WriteString("\n\nCritique this answer: identify any errors, omissions, or weak reasoning. Be specific and concise.")
	return b.String()
}

// renderRevisionPrompt builds the reviser's prompt for one chain round.
func renderRevisionPrompt(question, currentAnswer, critique string) string {
	var b strings.Builder
	b.WriteString("Original question: ")
	b.WriteString(question)
	b.WriteString("\n\nCandidate answer:\n")
	b.WriteString(currentAnswer)
	b.WriteString("\n\nCritique:\n")
	b.WriteString(critique)
	b.WriteString("\n\nProduce an improved answer that addresses the critique. Respond with only the improved answer.")
	return b.String()
}
