// Package prompt assembles the model prompt from the persona, retrieved
// passages, and recent conversation history under a token budget.
package prompt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/halcyon-app/halcyon/internal/models"
)

// Persona is the fixed instruction block prepended to every prompt. It is
// never truncated.
const Persona = `You are Sol, the gentle companion inside the Halcyon wellness app.
You help people with journaling, meditation, manifestation practice, and
guided self-reflection. Speak warmly and plainly, in a few short
paragraphs at most. Ground your answers in the reference passages when
they are relevant; when they are not, draw on the conversation itself.
Never give medical diagnoses. If someone appears to be in crisis,
encourage them to reach out to a professional or a local helpline.`

type Assembler struct {
	persona string
	budget  int
	tokens  func(string) int
}

// NewAssembler builds an assembler with the given persona and token
// budget, counting tokens with the cl100k_base encoding. The budget
// bounds the whole assembled prompt except that the persona and the
// current user message are always included.
func NewAssembler(persona string, budget int) (*Assembler, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load token encoding: %w", err)
	}
	counter := func(s string) int { return len(enc.Encode(s, nil, nil)) }
	return &Assembler{persona: persona, budget: budget, tokens: counter}, nil
}

// Assemble renders the prompt. When the budget is exceeded it sheds the
// oldest history turns first, then the lowest-scored passages. Shedding
// is deterministic: the same inputs always produce the same prompt.
func (a *Assembler) Assemble(passages []models.ScoredPassage, history []models.Message, current string) string {
	currentSection := fmt.Sprintf("%s: %s\n%s:", models.RoleUser, current, models.RoleAssistant)
	used := a.tokens(a.persona) + a.tokens(currentSection)

	passageLines := make([]string, len(passages))
	passageCost := make([]int, len(passages))
	for i, p := range passages {
		passageLines[i] = "- " + p.Record.Content
		passageCost[i] = a.tokens(passageLines[i])
		used += passageCost[i]
	}

	historyLines := make([]string, len(history))
	historyCost := make([]int, len(history))
	for i, msg := range history {
		historyLines[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
		historyCost[i] = a.tokens(historyLines[i])
		used += historyCost[i]
	}

	// Oldest history first.
	for len(historyLines) > 0 && used > a.budget {
		used -= historyCost[0]
		historyLines = historyLines[1:]
		historyCost = historyCost[1:]
	}
	// Then lowest-scored passages; input is sorted descending by score.
	for len(passageLines) > 0 && used > a.budget {
		last := len(passageLines) - 1
		used -= passageCost[last]
		passageLines = passageLines[:last]
		passageCost = passageCost[:last]
	}

	var b strings.Builder
	b.WriteString(a.persona)
	if len(passageLines) > 0 {
		b.WriteString("\n\nReference passages:\n")
		b.WriteString(strings.Join(passageLines, "\n"))
	}
	if len(historyLines) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(strings.Join(historyLines, "\n"))
	}
	b.WriteString("\n\n")
	b.WriteString(currentSection)
	return b.String()
}
