package chat

import (
	"fmt"
	"strings"

	"github.com/bdobrica/aether/internal/aether/character"
	"github.com/bdobrica/aether/internal/aether/llm"
)

const defaultPersona = "你是一个温柔、有趣的AI伴侣。"

const protocolNote = `[System Note]:
- You are simulating a mobile chat.
- **Active Recall**: You have access to detailed memory archives. If the Core Memory Index above shows a record for a specific month (e.g., "2023-05") but lacks the specific detail you need to answer the user (e.g., "what movie did we see?"), you MUST output the tool code: ` + "`[[RECALL: YYYY-MM]]`" + `.
- Example: Output ` + "`[[RECALL: 2023-05]]`" + ` strictly. Do not output anything else. The system will then pause, fetch the detailed logs, and feed them to you in the next turn.
- Only use RECALL if absolutely necessary for specific details. Otherwise, just chat normally.
- **Interactions**: A poke ("戳一戳") means the user poked you playfully. React emotionally.
- **Transfers**: The user sent you money. Acknowledge it and react.`

// SystemPrompt assembles the system message for a character: its persona,
// the refined-memory index (ascending by key) and the protocol note.
func SystemPrompt(p *character.Profile) string {
	var b strings.Builder
	persona := strings.TrimSpace(p.SystemPrompt)
	if persona == "" {
		persona = defaultPersona
	}
	b.WriteString(persona)
	b.WriteByte('\n')

	if len(p.RefinedMemories) > 0 {
		b.WriteString("\n[Core Memory Index (Summaries)]:\n")
		for _, key := range p.RefinedMemories.Keys() {
			fmt.Fprintf(&b, "- %s: %s\n", key, p.RefinedMemories[key])
		}
	}

	b.WriteString(protocolNote)
	return b.String()
}

// History converts logged messages into prompt messages. Non-text types are
// rewritten into bracketed descriptions so the model only ever sees text.
func History(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, llm.Message{Role: llm.Role(m.Role), Content: describe(m)})
	}
	return out
}

func describe(m Message) string {
	switch m.Type {
	case TypeInteraction:
		return "[System: User POKED you]"
	case TypeTransfer:
		return fmt.Sprintf("[System: User sent %v Credits]", transferAmount(m.Metadata))
	case TypeEmoji:
		return "[User sent a sticker/image]"
	case TypeVoice:
		return "[User sent a voice message]: " + m.Content
	default:
		return m.Content
	}
}

func transferAmount(meta map[string]any) any {
	if v, ok := meta["amount"]; ok && v != nil {
		return v
	}
	return "some"
}

func recallFoundNote(key, details string) string {
	return fmt.Sprintf("[System: Detailed Logs for %s Retrieved Successfully]\n%s\n[System: Now answer the user's last message using these details.]", key, details)
}

func recallMissNote(key string) string {
	return fmt.Sprintf("[System: RECALL failed. No detailed logs found for %s. Please answer as best as you can.]", key)
}

// recallStatus is the transient status text shown while details are read.
func recallStatus(key string) string {
	return fmt.Sprintf("reading detail archive for %s…", key)
}
