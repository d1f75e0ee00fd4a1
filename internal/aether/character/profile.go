// Package character defines the character profile: identity, system prompt
// and the tiered memory (fragments plus refined monthly summaries) the
// conversation engine draws on.
package character

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/bdobrica/aether/internal/aether/memory"
)

// ErrNameRequired is returned by Validate for a profile without a name.
var ErrNameRequired = errors.New("character: name is required")

// Profile is a character the user chats with.
type Profile struct {
	ID           string `json:"id" yaml:"id,omitempty"`
	Name         string `json:"name" yaml:"name"`
	Avatar       string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	BubbleStyle  string `json:"bubble_style,omitempty" yaml:"bubble_style,omitempty"` // chat theme id

	Memories        []memory.Fragment   `json:"memories" yaml:"memories,omitempty"`
	RefinedMemories memory.RefinedIndex `json:"refined_memories" yaml:"refined_memories,omitempty"`
}

// Normalize trims identity fields and fills in missing ids.
func (p *Profile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	for i := range p.Memories {
		if p.Memories[i].ID == "" {
			p.Memories[i].ID = uuid.New().String()
		}
	}
	if p.RefinedMemories == nil {
		p.RefinedMemories = memory.RefinedIndex{}
	}
}

// Validate checks the fields every stored profile must have.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	return nil
}
