package character

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// LoadProfile reads a YAML character card:
//
//	name: Mio
//	description: childhood friend
//	system_prompt: You are Mio...
//	memories:
//	  - date: 2023-05-10
//	    summary: Watched a movie together
//	    mood: happy
//	refined_memories:
//	  2023-05: First date month.
//
// The returned profile is normalized and validated.
func LoadProfile(r io.Reader) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("character: parse card: %w", err)
	}
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
