package types

// Character is an office NPC profile loaded from the roster.
type Character struct {
	Name        string `json:"name" yaml:"name"`
	Title       string `json:"title" yaml:"title"`
	Location    string `json:"location" yaml:"location"`
	Activity    string `json:"activity" yaml:"activity"`
	Personality string `json:"personality" yaml:"personality"`
	Expertise   string `json:"expertise" yaml:"expertise"`
	Style       string `json:"style" yaml:"style"`
	Hobbies     string `json:"hobbies" yaml:"hobbies"`
}

// PrimaryExpertise returns the first item of the "、"-separated expertise list.
func (c Character) PrimaryExpertise() string {
	for i, r := range c.Expertise {
		if r == '、' {
			return c.Expertise[:i]
		}
	}
	return c.Expertise
}
