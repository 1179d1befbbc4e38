// Package locale renders session replies to user-facing copy. The catalog is
// embedded in the binary.
package locale

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/m3rciful/dreambot/internal/profile"
	"github.com/m3rciful/dreambot/internal/reading"
	"github.com/m3rciful/dreambot/internal/session"
	"github.com/m3rciful/dreambot/internal/tarot"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the parsed copy.
type Catalog struct {
	Prompts      map[string]string `yaml:"prompts"`
	Invalid      map[string]string `yaml:"invalid"`
	Working      map[string]string `yaml:"working"`
	Headers      map[string]string `yaml:"headers"`
	Menu         map[string]string `yaml:"menu"`
	Genders      map[string]string `yaml:"genders"`
	Orientations map[string]string `yaml:"orientations"`
	Commands     map[string]string `yaml:"commands"`

	menuChoices map[string]string
}

// menuOrder pairs menu keys with the choice they send, in keyboard order.
var menuOrder = []struct {
	key    string
	choice string
}{
	{"dream", session.ChoiceFlow(reading.FlowDream)},
	{"coffee", session.ChoiceFlow(reading.FlowCoffee)},
	{"tarot", session.ChoiceFlow(reading.FlowTarot)},
	{"help", session.NavHelp},
	{"home", session.NavHome},
	{"reset", session.NavReset},
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("locale: parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.menuChoices = make(map[string]string, len(menuOrder))
	for _, m := range menuOrder {
		c.menuChoices[normalize(c.Menu[m.key])] = m.choice
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []error
	for _, p := range session.Prompts() {
		if _, ok := c.Prompts[p.String()]; !ok {
			errs = append(errs, fmt.Errorf("locale: missing prompt %q", p))
		}
	}
	for _, m := range menuOrder {
		if strings.TrimSpace(c.Menu[m.key]) == "" {
			errs = append(errs, fmt.Errorf("locale: missing menu label %q", m.key))
		}
	}
	for _, g := range profile.Genders {
		if c.Genders[string(g)] == "" {
			errs = append(errs, fmt.Errorf("locale: missing gender label %q", g))
		}
	}
	if c.Invalid["default"] == "" {
		errs = append(errs, errors.New("locale: missing invalid.default"))
	}
	return errors.Join(errs...)
}

// Text renders one reply.
func (c *Catalog) Text(r session.Reply) string {
	key := r.Prompt.String()
	var body string
	switch r.Prompt {
	case session.PromptReading:
		body = strings.TrimSpace(r.Text)
		if h := c.Headers[string(r.Flow)]; h != "" {
			body = h + "\n\n" + body
		}
	case session.PromptWorking:
		body = c.Working[string(r.Flow)]
		if body == "" {
			body = c.Prompts[key]
		}
	default:
		body = c.Prompts[key]
	}
	if r.Invalid {
		prefix := c.Invalid[key]
		if prefix == "" {
			prefix = c.Invalid["default"]
		}
		body = prefix + "\n" + body
	}
	return body
}

// Label returns the button text for a choice id.
func (c *Catalog) Label(choice string) string {
	ns, value := session.SplitChoice(choice)
	switch ns {
	case "gender":
		if l := c.Genders[value]; l != "" {
			return l
		}
	case "month":
		if n, err := strconv.Atoi(value); err == nil && n >= 1 && n <= len(profile.Months) {
			return profile.Months[n-1].Name
		}
	case "layout":
		if l, err := tarot.LayoutByID(value); err == nil {
			return l.Mystic
		}
	}
	for _, m := range menuOrder {
		if m.choice == choice {
			return c.Menu[m.key]
		}
	}
	return value
}

// Caption renders a tarot card caption.
func (c *Catalog) Caption(card tarot.DrawnCard) string {
	o := c.Orientations[string(card.Orientation)]
	if o == "" {
		return card.Label()
	}
	return fmt.Sprintf("%s (%s)", card.Name(), o)
}

// Command returns the command-menu description for name, without the slash.
func (c *Catalog) Command(name string) string {
	name = strings.TrimPrefix(name, "/")
	if d := c.Commands[name]; d != "" {
		return d
	}
	return name
}

// MenuRows is the persistent main keyboard layout.
func (c *Catalog) MenuRows() [][]string {
	l := func(i int) string { return c.Menu[menuOrder[i].key] }
	return [][]string{
		{l(0), l(1)},
		{l(2)},
		{l(3), l(4), l(5)},
	}
}

// MenuChoice maps a reply-keyboard text back to its choice id.
func (c *Catalog) MenuChoice(text string) (string, bool) {
	choice, ok := c.menuChoices[normalize(text)]
	return choice, ok
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
