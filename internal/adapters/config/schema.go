package config

import (
	"strings"

	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// WorkflowDTO represents the structure of a workflow file.
type WorkflowDTO struct {
	Name string             `yaml:"name"`
	On   *TriggerDTO        `yaml:"on"`
	Env  map[string]string  `yaml:"env"`
	Jobs map[string]*JobDTO `yaml:"jobs"`
}

// JobDTO represents a job definition in a workflow file.
type JobDTO struct {
	Needs    StringList        `yaml:"needs"`
	Strategy *StrategyDTO      `yaml:"strategy"`
	Env      map[string]string `yaml:"env"`
	Steps    []*StepDTO        `yaml:"steps"`
}

// StrategyDTO represents a job's matrix strategy.
type StrategyDTO struct {
	Matrix      map[string]StringList `yaml:"matrix"`
	FailFast    *bool                 `yaml:"fail-fast"`
	MaxParallel int                   `yaml:"max-parallel"`
}

// StepDTO represents a step definition. Exactly one of run, checkout, cache,
// or setup must be set.
type StepDTO struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	If         string            `yaml:"if"`
	Env        map[string]string `yaml:"env"`
	WorkingDir string            `yaml:"working-directory"`
	Shell      string            `yaml:"shell"`
	Run        string            `yaml:"run"`
	Checkout   *CheckoutDTO      `yaml:"checkout"`
	Cache      *CacheDTO         `yaml:"cache"`
	Setup      map[string]string `yaml:"setup"`
}

// CheckoutDTO configures a builtin checkout step.
type CheckoutDTO struct {
	Ref   string `yaml:"ref"`
	LFS   bool   `yaml:"lfs"`
	Clean bool   `yaml:"clean"`
}

// CacheDTO configures a builtin cache step.
type CacheDTO struct {
	Paths       KeyList `yaml:"paths"`
	Key         string  `yaml:"key"`
	RestoreKeys KeyList `yaml:"restore-keys"`
}

// TriggerDTO accepts the three trigger forms: "on: push", "on: [push]", and
// "on: {push: {branches: [...], tags: [...]}}".
type TriggerDTO struct {
	Push *PushFilterDTO
}

// PushFilterDTO narrows push triggers by branch or tag patterns.
type PushFilterDTO struct {
	Branches []string `yaml:"branches"`
	Tags     []string `yaml:"tags"`
}

// UnmarshalYAML decodes whichever trigger form the workflow uses.
func (t *TriggerDTO) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var event string
		if err := value.Decode(&event); err != nil {
			return err
		}
		return t.addEvent(event, nil)
	case yaml.SequenceNode:
		var events []string
		if err := value.Decode(&events); err != nil {
			return err
		}
		for _, event := range events {
			if err := t.addEvent(event, nil); err != nil {
				return err
			}
		}
		return nil
	case yaml.MappingNode:
		for i := 0; i < len(value.Content)-1; i += 2 {
			if err := t.addEvent(value.Content[i].Value, value.Content[i+1]); err != nil {
				return err
			}
		}
		return nil
	default:
		return zerr.New("invalid trigger definition")
	}
}

func (t *TriggerDTO) addEvent(event string, value *yaml.Node) error {
	if event != "push" {
		return zerr.With(zerr.New("unsupported trigger event"), "event", event)
	}

	filter := &PushFilterDTO{}
	if value != nil && value.Tag != "!!null" {
		if err := strictDecode(value, filter); err != nil {
			return err
		}
	}
	t.Push = filter
	return nil
}

// StringList accepts either a single scalar or a sequence of scalars.
type StringList []string

// UnmarshalYAML decodes the scalar-or-sequence forms.
func (s *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var one string
		if err := value.Decode(&one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*s = many
		return nil
	default:
		return zerr.New("expected a string or a list of strings")
	}
}

// KeyList accepts a sequence of entries or a block scalar holding one entry
// per line.
type KeyList []string

// UnmarshalYAML decodes the block-or-sequence forms.
func (k *KeyList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var block string
		if err := value.Decode(&block); err != nil {
			return err
		}
		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				*k = append(*k, line)
			}
		}
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*k = many
		return nil
	default:
		return zerr.New("expected a list or a block of lines")
	}
}
