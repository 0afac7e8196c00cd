package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Separator is a key or namespace separator. Setting it to false in the
// config file disables it, so keys are taken literally.
type Separator struct {
	Value    string
	Disabled bool
}

// Sep returns an enabled separator.
func Sep(s string) Separator { return Separator{Value: s} }

// String returns the separator, or "" when disabled.
func (s Separator) String() string {
	if s.Disabled {
		return ""
	}
	return s.Value
}

func (s *Separator) set(v interface{}) error {
	switch v := v.(type) {
	case bool:
		if v {
			return fmt.Errorf("separator must be a string or false")
		}
		*s = Separator{Disabled: true}
	case string:
		*s = Separator{Value: v, Disabled: v == ""}
	default:
		return fmt.Errorf("separator must be a string or false, got %T", v)
	}
	return nil
}

func (s *Separator) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	return s.set(v)
}

func (s *Separator) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return s.set(v)
}

func (s *Separator) UnmarshalTOML(v interface{}) error {
	return s.set(v)
}

func (s Separator) MarshalYAML() (interface{}, error) {
	if s.Disabled {
		return false, nil
	}
	return s.Value, nil
}

func (s Separator) MarshalJSON() ([]byte, error) {
	if s.Disabled {
		return []byte("false"), nil
	}
	return json.Marshal(s.Value)
}

func (s Separator) MarshalTOML() ([]byte, error) {
	return s.MarshalJSON()
}

// Indentation is written as a number of spaces or as "tab" / "\t".
type Indentation string

func (in *Indentation) set(v interface{}) error {
	switch v := v.(type) {
	case int:
		return in.spaces(int64(v))
	case int64:
		return in.spaces(v)
	case float64:
		return in.spaces(int64(v))
	case string:
		switch strings.ToLower(v) {
		case "tab", "\t":
			*in = "\t"
		case "":
			*in = ""
		default:
			if strings.Trim(v, " ") != "" {
				return fmt.Errorf("indentation %q must be spaces, a tab or a number", v)
			}
			*in = Indentation(v)
		}
	default:
		return fmt.Errorf("indentation must be a number or string, got %T", v)
	}
	return nil
}

func (in *Indentation) spaces(n int64) error {
	if n < 0 || n > 16 {
		return fmt.Errorf("indentation %d out of range", n)
	}
	*in = Indentation(strings.Repeat(" ", int(n)))
	return nil
}

func (in *Indentation) UnmarshalYAML(n *yaml.Node) error {
	var v interface{}
	if err := n.Decode(&v); err != nil {
		return err
	}
	return in.set(v)
}

func (in *Indentation) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return in.set(v)
}

func (in *Indentation) UnmarshalTOML(v interface{}) error {
	return in.set(v)
}
