package config

import "fmt"

// Variable is a named value resolved from vars.txt, the environment, or its
// default. Env names the environment variable consulted when vars.txt has no
// entry.
type Variable struct {
	Name    string `hcl:"name,label"`
	Default string `hcl:"default,optional"`
	Env     string `hcl:"env,optional"`
	Secret  bool   `hcl:"secret,optional"`
}

func (v *Variable) Validate() error {
	if v.Secret && v.Default != "" {
		return fmt.Errorf("Invalid secret; Secret variable '%s' cannot have a default value set in config", v.Name)
	}
	return nil
}
