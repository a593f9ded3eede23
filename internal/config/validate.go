package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"stlcpilot/internal/stage"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that every configured stage name is
// a known stage.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: failed %q (value %v)", fieldPath(fe), fe.Tag(), fe.Value()))
		}
	}

	for name := range c.Stages {
		if _, ok := stage.Parse(name); !ok {
			problems = append(problems, fmt.Sprintf("stages.%s: unknown stage", name))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// fieldPath turns "Config.Generator.Provider" into "generator.provider".
func fieldPath(fe validator.FieldError) string {
	ns := strings.TrimPrefix(fe.Namespace(), "Config.")
	return strings.ToLower(ns)
}
