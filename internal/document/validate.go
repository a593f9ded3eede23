package document

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// InitInput is the input accepted when a session is initialized.
type InitInput struct {
	ProjectName  string   `validate:"required"`
	Requirements []string `validate:"required,min=1,dive,required"`
}

// ValidateInit trims the project name and each requirement and checks that
// none of them is empty or invalid UTF-8. It returns the trimmed input on success.
//
// Requirements are not filtered: a blank entry is an error, not something to
// drop silently. Use [ParseRequirements] to turn free text into lines first.
func ValidateInit(projectName string, requirements []string) (InitInput, error) {
	in := InitInput{
		ProjectName: strings.TrimSpace(projectName),
	}
	if requirements != nil {
		in.Requirements = make([]string, len(requirements))
		for i, r := range requirements {
			in.Requirements[i] = strings.TrimSpace(r)
		}
	}

	if err := validate.Struct(in); err != nil {
		return InitInput{}, describe(err)
	}
	if !utf8.ValidString(in.ProjectName) {
		return InitInput{}, errors.New("project name is not valid UTF-8")
	}
	for i, r := range in.Requirements {
		if !utf8.ValidString(r) {
			return InitInput{}, fmt.Errorf("requirement %d is not valid UTF-8", i+1)
		}
	}
	return in, nil
}

// ParseRequirements splits free text into requirement lines, trimming each
// line and dropping blank ones.
func ParseRequirements(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// describe turns validator errors into a short message naming the first
// failing field.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.StructField() {
	case "ProjectName":
		return errors.New("project name is required")
	case "Requirements":
		return errors.New("at least one requirement is required")
	}
	if strings.HasPrefix(fe.StructNamespace(), "InitInput.Requirements[") {
		return fmt.Errorf("requirements%s is empty", strings.TrimPrefix(fe.Field(), "Requirements"))
	}
	return fmt.Errorf("%s failed %s", fe.Field(), fe.Tag())
}
