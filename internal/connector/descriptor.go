package connector

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/maxdata-sh/max/internal/schema"
	maxerrors "github.com/maxdata-sh/max/pkg/errors"
)

var errBadDeclaration = maxerrors.Define(
	"connector.bad_declaration",
	"connector declaration is unusable: {cause}",
	maxerrors.BadInput,
)

var declValidate = validator.New(validator.WithRequiredStructEnabled())

// Declaration is the YAML document a connector ships to describe itself:
// identity, schema, and onboarding steps.
type Declaration struct {
	Connector  Descriptor       `yaml:"connector" validate:"required"`
	Schema     schema.Schema    `yaml:"schema" validate:"required"`
	Onboarding []OnboardingStep `yaml:"onboarding,omitempty"`
}

// ParseDeclaration decodes and validates a declaration document.
func ParseDeclaration(data []byte) (*Declaration, error) {
	var decl Declaration
	if err := yaml.Unmarshal(data, &decl); err != nil {
		return nil, errBadDeclaration.Wrap(err, nil)
	}
	if err := declValidate.Struct(&decl); err != nil {
		return nil, errBadDeclaration.Wrap(err, nil)
	}
	if err := decl.Schema.Validate(); err != nil {
		return nil, err
	}
	return &decl, nil
}

// LoadDeclaration reads a declaration document from disk.
func LoadDeclaration(path string) (*Declaration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errBadDeclaration.Wrap(err, nil)
	}
	return ParseDeclaration(data)
}
