package errors_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
)

type ValidationTestSuite struct {
	suite.Suite
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationTestSuite))
}

func (s *ValidationTestSuite) TestMessageKeepsOrder() {
	err := errors.NewValidationBuilder().
		RequiredField("name").
		Fieldf("level", "must be at least %d", 1).
		InvalidField("hp", "must be positive").
		Build()

	s.Require().Error(err)
	s.Assert().Equal(
		"validation failed: name: is required; level: must be at least 1; hp: is invalid: must be positive",
		errors.GetMessage(err),
	)
}

func (s *ValidationTestSuite) TestNoErrors() {
	vb := errors.NewValidationBuilder()
	s.Assert().False(vb.HasErrors())
	s.Assert().Nil(vb.Build())
}

func (s *ValidationTestSuite) TestValidateSheetFields() {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("name", "  ", vb)
	errors.ValidateRange("strength", 31, 1, 30, vb)
	errors.ValidateRange("dexterity", 14, 1, 30, vb)
	errors.ValidateEnum("format", "toml", []string{"json", "yaml"}, vb)

	err := vb.Build()
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))

	fields, ok := errors.GetMeta(err)[errors.MetaFields].(map[string][]string)
	s.Require().True(ok)
	s.Assert().Equal([]string{"is required"}, fields["name"])
	s.Assert().Equal([]string{"must be between 1 and 30"}, fields["strength"])
	s.Assert().Equal([]string{"must be one of: json, yaml"}, fields["format"])
	s.Assert().NotContains(fields, "dexterity")
}
