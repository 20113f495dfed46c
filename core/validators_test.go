package core

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string `json:"name" validate:"required,notblank"`
	Term   string `json:"term" validate:"oneof=term1 term2 term3"`
	Handle string `json:"handle" validate:"omitempty,alphanum_"`
}

func TestInitValidators(t *testing.T) {
	translator := NewTranslator()
	validate := validator.New()
	InitValidators(validate, translator)

	translate := func(s sample) map[string]string {
		err := validate.Struct(s)
		require.Error(t, err)
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		msgs := make(map[string]string, len(vErrs))
		for _, vErr := range vErrs {
			msgs[vErr.Field()] = vErr.Translate(translator)
		}
		return msgs
	}

	assert.Equal(t, map[string]string{
		"name":   "this field is required",
		"term":   "must be one of: term1 term2 term3",
		"handle": alphaNumUnderText,
	}, translate(sample{Term: "term9", Handle: "no-dashes!"}))

	assert.Equal(t, map[string]string{"name": notBlankText}, translate(sample{Name: "   ", Term: "term2"}))
}

func TestRegisterCustomTranslation(t *testing.T) {
	translator := NewTranslator()
	validate := validator.New()
	InitValidators(validate, translator)

	type ranked struct {
		Rank int `json:"rank" validate:"max=3"`
	}
	RegisterCustomTranslation(validate, translator, "max", "{0} is too high", true)
	vErrs := validate.Struct(ranked{Rank: 4}).(validator.ValidationErrors)
	assert.Equal(t, "rank is too high", vErrs[0].Translate(translator))

	RegisterParamTranslation(validate, translator, "max", "must be {0} at most", true)
	vErrs = validate.Struct(ranked{Rank: 4}).(validator.ValidationErrors)
	assert.Equal(t, "must be 3 at most", vErrs[0].Translate(translator))

	assert.Panics(t, func() {
		RegisterCustomTranslation(validate, translator, "min", "below {1}", true)
	})
	assert.Panics(t, func() {
		RegisterCustomTranslation(validate, translator, alphaNumUnderTag, "again")
	}, "conflicting translation without override")
}
