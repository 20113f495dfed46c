package announcement

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/edufam/edufam/core"
	"github.com/edufam/edufam/core/user"
)

var (
	audienceTag  = "audience"
	audienceText = "{0} must hold roles or role groups (admin:, staff:, parent:)"

	roleGroups = []string{user.RoleAdmin, user.RoleStaff, user.RoleParent}
)

// InitValidators registers the announcement validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(audienceTag, audienceValidation)
	core.RegisterCustomTranslation(validate, translator, audienceTag, audienceText)
}

// audienceValidation accepts a role of a school or a role group.
func audienceValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	if role == user.RolePlatformAdmin {
		return false
	}
	return core.ContainsString(user.AllRoles, role) || core.ContainsString(roleGroups, role)
}
