package attendance

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mahudhurio/core"
)

var (
	attStatusTag  = "attstatus"
	attStatusText = fmt.Sprintf("status must be one of: %s, %s, %s, %s", StatusPresent, StatusExcused, StatusSick, StatusAbsent)

	attMethodTag  = "attmethod"
	attMethodText = fmt.Sprintf("method must be %s or %s", MethodScanner, MethodManual)
)

func init() {
	_ = core.Validate.RegisterValidation(attStatusTag, attStatusValidation)
	core.RegisterCustomTranslation(attStatusTag, attStatusText)

	_ = core.Validate.RegisterValidation(attMethodTag, attMethodValidation)
	core.RegisterCustomTranslation(attMethodTag, attMethodText)
}

func attStatusValidation(fl validator.FieldLevel) bool {
	return Status(fl.Field().String()).IsValid()
}

func attMethodValidation(fl validator.FieldLevel) bool {
	return Method(fl.Field().String()).IsValid()
}
