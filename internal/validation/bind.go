package validation

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// BindAndValidate binds JSON body into `out` and runs validation.
// If validation fails, it writes a 400 response and returns an error for the handler to short-circuit.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid_request_body",
			"msg":   err.Error(),
		})
		return err
	}

	if err := v.Struct(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

// WriteFormError renders a FormError the same way BindAndValidate renders
// tag failures.
func WriteFormError(c *gin.Context, err error) bool {
	var fe *FormError
	if !errors.As(err, &fe) {
		return false
	}
	fields := make(map[string]string, len(fe.Fields))
	for _, f := range fe.Fields {
		fields[f.Field] = f.Message
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error":    "validation_failed",
		"fields":   fields,
		"messages": fe.Messages(),
	})
	return true
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			if msg, ok := messages[fe.Field()]; ok {
				out[fe.Field()] = msg
				continue
			}
			out[fe.Field()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
