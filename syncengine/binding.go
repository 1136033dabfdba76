package syncengine

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"bitbucket.org/mmdatafocus/register_backend/models"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("paymentmethod", validPaymentMethod)
	}
}

func validPaymentMethod(fl validator.FieldLevel) bool {
	_, err := models.ParsePaymentMethod(fl.Field().String())
	return err == nil
}
