package handler

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/user/miroku/internal/model"
	"github.com/user/miroku/internal/service"
)

// RegisterValidators 注册自定义校验规则，需在路由注册前调用
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("credit_role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	}); err != nil {
		return err
	}
	return v.RegisterValidation("refresh_field", func(fl validator.FieldLevel) bool {
		return service.RefreshField(fl.Field().String()).Valid()
	})
}
