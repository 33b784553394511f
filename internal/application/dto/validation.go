package dto

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/turtacn/taskflow/internal/domain/models"
)

var registerOnce sync.Once

// RegisterValidators 向 gin 的校验引擎注册自定义标签
// Registers the "priority" tag used by the task DTOs. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		err = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
			return models.Priority(fl.Field().String()).Valid()
		})
	})
	return err
}

// ValidationDetails flattens validator errors into field -> tag pairs.
func ValidationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}
