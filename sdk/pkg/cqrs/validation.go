package cqrs

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator 进程级命令校验器（validator/v10，按struct tag校验）
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

// ValidateCommand 校验命令字段
// struct tag 校验失败归一化为 *ValidationError（领域拒绝，不重试），
// 再校验聚合寻址字段的完整性
func ValidateCommand(cmd Command) error {
	if cmd == nil {
		return NewValidationError("", "command is nil")
	}
	if err := Validator().Struct(cmd); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return NewValidationError(fe.Field(), "failed on rule "+fe.Tag())
		}
		return NewValidationError("", err.Error())
	}
	if err := cmd.TargetAggregateID().Validate(); err != nil {
		return NewValidationError("aggregateId", err.Error())
	}
	if cmd.TargetAggregateName() == "" {
		return NewValidationError("aggregateName", "aggregate name is required")
	}
	return nil
}
