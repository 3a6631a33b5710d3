package repository

import (
	"errors"

	"github.com/lib/pq"
	"github.com/user/miroku/internal/apperr"
	"gorm.io/gorm"
)

// uniqueViolation postgres 唯一约束冲突错误码
const uniqueViolation = "23505"

// translate 把 gorm / 驱动错误转换为业务错误
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("%s不存在", what)
	}
	if isDuplicate(err) {
		return apperr.Conflict("%s已存在", what)
	}
	return err
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}
