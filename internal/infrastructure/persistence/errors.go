package persistence

import (
	"errors"
	"fmt"

	"github.com/eo-nwanze/lavish-sub000/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM errors onto the shared domain errors
func translateError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", shared.ErrAlreadyExists, err)
	default:
		return err
	}
}

func pageOf(page, pageSize int) (limit, offset int) {
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}
	return pageSize, (page - 1) * pageSize
}
