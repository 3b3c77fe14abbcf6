// Package repository implements the booking stores on Postgres through gorm.
package repository

import (
	"errors"

	"github.com/anjiri1684/marketplace_booking/models"
	"gorm.io/gorm"
)

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ErrNotFound
	}
	return err
}
