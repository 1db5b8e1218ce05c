package store

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// DoInTx runs fn inside a database transaction. The transaction is rolled
// back when fn returns an error or panics; fn's error is returned unwrapped
// so callers can match domain sentinels.
func DoInTx(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.Begin()
	if tx.Error != nil {
		return errors.Wrap(tx.Error, "begin transaction")
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	return nil
}
