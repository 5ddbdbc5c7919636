package services

import (
	"errors"
	"time"

	apperrors "github.com/zenpa1/budget-tracker/internal/errors"
)

// maxCommitAttempts bounds the compare-and-swap loop when a record moved
// between our read and our write.
const maxCommitAttempts = 3

func utcNow() time.Time {
	return time.Now().UTC()
}

// storeError maps a store failure onto the service error taxonomy. App
// errors pass through untouched.
func storeError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrStore, err)
}
