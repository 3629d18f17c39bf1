package service

import (
	"errors"

	"github.com/mmynk/dailyexpenses/internal/apperr"
	"github.com/mmynk/dailyexpenses/internal/storage"
)

// notFound translates storage.ErrNotFound into an *apperr.NotFoundError
// naming resource and id. Other errors pass through unchanged.
func notFound(err error, resource, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound(resource, id)
	}
	return err
}
