package dcstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/dcstore/blobstore"
	"github.com/hupe1980/dcstore/errs"
)

// Sentinels re-exported from package errs. Match with errors.Is.
var (
	ErrNotFound                = errs.ErrNotFound
	ErrAlreadyExists           = errs.ErrAlreadyExists
	ErrInvalidName             = errs.ErrInvalidName
	ErrShapeMismatch           = errs.ErrShapeMismatch
	ErrTypeMismatch            = errs.ErrTypeMismatch
	ErrStructuralVersionTooOld = errs.ErrStructuralVersionTooOld
	ErrAmbiguous               = errs.ErrAmbiguous
	ErrCorrupt                 = errs.ErrCorrupt
	ErrInvalidArgument         = errs.ErrInvalidArgument
)

// Error is the categorized error type returned by every package.
type Error = errs.Error

// Code is the stable numeric code of an Error.
type Code = errs.Code

// CodeOf returns the stable code of err.
func CodeOf(err error) Code { return errs.CodeOf(err) }

func translateError(err error) error {
	if err == nil {
		return nil
	}
	// Already categorized.
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	// Missing blobs and missing local files.
	if errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
