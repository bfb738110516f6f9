package documents

import "errors"

var (
	ErrInvalidCategory   = errors.New("invalid document category")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidFileName   = errors.New("invalid file name")
	ErrDuplicateDocument = errors.New("document already exists for this employee and category")
	ErrInvalidID         = errors.New("invalid document id")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrFileMissing       = errors.New("document file missing from storage")
)
