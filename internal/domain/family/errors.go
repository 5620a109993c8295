package family

import "errors"

var (
	ErrUserNotFound           = errors.New("user not found")
	ErrFamilyNotFound         = errors.New("family not found")
	ErrRequestNotFound        = errors.New("request not found")
	ErrMemberNotFound         = errors.New("requested user is not a member of this family")
	ErrNotFamilyMember        = errors.New("you are not a member of this family")
	ErrAlreadyMember          = errors.New("user is already a member of this family")
	ErrRequestAlreadyResolved = errors.New("request has been processed previously")
	ErrNotFamilyAdmin         = errors.New("only the family admin can perform this action")
	ErrNotRequestInvitee      = errors.New("only the invited user can resolve this invitation")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUploadFailed           = errors.New("image upload failed")
	ErrTransactionFailed      = errors.New("transaction failed")
)

// TransactionError is returned when a multi-document write could not be
// committed. Message is safe to show to callers; the cause is logged and
// kept out of Error().
type TransactionError struct {
	Op      string
	Message string
	cause   error
}

func (e *TransactionError) Error() string {
	return e.Op + ": " + e.Message
}

func (e *TransactionError) Unwrap() error {
	return ErrTransactionFailed
}

func (e *TransactionError) Cause() error {
	return e.cause
}

type validationError struct {
	message string
}

func (e *validationError) Error() string {
	return e.message
}

func (e *validationError) Unwrap() error {
	return ErrInvalidInput
}

func invalidInput(message string) error {
	return &validationError{message: message}
}
