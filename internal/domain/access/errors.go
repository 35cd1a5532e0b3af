package access

import "errors"

var (
	// ErrNotFound covers both "document does not exist" and "document exists
	// but the actor is not authorized to read it". The two cases are
	// deliberately indistinguishable so that access checks cannot be used as
	// an existence oracle. All denial paths funnel through this one value.
	ErrNotFound = errors.New("document not found")

	// ErrForbidden means the actor was identified and the entity found, but
	// the actor lacks the specific authority the operation requires.
	ErrForbidden = errors.New("operation not permitted")

	// ErrGrantNotFound is returned for lookups of a nonexistent grant id.
	ErrGrantNotFound = errors.New("access grant not found")

	// ErrAlreadyGranted is returned when an active grant already exists for
	// the same (document, subject type, subject id) tuple.
	ErrAlreadyGranted = errors.New("subject already holds an active grant for this document")

	// ErrAlreadyRevoked is returned when revoking a grant that is already
	// revoked. Revocation is not idempotent by design.
	ErrAlreadyRevoked = errors.New("access grant is already revoked")

	// ErrImplicitGrantee is returned when a grant names the document's origin
	// authority as subject. Implicit access cannot be layered with a
	// revocable grant without making the primary authority ambiguous.
	ErrImplicitGrantee = errors.New("subject already has implicit access as the document's origin authority")
)
