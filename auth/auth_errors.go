package auth

import (
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-auth-sessions/internal/errors"
)

// AccountLockedError is returned while an email is over the failed login
// threshold. It matches apperrors.ErrAccountLocked.
type AccountLockedError struct {
	RetryAfter time.Duration // Remaining lockout, zero when unknown
}

func (e *AccountLockedError) Error() string {
	if e.RetryAfter <= 0 {
		return apperrors.ErrAccountLocked.Error()
	}
	return fmt.Sprintf("%s: retry after %ds", apperrors.ErrAccountLocked, int64(e.RetryAfter/time.Second))
}

func (e *AccountLockedError) Is(target error) bool {
	return target == apperrors.ErrAccountLocked
}
