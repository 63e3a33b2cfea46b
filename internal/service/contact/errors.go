package contact

import (
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Sentinel errors for the contact service layer.
var (
	ErrNotFound      = fmt.Errorf("contact %w", domain.ErrNotFound)
	ErrBatchNotFound = fmt.Errorf("batch %w", domain.ErrNotFound)
	ErrInvalidStatus = fmt.Errorf("%w: contact status must be active, inactive or bounced", domain.ErrInvalidInput)
)
