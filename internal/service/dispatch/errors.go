package dispatch

import (
	"errors"
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Sentinel errors for the dispatch service layer.
var (
	ErrNoEligibleContacts = fmt.Errorf("dispatch: %w", domain.ErrNoEligibleContacts)
	ErrQuotaExceeded      = fmt.Errorf("dispatch: %w", domain.ErrQuotaExceeded)
	ErrQueueFull          = errors.New("dispatch: async queue is full")
	ErrPoolClosed         = errors.New("dispatch: async pool is shut down")
)
