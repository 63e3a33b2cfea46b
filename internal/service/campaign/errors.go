package campaign

import (
	"fmt"

	"github.com/ignite/campaign-dispatch/internal/domain"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound = fmt.Errorf("campaign %w", domain.ErrNotFound)
)
