package paceman

import (
	"context"

	"github.com/jose-valero/paceman-pings/internal/domain"
)

// Handler recibe cada record del feed. Un error solo se loguea: el feed sigue.
type Handler func(ctx context.Context, rec domain.Record) error
