package account

import (
	"context"
	"fmt"
)

// IDSource reports the highest identifiers currently in use.
type IDSource interface {
	MaxUIDNumber(ctx context.Context) (int, error)
	MaxRID(ctx context.Context, domainSID string) (int, error)
}

type Identifiers struct {
	UIDNumber int
	RID       int
}

// IDAllocator hands out the next free identifiers. Callers must hold the
// provisioning Lock until the entry using them has been written.
type IDAllocator interface {
	Allocate(ctx context.Context, domainSID string) (Identifiers, error)
}

// Allocator computes max+1 for uidNumber and RID, never going below the
// configured floors. A zero floor means plain max+1.
type Allocator struct {
	source IDSource
	uidMin int
	ridMin int
}

func NewAllocator(source IDSource, uidMin, ridMin int) *Allocator {
	return &Allocator{
		source: source,
		uidMin: uidMin,
		ridMin: ridMin,
	}
}

func (a *Allocator) Allocate(ctx context.Context, domainSID string) (Identifiers, error) {
	maxUID, err := a.source.MaxUIDNumber(ctx)
	if err != nil {
		return Identifiers{}, fmt.Errorf("failed to read max uidNumber: %w", err)
	}
	maxRID, err := a.source.MaxRID(ctx, domainSID)
	if err != nil {
		return Identifiers{}, fmt.Errorf("failed to read max RID: %w", err)
	}

	return Identifiers{
		UIDNumber: max(maxUID+1, a.uidMin),
		RID:       max(maxRID+1, a.ridMin),
	}, nil
}
