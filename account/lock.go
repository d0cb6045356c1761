package account

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Lock serialises identifier allocation and the entry write that follows.
type Lock interface {
	Acquire(ctx context.Context) error
	Release()
}

// ProvisionLock is a mutex whose acquisition can be abandoned through ctx.
// One instance lives for the whole process and is shared by every provisioner.
type ProvisionLock struct {
	sem *semaphore.Weighted
}

func NewLock() *ProvisionLock {
	return &ProvisionLock{sem: semaphore.NewWeighted(1)}
}

func (l *ProvisionLock) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

func (l *ProvisionLock) Release() {
	l.sem.Release(1)
}
