package account

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"kmc/guildbook/directory"

	"github.com/go-playground/validator/v10"
	"github.com/mordilloSan/go-logger/logger"
)

// EntryWriter is the directory side of provisioning.
type EntryWriter interface {
	DomainSID(ctx context.Context) (string, error)
	EntryDN(uid string) string
	AddEntry(ctx context.Context, dn string, attrs []directory.Attribute, bindUID, bindPassword string) error
}

// Recorder keeps a trail of created accounts.
type Recorder interface {
	Record(ctx context.Context, entry *Entry, createdBy string) error
}

type Metrics interface {
	ObserveLockWait(d time.Duration)
}

const recordTimeout = 10 * time.Second

type Settings struct {
	MailDomain  string
	HomeRoot    string
	LoginShell  string
	GIDNumber   int
	LockTimeout time.Duration // zero waits as long as ctx allows
}

func DefaultSettings() Settings {
	return Settings{
		MailDomain:  "kmc.gr.jp",
		HomeRoot:    "/home",
		LoginShell:  "/bin/bash",
		GIDNumber:   200,
		LockTimeout: 30 * time.Second,
	}
}

type Provisioner struct {
	settings  Settings
	checker   Checker
	allocator IDAllocator
	hasher    Hasher
	directory EntryWriter
	lock      Lock
	recorder  Recorder
	metrics   Metrics
	validate  *validator.Validate
	now       func() time.Time
}

type Option func(*Provisioner)

func WithRecorder(r Recorder) Option {
	return func(p *Provisioner) { p.recorder = r }
}

func WithMetrics(m Metrics) Option {
	return func(p *Provisioner) { p.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) { p.now = now }
}

// NewProvisioner wires the provisioning workflow. lock must be the single
// process-wide instance shared by every provisioner writing to the same
// directory.
func NewProvisioner(
	settings Settings,
	checker Checker,
	allocator IDAllocator,
	hasher Hasher,
	dir EntryWriter,
	lock Lock,
	opts ...Option,
) *Provisioner {
	p := &Provisioner{
		settings:  settings,
		checker:   checker,
		allocator: allocator,
		hasher:    hasher,
		directory: dir,
		lock:      lock,
		validate:  newRequestValidator(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Provision validates req and creates the account it describes. Every failure
// is returned as-is; nothing is retried.
func (p *Provisioner) Provision(ctx context.Context, req NewAccountRequest) (*Entry, error) {
	if err := validateRequest(p.validate, req); err != nil {
		return nil, err
	}
	if req.Password != req.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}
	if err := ValidatePassword(req.Password); err != nil {
		return nil, err
	}
	if err := p.checker.Check(ctx, req.UID); err != nil {
		return nil, err
	}

	unixHash, ntHash, err := p.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	domainSID, err := p.directory.DomainSID(ctx)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		DN:            p.directory.EntryDN(req.UID),
		UID:           req.UID,
		CommonName:    req.GivenName + " " + req.Surname,
		Surname:       req.Surname,
		GivenName:     req.GivenName,
		UserPassword:  unixHash,
		GIDNumber:     p.settings.GIDNumber,
		HomeDirectory: path.Join(p.settings.HomeRoot, req.UID),
		LoginShell:    p.settings.LoginShell,
		Mail:          req.UID + "@" + p.settings.MailDomain,
		AcctFlags:     RegularUserFlags,
		NTPassword:    ntHash,
		PwdLastSet:    p.now().Unix(),
	}

	if err := p.allocateAndAdd(ctx, entry, domainSID, req.BindUID, req.BindPassword); err != nil {
		return nil, err
	}

	if p.recorder != nil {
		// the account exists now; record it even if the client went away
		recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
		defer cancel()
		if err := p.recorder.Record(recordCtx, entry, req.BindUID); err != nil {
			logger.Warnf("failed to record creation of %s: %v", entry.UID, err)
		}
	}

	return entry, nil
}

// allocateAndAdd holds the lock from reading the current maximum identifiers
// until the entry using the next ones has been written.
func (p *Provisioner) allocateAndAdd(ctx context.Context, entry *Entry, domainSID, bindUID, bindPassword string) error {
	lockCtx := ctx
	if p.settings.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, p.settings.LockTimeout)
		defer cancel()
	}

	start := time.Now()
	if err := p.lock.Acquire(lockCtx); err != nil {
		return fmt.Errorf("failed to acquire provisioning lock: %w", err)
	}
	defer p.lock.Release()
	if p.metrics != nil {
		p.metrics.ObserveLockWait(time.Since(start))
	}

	ids, err := p.allocator.Allocate(ctx, domainSID)
	if err != nil {
		return err
	}
	entry.UIDNumber = ids.UIDNumber
	entry.SambaSID = directory.JoinRID(domainSID, ids.RID)

	logger.InfoKV("adding account", "dn", entry.DN, "attributes", entry.Redacted())

	err = p.directory.AddEntry(ctx, entry.DN, entry.Attributes(), bindUID, bindPassword)
	if errors.Is(err, directory.ErrEntryExists) {
		return &CollisionError{Source: SourceDirectory, UID: entry.UID, Location: "LDAP"}
	}
	return err
}
