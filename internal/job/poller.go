package job

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nimbuslabs/nimbus/internal/errors"
	"github.com/nimbuslabs/nimbus/internal/logger"
)

// Default polling parameters. The server does not advertise an interval, so a
// fixed one is used; both values are constructor options for tests.
const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 10 * time.Minute
)

// Client is the subset of the control panel API the poller needs.
type Client interface {
	// CreateDump requests a new dump job for the given environment and
	// service prefix.
	CreateDump(ctx context.Context, environment, prefix string) (*SyncJob, error)

	// CreateImport requests a new import job. The returned job carries the
	// upload URL for the dump artifact.
	CreateImport(ctx context.Context, environment, prefix string) (*SyncJob, error)

	// StartImport tells the server the artifact is uploaded and the import
	// may begin.
	StartImport(ctx context.Context, jobID string) error

	// JobStatus fetches the current state of a job.
	JobStatus(ctx context.Context, jobID string) (*SyncJob, error)
}

// errNotReady signals the retry loop that the job is still in flight.
var errNotReady = stderrors.New("job not ready yet")

// Poller requests dump/import jobs and polls them until they are ready.
// Polling is a blocking wait at a fixed interval; the timer is injectable so
// tests can drive the loop without sleeping.
type Poller struct {
	client   Client
	interval time.Duration
	timeout  time.Duration
	timer    backoff.Timer
	log      logger.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the fixed poll interval.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithTimeout overrides the overall wait deadline.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

// WithTimer injects the timer used between polls. Tests pass a timer that
// fires immediately.
func WithTimer(t backoff.Timer) Option {
	return func(p *Poller) { p.timer = t }
}

// WithLogger sets the poller's logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// NewPoller creates a poller bound to an API client.
func NewPoller(client Client, opts ...Option) *Poller {
	p := &Poller{
		client:   client,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		log:      logger.NewEnvLogger("[job]"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestDump issues exactly one dump creation call.
func (p *Poller) RequestDump(ctx context.Context, environment, prefix string) (*SyncJob, error) {
	p.log.Debug("requesting dump for %s/%s", environment, prefix)
	return p.client.CreateDump(ctx, environment, prefix)
}

// RequestImport issues exactly one import creation call.
func (p *Poller) RequestImport(ctx context.Context, environment, prefix string) (*SyncJob, error) {
	p.log.Debug("requesting import for %s/%s", environment, prefix)
	return p.client.CreateImport(ctx, environment, prefix)
}

// StartImport marks an import job's artifact as uploaded.
func (p *Poller) StartImport(ctx context.Context, j *SyncJob) error {
	return p.client.StartImport(ctx, j.ID)
}

// Poll performs a single status check.
func (p *Poller) Poll(ctx context.Context, j *SyncJob) (*SyncJob, error) {
	return p.client.JobStatus(ctx, j.ID)
}

// WaitUntilReady polls the job at a fixed interval until it reports ready,
// fails, or the timeout elapses. The returned job carries the download or
// upload URL when ready.
func (p *Poller) WaitUntilReady(ctx context.Context, j *SyncJob) (*SyncJob, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var result *SyncJob
	operation := func() error {
		latest, err := p.Poll(ctx, j)
		if err != nil {
			// A poll error is not something more polling will fix.
			return backoff.Permanent(err)
		}

		switch latest.Status {
		case StatusReady:
			result = latest
			return nil
		case StatusFailed, StatusExpired:
			msg := latest.Message
			if msg == "" {
				msg = string(latest.Status)
			}
			return backoff.Permanent(errors.New(errors.ErrJobFailed,
				fmt.Sprintf("Remote job %s did not complete", j.ID),
				"Server said: "+msg))
		default:
			p.log.Debug("job %s still %s", j.ID, latest.Status)
			return errNotReady
		}
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.interval), ctx)
	err := backoff.RetryNotifyWithTimer(operation, b, nil, p.timer)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, errNotReady) {
			return nil, errors.New(errors.ErrJobTimeout,
				fmt.Sprintf("Remote job %s was not ready after %s", j.ID, p.timeout),
				"The server may be under load, try again later")
		}
		if stderrors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, err
	}

	return result, nil
}
