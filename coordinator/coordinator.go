package coordinator

import (
	"context"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-fermax-cloud/cloud"
	"github.com/jrsteele09/go-fermax-cloud/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const DefaultMaxParallel = 8

// SessionClient is the part of *cloud.Client the coordinator depends on.
type SessionClient interface {
	GetPairings(ctx context.Context) ([]cloud.Pairing, error)
	GetDevice(ctx context.Context, deviceID string) (cloud.DeviceInfo, error)
	GetServices(ctx context.Context, deviceID string) cloud.Capabilities
	OpenDoor(ctx context.Context, deviceID string, block, subblock, number int) (string, error)
}

var _ SessionClient = (*cloud.Client)(nil)

// DeviceSnapshot is the last known state of one paired device.
type DeviceSnapshot struct {
	DeviceID     string             `json:"deviceId"`
	Pairing      cloud.Pairing      `json:"pairing"`
	Info         cloud.DeviceInfo   `json:"info"`
	Capabilities cloud.Capabilities `json:"capabilities"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Snapshot maps device id to its state. Published snapshots are never modified.
type Snapshot map[string]DeviceSnapshot

// Status describes the outcome of the most recent refresh cycle.
type Status struct {
	CycleID     string    `json:"cycleId,omitempty"`
	Succeeded   bool      `json:"succeeded"`
	Available   bool      `json:"available"`
	Devices     int       `json:"devices"`
	LastRefresh time.Time `json:"lastRefresh,omitempty"`
	LastSuccess time.Time `json:"lastSuccess,omitempty"`
	LastError   string    `json:"lastError,omitempty"`
}

// Coordinator owns the published device snapshot and serializes door actions against it.
type Coordinator struct {
	client      SessionClient
	logger      zerolog.Logger
	metrics     *metrics.Collector
	backoff     *cloud.Backoff
	maxParallel int
	nowFunc     func() time.Time

	cycles       singleflight.Group
	seq          atomic.Uint64
	publishedSeq uint64
	recordedSeq  uint64

	lock     sync.RWMutex
	snapshot Snapshot
	status   Status

	doorLock sync.Mutex
}

type Option func(*Coordinator)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithBackoff retries pairing listing and device detail fetches.
func WithBackoff(b cloud.Backoff) Option {
	return func(c *Coordinator) {
		c.backoff = &b
	}
}

// WithMaxParallel bounds the number of concurrent per-device fetches.
func WithMaxParallel(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxParallel = n
		}
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

func New(client SessionClient, options ...Option) *Coordinator {
	c := &Coordinator{
		client:      client,
		logger:      log.Logger,
		maxParallel: DefaultMaxParallel,
		nowFunc:     time.Now,
		snapshot:    Snapshot{},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// GetAllDevices returns a copy of the published snapshot.
func (c *Coordinator) GetAllDevices() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return maps.Clone(c.snapshot)
}

func (c *Coordinator) GetDeviceData(deviceID string) (DeviceSnapshot, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	device, ok := c.snapshot[deviceID]
	return device, ok
}

// LastRefreshSucceeded reports whether the most recent cycle published a snapshot.
func (c *Coordinator) LastRefreshSucceeded() bool {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.status.Succeeded
}

func (c *Coordinator) Status() Status {
	c.lock.RLock()
	defer c.lock.RUnlock()
	status := c.status
	status.Devices = len(c.snapshot)
	status.Available = len(c.snapshot) > 0
	return status
}

func (c *Coordinator) current() Snapshot {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.snapshot
}

// publish swaps in merged unless a cycle that started later has already published.
func (c *Coordinator) publish(seq uint64, merged Snapshot) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if seq < c.publishedSeq {
		return false
	}
	c.publishedSeq = seq
	c.snapshot = merged
	return true
}

// recordOutcome updates the status unless a cycle that started later has
// already published or recorded its own outcome.
func (c *Coordinator) recordOutcome(seq uint64, cycleID string, err error) {
	now := c.nowFunc()

	c.lock.Lock()
	defer c.lock.Unlock()
	if seq < c.publishedSeq || seq < c.recordedSeq {
		return
	}
	c.recordedSeq = seq
	c.status.CycleID = cycleID
	c.status.LastRefresh = now
	c.status.Succeeded = err == nil
	if err != nil {
		c.status.LastError = err.Error()
		return
	}
	c.status.LastError = ""
	c.status.LastSuccess = now
}
