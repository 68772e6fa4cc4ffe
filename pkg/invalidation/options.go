package invalidation

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type Mode string

const (
	// ModeSync evicts on the publishing goroutine. Failures are logged and
	// not retried.
	ModeSync Mode = "sync"
	// ModeAsync evicts inline like ModeSync and hands failed evictions to a
	// background worker that retries them with exponential backoff.
	ModeAsync Mode = "async"
)

type Options struct {
	Mode           Mode
	QueueSize      int
	MaxAttempts    int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	JitterMax      time.Duration
	AttemptTimeout time.Duration

	Logger *logrus.Entry
	Rand   *rand.Rand
}

func (o *Options) setDefaults() {
	if o.Mode == "" {
		o.Mode = ModeSync
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 8
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	if o.JitterMax == 0 {
		o.JitterMax = 50 * time.Millisecond
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = 5 * time.Second
	}
	if o.Logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		o.Logger = logrus.NewEntry(l)
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
}
