// Package netx acquires listening ports for the gRPC services, retrying on
// conflicts according to a bounded Policy.
package netx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"syscall"
)

// ErrBindExhausted is returned once every attempt allowed by a Policy failed.
var ErrBindExhausted = errors.New("bind attempts exhausted")

// Policy describes which ports Bind tries and when it moves on to the next one.
type Policy struct {
	Host        string
	BasePort    int
	MaxAttempts int
	// Step is added to the port after every failed attempt.
	Step int
	// RetryOn decides whether a failure is worth another attempt. Nil retries
	// every failure.
	RetryOn func(error) bool
}

// BoundedPolicy tries basePort, basePort+1, ... for attempts ports and retries
// on any failure.
func BoundedPolicy(host string, basePort, attempts int) Policy {
	return Policy{Host: host, BasePort: basePort, MaxAttempts: attempts, Step: 1}
}

// OffsetPolicy tries port and, only when it is already in use, port+10 once.
func OffsetPolicy(host string, port int) Policy {
	return Policy{Host: host, BasePort: port, MaxAttempts: 2, Step: 10, RetryOn: IsAddrInUse}
}

// IsAddrInUse reports whether err was caused by the address being taken.
func IsAddrInUse(err error) bool {
	return errors.Is(err, syscall.EADDRINUSE)
}

// Attempt records a single bind try.
type Attempt struct {
	Port        int
	Number      int
	MaxAttempts int
	Err         error
}

// Result describes a successful bind.
type Result struct {
	// Port is the port actually bound; it may differ from Policy.BasePort.
	Port     int
	Attempts []Attempt
}

type listenFunc func(ctx context.Context, network, address string) (net.Listener, error)

type options struct {
	logger *slog.Logger
	listen listenFunc
}

// Option customises Bind.
type Option func(*options)

// WithLogger logs every failed attempt on logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func withListen(fn listenFunc) Option {
	return func(o *options) { o.listen = fn }
}

// Bind obtains a TCP listener following p. Callers must use Result.Port for
// logging and registration.
func Bind(ctx context.Context, p Policy, opts ...Option) (net.Listener, Result, error) {
	var lc net.ListenConfig
	o := options{listen: lc.Listen}
	for _, opt := range opts {
		opt(&o)
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.Step == 0 {
		p.Step = 1
	}

	var result Result
	var lastErr error
	for i := 0; i < p.MaxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, result, err
		}
		port := p.BasePort + i*p.Step
		addr := net.JoinHostPort(p.Host, strconv.Itoa(port))
		lis, err := o.listen(ctx, "tcp", addr)
		attempt := Attempt{Port: port, Number: i + 1, MaxAttempts: p.MaxAttempts, Err: err}
		result.Attempts = append(result.Attempts, attempt)
		if err == nil {
			recordAttempt("bound")
			result.Port = boundPort(lis, port)
			return lis, result, nil
		}
		lastErr = err
		if o.logger != nil {
			o.logger.Warn("port unavailable", "addr", addr, "attempt", attempt.Number, "max_attempts", p.MaxAttempts, "error", err)
		}
		if p.RetryOn != nil && !p.RetryOn(err) {
			recordAttempt("fatal")
			return nil, result, fmt.Errorf("bind %s: %w", addr, err)
		}
		if i == p.MaxAttempts-1 {
			recordAttempt("exhausted")
			break
		}
		recordAttempt("retry")
	}
	return nil, result, fmt.Errorf("%w after %d attempts from port %d: %w", ErrBindExhausted, p.MaxAttempts, p.BasePort, lastErr)
}

func boundPort(lis net.Listener, requested int) int {
	if addr, ok := lis.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return requested
}
