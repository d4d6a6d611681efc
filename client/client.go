// Package client provides the gRPC client for the remote analysis service that
// classifies sentiment and generates meeting images.
// It handles connection management, retry logic, and health checking.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/otherjamesbrown/meetchat/config"
	mcerrors "github.com/otherjamesbrown/meetchat/pkg/errors"
	"github.com/otherjamesbrown/meetchat/pkg/logging"
)

// Default connection settings.
const (
	DefaultConnectTimeout    = 10 * time.Second
	DefaultKeepaliveTime     = 5 * time.Minute // Must be >= gRPC server's MinTime (default 5 min)
	DefaultKeepaliveTimeout  = 20 * time.Second
	DefaultMaxRetries        = 3
	DefaultInitialBackoff    = 100 * time.Millisecond
	DefaultMaxBackoff        = 5 * time.Second
	DefaultBackoffMultiplier = 2.0
)

// ErrNotConnected is returned by calls made before Connect.
var ErrNotConnected = errors.New("not connected to analysis service")

// GRPCClient manages the connection to the analysis service.
type GRPCClient struct {
	// conn is the underlying gRPC connection.
	conn *grpc.ClientConn

	// serverAddr is the address of the analysis service.
	serverAddr string

	// options holds the client configuration.
	options *ClientOptions

	// mu protects concurrent access to connection state.
	mu sync.RWMutex

	// connected indicates if the client is currently connected.
	connected bool
}

// ClientOptions configures the GRPCClient behavior.
type ClientOptions struct {
	// ConnectTimeout is the maximum time to wait for connection.
	ConnectTimeout time.Duration

	// KeepaliveTime is the interval for keepalive pings.
	KeepaliveTime time.Duration

	// KeepaliveTimeout is the timeout for keepalive ping response.
	KeepaliveTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	MaxRetries int

	// InitialBackoff is the initial backoff duration for retries.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration for retries.
	MaxBackoff time.Duration

	// BackoffMultiplier is the multiplier for exponential backoff.
	BackoffMultiplier float64

	// Insecure disables TLS (for development only).
	Insecure bool

	// TLSConfig is the TLS configuration for secure connections.
	TLSConfig *tls.Config

	// DialOptions are appended to the built-in dial options.
	DialOptions []grpc.DialOption

	// Logger receives retry and connection diagnostics.
	Logger logging.Logger
}

// DefaultOptions returns ClientOptions with default values.
func DefaultOptions() *ClientOptions {
	return &ClientOptions{
		ConnectTimeout:    DefaultConnectTimeout,
		KeepaliveTime:     DefaultKeepaliveTime,
		KeepaliveTimeout:  DefaultKeepaliveTimeout,
		MaxRetries:        DefaultMaxRetries,
		InitialBackoff:    DefaultInitialBackoff,
		MaxBackoff:        DefaultMaxBackoff,
		BackoffMultiplier: DefaultBackoffMultiplier,
		Insecure:          true, // Default to insecure for local development.
	}
}

// NewGRPCClient creates a new GRPCClient with the given options.
// Call Connect() to establish the connection.
func NewGRPCClient(serverAddr string, opts *ClientOptions) *GRPCClient {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	return &GRPCClient{
		serverAddr: serverAddr,
		options:    opts,
	}
}

// Connect establishes a connection to the analysis service.
// It uses the configured timeout and returns an error if connection fails.
func (c *GRPCClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && c.conn != nil {
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.options.ConnectTimeout)
	defer cancel()

	conn, err := grpc.DialContext(connectCtx, c.serverAddr, c.buildDialOptions()...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.serverAddr, err)
	}

	c.conn = conn
	c.connected = true

	return nil
}

// buildDialOptions constructs the gRPC dial options from client configuration.
func (c *GRPCClient) buildDialOptions() []grpc.DialOption {
	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                c.options.KeepaliveTime,
			Timeout:             c.options.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithDefaultCallOptions(
			grpc.WaitForReady(true),
		),
		// Block on dial so an unreachable service fails at Connect rather
		// than on the first tool call.
		grpc.WithBlock(),
	}

	if c.options.Insecure || c.options.TLSConfig == nil {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(c.options.TLSConfig)))
	}

	return append(opts, c.options.DialOptions...)
}

// Close closes the connection to the analysis service.
// It's safe to call Close multiple times.
func (c *GRPCClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected || c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	c.connected = false

	if err != nil {
		return fmt.Errorf("closing connection: %w", err)
	}

	return nil
}

// IsConnected returns true if the client has an active connection.
func (c *GRPCClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected && c.conn != nil
}

// ServerAddress returns the configured server address.
func (c *GRPCClient) ServerAddress() string {
	return c.serverAddr
}

// HealthCheck performs a connection health check.
// Returns nil if the connection is healthy, an error otherwise.
func (c *GRPCClient) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	state := conn.GetState()
	switch state {
	case connectivity.Ready:
		return nil
	case connectivity.Connecting:
		if !conn.WaitForStateChange(ctx, connectivity.Connecting) {
			return fmt.Errorf("connection timeout while connecting")
		}
		if newState := conn.GetState(); newState != connectivity.Ready {
			return fmt.Errorf("connection failed: state is %v", newState)
		}
		return nil
	case connectivity.Idle:
		conn.Connect()
		if !conn.WaitForStateChange(ctx, connectivity.Idle) {
			return fmt.Errorf("connection timeout from idle state")
		}
		newState := conn.GetState()
		if newState != connectivity.Ready && newState != connectivity.Connecting {
			return fmt.Errorf("connection failed: state is %v", newState)
		}
		return nil
	case connectivity.TransientFailure:
		return fmt.Errorf("connection in transient failure state")
	case connectivity.Shutdown:
		return fmt.Errorf("connection has been shut down")
	default:
		return fmt.Errorf("unknown connection state: %v", state)
	}
}

// ConnectionState returns a human-readable connection state string.
func (c *GRPCClient) ConnectionState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected || c.conn == nil {
		return "disconnected"
	}

	switch c.conn.GetState() {
	case connectivity.Idle:
		return "idle"
	case connectivity.Connecting:
		return "connecting"
	case connectivity.Ready:
		return "ready"
	case connectivity.TransientFailure:
		return "transient_failure"
	case connectivity.Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// WithRetry executes fn, retrying with exponential backoff while the error is
// transient. Permanent errors are returned immediately.
func (c *GRPCClient) WithRetry(ctx context.Context, fn func() error) error {
	backoff := c.options.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= c.options.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isTransient(err) || attempt == c.options.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled: %w", ctx.Err())
		default:
		}

		c.options.Logger.Debug("Retrying analysis call",
			logging.F("attempt", attempt+1),
			logging.F("backoff", backoff.String()),
			logging.Err(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("operation cancelled during backoff: %w", ctx.Err())
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * c.options.BackoffMultiplier)
		if backoff > c.options.MaxBackoff {
			backoff = c.options.MaxBackoff
		}
	}

	return lastErr
}

// isTransient reports whether a gRPC error is worth retrying. Errors without
// a gRPC status are treated as transient.
func isTransient(err error) bool {
	s, ok := status.FromError(err)
	if !ok {
		return true
	}
	switch s.Code() {
	case codes.Unavailable, codes.ResourceExhausted, codes.Aborted:
		return true
	default:
		return false
	}
}

// Invoke calls a unary method whose request and response are structpb.Struct
// values, retrying transient failures. Errors are wrapped with ErrUpstream
// unless the caller's context ended.
func (c *GRPCClient) Invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil, fmt.Errorf("%s: %w: %w", method, ErrNotConnected, mcerrors.ErrUpstream)
	}

	ctx = outgoingContext(ctx)
	resp := &structpb.Struct{}
	err := c.WithRetry(ctx, func() error {
		return conn.Invoke(ctx, method, req, resp)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%s: %v: %w", method, err, mcerrors.ErrUpstream)
	}
	return resp, nil
}

// outgoingContext forwards the meeting and turn ids carried by ctx as gRPC
// metadata so the service can correlate its logs.
func outgoingContext(ctx context.Context) context.Context {
	var pairs []string
	for _, key := range []logging.ContextKey{logging.MeetingIDKey, logging.TurnIDKey, logging.TraceIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			pairs = append(pairs, "x-"+string(key), v)
		}
	}
	if len(pairs) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// ConnectFromConfig creates and connects a GRPCClient from the analysis section
// of cfg. This is the canonical way to create a connected client from CLI commands.
func ConnectFromConfig(ctx context.Context, cfg *config.CLIConfig, logger logging.Logger) (*GRPCClient, error) {
	if !cfg.Analysis.IsConfigured() {
		return nil, fmt.Errorf("analysis service address not configured: %w", mcerrors.ErrValidation)
	}

	opts := DefaultOptions()
	opts.Logger = logger
	opts.Insecure = !cfg.Analysis.TLS.Enabled

	if cfg.Analysis.TLS.Enabled {
		tlsConfig, err := LoadClientTLSConfig(&cfg.Analysis.TLS)
		if err != nil {
			return nil, fmt.Errorf("loading TLS config: %w", err)
		}
		opts.TLSConfig = tlsConfig
	}

	c := NewGRPCClient(cfg.Analysis.Address, opts)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to analysis service: %w", err)
	}
	return c, nil
}
