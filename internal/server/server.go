package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	authv3 "github.com/envoyproxy/go-control-plane/envoy/service/auth/v3"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"meshtranslator/internal/admin"
	"meshtranslator/internal/gateway"
	"meshtranslator/internal/observability"
	"meshtranslator/internal/observability/logging"
)

// Server runs the ingress and egress check listeners and the admin server
type Server struct {
	config   Config
	ingress  *grpc.Server
	egress   *grpc.Server
	admin    *http.Server
	logger   *logging.Logger
	closers  []io.Closer
	ready    atomic.Bool
	started  chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu    sync.Mutex
	addrs map[string]net.Addr
}

// Config holds server configuration
type Config struct {
	// IngressAddress is the address of the inbound check listener
	IngressAddress string

	// EgressAddress is the address of the outbound check listener
	EgressAddress string

	// AdminAddress serves metrics and probes
	AdminAddress string

	// TLS secures both check listeners when set
	TLS *tls.Config

	// ShutdownTimeout is the maximum time to wait for in-flight calls
	ShutdownTimeout time.Duration
}

// New creates a server for the given check implementations. closers are
// closed after shutdown.
func New(config Config, ingress, egress authv3.AuthorizationServer, obs *observability.Provider, closers ...io.Closer) *Server {
	s := &Server{
		config:  config,
		logger:  obs.Logger.WithModule("server"),
		closers: closers,
		started: make(chan struct{}),
		stopped: make(chan struct{}),
		addrs:   map[string]net.Addr{},
	}

	s.ingress = newGRPCServer(config.TLS, obs.UnaryInterceptor(gateway.ListenerIngress))
	authv3.RegisterAuthorizationServer(s.ingress, ingress)

	s.egress = newGRPCServer(config.TLS, obs.UnaryInterceptor(gateway.ListenerEgress))
	authv3.RegisterAuthorizationServer(s.egress, egress)

	router := admin.New(obs.MetricsHandler(), s.Ready, obs.Logger)
	s.admin = &http.Server{
		Addr:              config.AdminAddress,
		Handler:           obs.Middleware(router, router.Route),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func newGRPCServer(tlsConfig *tls.Config, interceptor grpc.UnaryServerInterceptor) *grpc.Server {
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptor)}
	if tlsConfig != nil {
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
	}
	return grpc.NewServer(opts...)
}

// Start binds all listeners and serves until Stop is called or a listener
// fails. The server reports ready only once both check listeners are bound.
func (s *Server) Start(ctx context.Context) error {
	listeners, err := s.listen(map[string]string{
		gateway.ListenerIngress: s.config.IngressAddress,
		gateway.ListenerEgress:  s.config.EgressAddress,
		"admin":                 s.config.AdminAddress,
	})
	if err != nil {
		return err
	}

	s.ready.Store(true)
	close(s.started)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Starting ingress listener", "address", listeners[gateway.ListenerIngress].Addr().String())
		if err := s.ingress.Serve(listeners[gateway.ListenerIngress]); err != nil {
			return fmt.Errorf("ingress listener failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting egress listener", "address", listeners[gateway.ListenerEgress].Addr().String())
		if err := s.egress.Serve(listeners[gateway.ListenerEgress]); err != nil {
			return fmt.Errorf("egress listener failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("Starting admin server", "address", listeners["admin"].Addr().String())
		if err := s.admin.Serve(listeners["admin"]); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin server failed: %w", err)
		}
		return nil
	})

	// a failing listener or a cancelled ctx takes the others down
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return s.Stop(context.Background())
		case <-s.stopped:
			return nil
		}
	})

	return g.Wait()
}

func (s *Server) listen(addresses map[string]string) (map[string]net.Listener, error) {
	listeners := make(map[string]net.Listener, len(addresses))
	for name, address := range addresses {
		lis, err := net.Listen("tcp", address)
		if err != nil {
			for _, l := range listeners {
				_ = l.Close()
			}
			return nil, fmt.Errorf("failed to bind %s listener on %s: %w", name, address, err)
		}
		listeners[name] = lis
	}

	s.mu.Lock()
	for name, lis := range listeners {
		s.addrs[name] = lis.Addr()
	}
	s.mu.Unlock()

	return listeners, nil
}

// Started is closed once all listeners are bound
func (s *Server) Started() <-chan struct{} {
	return s.started
}

// Ready reports whether both check listeners accept calls
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Addr returns the bound address of the named listener (ingress, egress or
// admin), or nil before Start
func (s *Server) Addr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[name]
}

// Stop stops accepting calls and waits for in-flight calls up to the
// shutdown timeout before closing remaining connections
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		err = s.stop(ctx)
		close(s.stopped)
	})
	return err
}

func (s *Server) stop(ctx context.Context) error {
	s.logger.Info("Stopping servers", "timeout", s.config.ShutdownTimeout)
	s.ready.Store(false)

	shutdownCtx := ctx
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}

	var wg sync.WaitGroup
	for name, srv := range map[string]*grpc.Server{gateway.ListenerIngress: s.ingress, gateway.ListenerEgress: s.egress} {
		name, srv := name, srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			drainGRPC(shutdownCtx, srv)
			s.logger.Info("Listener stopped", "listener", name)
		}()
	}
	wg.Wait()

	var errs []error
	if err := s.admin.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shut down admin server", logging.Err(err))
		errs = append(errs, err)
	}

	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Info("Servers stopped")
	return errors.Join(errs...)
}

// drainGRPC stops srv gracefully and forces it down when ctx ends first
func drainGRPC(ctx context.Context, srv *grpc.Server) {
	done := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		srv.Stop()
		<-done
	}
}
