package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"meshtranslator/internal/config"
	"meshtranslator/internal/gateway"
	"meshtranslator/internal/observability"
	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/pki"
	"meshtranslator/internal/repository"
	tlsconfig "meshtranslator/internal/tls"
	"meshtranslator/internal/translator/basicauth"
)

// NewFromConfig wires the process from configuration. Trust material is
// provisioned here, so this blocks until the trust authority answered or the
// retry timeout expired.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	obs, err := observability.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	var listenerTLS *tls.Config
	if cfg.TLS.Enabled {
		setup := &tlsconfig.Config{
			Logger:     logger,
			RootCAPath: cfg.TLS.CAPath,
			CertPath:   cfg.TLS.CertPath,
			KeyPath:    cfg.TLS.KeyPath,
		}
		listenerTLS, err = setup.GetServerTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	repo, err := repository.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential repository: %w", err)
	}
	var closers []io.Closer
	if c, ok := repo.(io.Closer); ok {
		closers = append(closers, c)
	}

	engine, err := newEngine(ctx, cfg, obs)
	if err != nil {
		closeAll(closers)
		return nil, err
	}

	translator := basicauth.New(repo, logger)
	ingress := gateway.NewIngressServer(translator, engine, logger, obs.Metrics)
	egress := gateway.NewEgressServer(translator, engine, logger, obs.Metrics)

	serverConfig := Config{
		IngressAddress:  cfg.Server.IngressAddress,
		EgressAddress:   cfg.Server.EgressAddress,
		AdminAddress:    cfg.Admin.Address,
		TLS:             listenerTLS,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	return New(serverConfig, ingress, egress, obs, closers...), nil
}

func newEngine(ctx context.Context, cfg *config.Config, obs *observability.Provider) (*pki.Engine, error) {
	clientTLS, err := (&tlsconfig.Config{Logger: obs.Logger, RootCAPath: cfg.PKI.TLSCAPath}).GetClientTLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create trust authority TLS configuration: %w", err)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = clientTLS

	obs.Logger.Info("Provisioning trust material",
		"authority", logging.RedactURL(cfg.PKI.Address),
		"common_name", cfg.PKI.CommonName,
	)
	material, err := pki.Bootstrap(ctx, pki.Config{
		AuthorityURL: cfg.PKI.Address,
		CAPath:       cfg.PKI.CAPath,
		CSRPath:      cfg.PKI.CSRPath,
		CommonName:   cfg.PKI.CommonName,
		RetryTimeout: cfg.PKI.RetryTimeout,
		HTTPClient:   pki.NewAuthorityHTTPClient(ctx, transport, cfg.PKI.Token),
	}, pki.NewOSStore(cfg.PKI.StorePath), obs.Logger, obs.Metrics)
	if err != nil {
		if pki.IsPermanent(err) {
			return nil, fmt.Errorf("trust authority refused to provision trust material: %w", err)
		}
		return nil, fmt.Errorf("failed to provision trust material: %w", err)
	}

	engine, err := pki.NewEngine(material, pki.TokenConfig{
		Lifetime:  cfg.Token.Lifetime,
		ClockSkew: cfg.Token.ClockSkew,
		Audience:  cfg.Token.Audience,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token engine: %w", err)
	}
	obs.Logger.Info("Token engine ready", "issuer", engine.Issuer(), "lifetime", cfg.Token.Lifetime.String())
	return engine, nil
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}
