package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"meshtranslator/internal/config"
	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/translator"
)

// NewFromConfig creates the repository selected by the configured mode. The
// backend is checked once so a misconfiguration fails at startup.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *logging.Logger) (translator.CredentialRepository, error) {
	logger = logger.WithModule("repository.factory")

	switch cfg.Repository.Mode {
	case config.RepositoryCSV:
		repo, err := LoadCSV(afero.NewOsFs(), cfg.Repository.CSV.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Using csv credential repository", "path", cfg.Repository.CSV.Path, "subjects", repo.Len())
		return repo, nil

	case config.RepositoryKubernetes:
		k := cfg.Repository.Kubernetes
		client, namespace, err := KubernetesClient(k.Kubeconfig, k.Namespace)
		if err != nil {
			return nil, err
		}
		repo := NewKubernetesSecret(client, namespace, k.Secret, logger)
		if _, err := repo.entries(ctx); err != nil {
			return nil, err
		}
		logger.Info("Using kubernetes secret credential repository", "namespace", namespace, "secret_name", k.Secret)
		return repo, nil

	case config.RepositoryRedis:
		r := cfg.Repository.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     r.Address,
			Password: r.Password,
			DB:       r.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", r.Address, err)
		}
		logger.Info("Using redis credential repository", "address", r.Address, "db", r.DB)
		return NewRedis(client, r.KeyPrefix), nil

	default:
		return nil, fmt.Errorf("unknown repository mode: %s", cfg.Repository.Mode)
	}
}
