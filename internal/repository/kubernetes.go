package repository

import (
	"context"
	"fmt"
	"os"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/translator"
)

const (
	defaultNamespace = "default"
	namespaceEnv     = "POD_NAMESPACE"
	namespaceFile    = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
)

// KubernetesSecret reads credentials from a secret. Every data key is a
// subject id and its value is username:password. The secret is read on
// every lookup so rotations apply immediately.
type KubernetesSecret struct {
	client    kubernetes.Interface
	namespace string
	name      string
	logger    *logging.Logger
}

var _ translator.CredentialRepository = (*KubernetesSecret)(nil)

// NewKubernetesSecret creates a repository for the secret name in namespace
func NewKubernetesSecret(client kubernetes.Interface, namespace, name string, logger *logging.Logger) *KubernetesSecret {
	return &KubernetesSecret{
		client:    client,
		namespace: namespace,
		name:      name,
		logger:    logger.WithModule("repository.kubernetes"),
	}
}

// LookupCredential returns the credential stored under subjectID
func (k *KubernetesSecret) LookupCredential(ctx context.Context, subjectID string) (translator.Credential, bool, error) {
	entries, err := k.entries(ctx)
	if err != nil {
		return translator.Credential{}, false, err
	}
	return entries.LookupCredential(ctx, subjectID)
}

// LookupSubject returns the first key in sorted order whose value matches
// cred
func (k *KubernetesSecret) LookupSubject(ctx context.Context, cred translator.Credential) (string, bool, error) {
	entries, err := k.entries(ctx)
	if err != nil {
		return "", false, err
	}
	return entries.LookupSubject(ctx, cred)
}

func (k *KubernetesSecret) entries(ctx context.Context) (*Static, error) {
	secret, err := k.client.CoreV1().Secrets(k.namespace).Get(ctx, k.name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s/%s: %w", k.namespace, k.name, err)
	}

	entries := make(map[string]translator.Credential, len(secret.Data)+len(secret.StringData))
	add := func(id, value string) {
		username, password, ok := strings.Cut(value, ":")
		if !ok {
			k.logger.Warn("Skipping malformed secret entry", "key", id)
			return
		}
		entries[id] = translator.Credential{Username: username, Password: password}
	}
	for id, value := range secret.Data {
		add(id, string(value))
	}
	for id, value := range secret.StringData {
		add(id, value)
	}
	return NewStatic(entries), nil
}

// KubernetesClient returns a client from the in-cluster configuration, or
// from kubeconfig when set, together with the namespace to use. An explicit
// namespace wins over discovery.
func KubernetesClient(kubeconfig, namespace string) (kubernetes.Interface, string, error) {
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if kubeconfig != "" {
		rules.ExplicitPath = kubeconfig
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{})

	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, "", fmt.Errorf("failed to load kubernetes config: %w", err)
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	if namespace == "" {
		namespace = CurrentNamespace(os.Getenv, os.ReadFile, func() string {
			ns, _, err := clientConfig.Namespace()
			if err != nil {
				return ""
			}
			return ns
		})
	}
	return client, namespace, nil
}

// CurrentNamespace discovers the namespace the process runs in: the
// downward API variable, the service account file, the kubeconfig context
// and finally "default".
func CurrentNamespace(getenv func(string) string, readFile func(string) ([]byte, error), kubeconfigNamespace func() string) string {
	if ns := strings.TrimSpace(getenv(namespaceEnv)); ns != "" {
		return ns
	}
	if data, err := readFile(namespaceFile); err == nil {
		if ns := strings.TrimSpace(string(data)); ns != "" {
			return ns
		}
	}
	if kubeconfigNamespace != nil {
		if ns := kubeconfigNamespace(); ns != "" {
			return ns
		}
	}
	return defaultNamespace
}
