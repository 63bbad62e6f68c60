package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"

	"meshtranslator/internal/observability/logging"
	"meshtranslator/internal/translator"
)

func newSecret(data map[string]string) *corev1.Secret {
	secret := &corev1.Secret{
		ObjectMeta: metav1.ObjectMeta{Name: "credentials", Namespace: "mesh"},
		Data:       map[string][]byte{},
	}
	for k, v := range data {
		secret.Data[k] = []byte(v)
	}
	return secret
}

func TestKubernetesSecretLookups(t *testing.T) {
	client := fake.NewSimpleClientset(newSecret(map[string]string{
		"alice":  "alice:secret",
		"bob":    "bob:p:w",
		"broken": "no-separator",
	}))
	repo := NewKubernetesSecret(client, "mesh", "credentials", logging.Discard())
	ctx := context.Background()

	cred, ok, err := repo.LookupCredential(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, translator.Credential{Username: "bob", Password: "p:w"}, cred)

	_, ok, err = repo.LookupCredential(ctx, "broken")
	require.NoError(t, err)
	assert.False(t, ok)

	id, ok, err := repo.LookupSubject(ctx, translator.Credential{Username: "alice", Password: "secret"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "alice", id)

	_, ok, err = repo.LookupSubject(ctx, translator.Credential{Username: "alice", Password: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKubernetesSecretSharedCredentialUsesSortedKeys(t *testing.T) {
	client := fake.NewSimpleClientset(newSecret(map[string]string{
		"carol": "shared:pw",
		"anna":  "shared:pw",
		"bert":  "shared:pw",
	}))
	repo := NewKubernetesSecret(client, "mesh", "credentials", logging.Discard())

	for i := 0; i < 100; i++ {
		id, ok, err := repo.LookupSubject(context.Background(), translator.Credential{Username: "shared", Password: "pw"})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "anna", id)
	}
}

func TestKubernetesSecretSeesUpdates(t *testing.T) {
	client := fake.NewSimpleClientset(newSecret(map[string]string{"alice": "alice:old"}))
	repo := NewKubernetesSecret(client, "mesh", "credentials", logging.Discard())
	ctx := context.Background()

	_, err := client.CoreV1().Secrets("mesh").Update(ctx, newSecret(map[string]string{"alice": "alice:new"}), metav1.UpdateOptions{})
	require.NoError(t, err)

	cred, ok, err := repo.LookupCredential(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new", cred.Password)
}

func TestKubernetesSecretMissing(t *testing.T) {
	repo := NewKubernetesSecret(fake.NewSimpleClientset(), "mesh", "credentials", logging.Discard())

	_, _, err := repo.LookupCredential(context.Background(), "alice")
	assert.Error(t, err)
	_, _, err = repo.LookupSubject(context.Background(), translator.Credential{Username: "alice"})
	assert.Error(t, err)
}

func TestCurrentNamespace(t *testing.T) {
	noEnv := func(string) string { return "" }
	noFile := func(string) ([]byte, error) { return nil, os.ErrNotExist }

	assert.Equal(t, "from-env", CurrentNamespace(
		func(k string) string {
			if k == "POD_NAMESPACE" {
				return "from-env"
			}
			return ""
		},
		noFile, nil))

	assert.Equal(t, "from-file", CurrentNamespace(noEnv,
		func(path string) ([]byte, error) {
			if path == namespaceFile {
				return []byte("from-file\n"), nil
			}
			return nil, errors.New("unexpected path")
		}, nil))

	assert.Equal(t, "from-kubeconfig", CurrentNamespace(noEnv, noFile, func() string { return "from-kubeconfig" }))
	assert.Equal(t, "default", CurrentNamespace(noEnv, noFile, func() string { return "" }))
	assert.Equal(t, "default", CurrentNamespace(noEnv, noFile, nil))
}
