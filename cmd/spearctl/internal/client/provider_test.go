package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShakedSchnarch/spearhead/internal/devserver"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/session"
	"github.com/ShakedSchnarch/spearhead/pkg/sdk/storage"
)

func TestProviderAppliesConfiguredLogin(t *testing.T) {
	server := httptest.NewServer(devserver.New(devserver.Options{Token: "secret"}).Router())
	defer server.Close()

	p := NewProvider(Options{
		APIBase:     server.URL,
		StorageKind: storage.KindMemory,
		Login:       &session.LoginPayload{Token: "secret", Platoon: "סופה"},
	})
	defer p.Close()

	d, err := p.Dashboard(context.Background())
	require.NoError(t, err)

	again, err := p.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Same(t, d, again)

	st := d.Store().State()
	assert.Equal(t, session.PhaseAuthenticated, st.Phase)
	assert.Equal(t, "סופה", st.Platoon)

	summary, err := d.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "סופה", summary.Platoon)
}

func TestProviderFileBackend(t *testing.T) {
	p := NewProvider(Options{StorageKind: storage.KindFile, StoragePath: t.TempDir()})
	defer p.Close()

	f, ok := p.FileBackend(context.Background())
	require.True(t, ok)
	assert.NotEmpty(t, f.Dir())

	mem := NewProvider(Options{StorageKind: storage.KindMemory})
	_, ok = mem.FileBackend(context.Background())
	assert.False(t, ok)
}
