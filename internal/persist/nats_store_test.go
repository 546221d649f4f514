// Package persist_test tests the blob store implementations.
package persist_test

import (
	"context"
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/voicestudio/studio-client/internal/persist"
)

// startTestServer starts an in-memory NATS server with JetStream enabled.
func startTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1 // Use a random port
	opts.JetStream = true
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	return natsServer, natsConnection
}

func TestNatsStore_UploadDownload(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := persist.NewNatsStore(jetstreamContext, "studio-test")
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte("archived wav bytes")

	err = store.Upload(ctx, "out.wav", payload)
	require.NoError(t, err)

	data, err := store.Download(ctx, "out.wav")
	require.NoError(t, err)
	require.Equal(t, payload, data)
}

func TestNatsStore_BindsToExistingBucket(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	first, err := persist.NewNatsStore(jetstreamContext, "studio-shared")
	require.NoError(t, err)

	ctx := context.Background()

	require.NoError(t, first.Upload(ctx, "settings.json", []byte(`{"language":"de"}`)))

	second, err := persist.NewNatsStore(jetstreamContext, "studio-shared")
	require.NoError(t, err)

	data, err := second.Download(ctx, "settings.json")
	require.NoError(t, err)
	require.Equal(t, `{"language":"de"}`, string(data))
}

func TestNatsStore_MissingKey(t *testing.T) {
	t.Parallel()

	natsServer, natsConnection := startTestServer(t)
	defer natsServer.Shutdown()
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := persist.NewNatsStore(jetstreamContext, "studio-empty")
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "absent.wav")
	require.Error(t, err)
}
