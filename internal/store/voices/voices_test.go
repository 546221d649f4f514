// Package voices_test tests the voice registry store.
package voices_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicestudio/studio-client/internal/core"
	"github.com/voicestudio/studio-client/internal/gateway"
	"github.com/voicestudio/studio-client/internal/notify"
	"github.com/voicestudio/studio-client/internal/store/voices"
)

var (
	errMockList   = errors.New("mock list error")
	errMockDelete = errors.New("mock delete error")
	errMockClone  = errors.New("mock clone error")
)

// mockGateway is a mock implementation of the voices.Gateway interface.
type mockGateway struct {
	mu sync.Mutex

	listResults  [][]core.Voice
	listErr      error
	listCalls    int
	listRelease  chan struct{}
	deleteErr    error
	deletedIDs   []string
	cloneErr     error
	cloneResp    gateway.CloneResponse
	statusQueue  []gateway.VoiceStatusResponse
	statusErr    error
	statusCalls  int
}

func (m *mockGateway) ListVoices(_ context.Context) ([]core.Voice, error) {
	m.mu.Lock()
	call := m.listCalls
	m.listCalls++
	release := m.listRelease
	m.mu.Unlock()

	// The first call can be held back to simulate a slow response that
	// resolves after a later one.
	if call == 0 && release != nil {
		<-release
	}

	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.listResults) == 0 {
		return nil, nil
	}

	// Each call gets its own queued result; extra calls repeat the last.
	index := call
	if index >= len(m.listResults) {
		index = len(m.listResults) - 1
	}

	return m.listResults[index], nil
}

func (m *mockGateway) VoiceStatus(_ context.Context, id string) (gateway.VoiceStatusResponse, error) {
	if m.statusErr != nil {
		return gateway.VoiceStatusResponse{}, m.statusErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	status := m.statusQueue[0]
	if len(m.statusQueue) > 1 {
		m.statusQueue = m.statusQueue[1:]
	}

	m.statusCalls++
	status.VoiceID = id

	return status, nil
}

func (m *mockGateway) CloneVoice(_ context.Context, _ gateway.CloneRequest) (gateway.CloneResponse, error) {
	if m.cloneErr != nil {
		return gateway.CloneResponse{}, m.cloneErr
	}

	return m.cloneResp, nil
}

func (m *mockGateway) DeleteVoice(_ context.Context, id string) (gateway.DeleteResponse, error) {
	if m.deleteErr != nil {
		return gateway.DeleteResponse{}, m.deleteErr
	}

	m.mu.Lock()
	m.deletedIDs = append(m.deletedIDs, id)
	m.mu.Unlock()

	return gateway.DeleteResponse{Message: "deleted"}, nil
}

// recordingNotifier captures user-visible notifications.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ core.NotifyLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.messages = append(n.messages, message)
}

func newTestStore(t *testing.T, mock *mockGateway, notifier core.Notifier) *voices.Store {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "voices-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = testLogger.Close() })

	if notifier == nil {
		notifier = notify.Discard{}
	}

	return voices.New(mock, notifier, testLogger, func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	})
}

func testVoices() []core.Voice {
	return []core.Voice{
		{ID: "v1", Name: "Alpha", Status: core.VoiceStatusReady, SampleCount: 2},
		{ID: "v2", Name: "Beta", Status: core.VoiceStatusReady, SampleCount: 1},
		{ID: "v3", Name: "Gamma", Status: core.VoiceStatusProcessing, SampleCount: 4},
	}
}

func TestFetchAll_ReplacesList(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{listResults: [][]core.Voice{testVoices()}}
	store := newTestStore(t, mock, nil)

	err := store.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Len(t, store.Voices(), 3)
	assert.False(t, store.Loading())
	require.NoError(t, store.LastError())
}

func TestFetchAll_FailureKeepsPreviousListAndNotifies(t *testing.T) {
	t.Parallel()

	notifier := &recordingNotifier{}
	mock := &mockGateway{listResults: [][]core.Voice{testVoices()}}
	store := newTestStore(t, mock, notifier)

	require.NoError(t, store.FetchAll(context.Background()))

	mock.listErr = errMockList

	err := store.FetchAll(context.Background())
	require.ErrorIs(t, err, errMockList)

	assert.Len(t, store.Voices(), 3, "previous list must survive a failed fetch")
	require.Error(t, store.LastError())
	assert.Equal(t, []string{"mock list error"}, notifier.messages)
}

func TestFetchAll_DiscardsStaleResponse(t *testing.T) {
	t.Parallel()

	older := []core.Voice{{ID: "old", Name: "Old", Status: core.VoiceStatusReady}}
	newer := []core.Voice{{ID: "new", Name: "New", Status: core.VoiceStatusReady}}

	release := make(chan struct{})
	mock := &mockGateway{
		listResults: [][]core.Voice{older, newer},
		listRelease: release,
	}
	store := newTestStore(t, mock, nil)

	var waitGroup sync.WaitGroup

	waitGroup.Add(1)

	go func() {
		defer waitGroup.Done()

		// First fetch: its gateway call blocks until released.
		_ = store.FetchAll(context.Background())
	}()

	// Wait until the first call is in flight before starting the second.
	require.Eventually(t, func() bool {
		mock.mu.Lock()
		defer mock.mu.Unlock()

		return mock.listCalls == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, store.FetchAll(context.Background()))

	// Release the slow first response; it must be discarded.
	close(release)
	waitGroup.Wait()

	list := store.Voices()
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].ID)
}

func TestSelect_PureStateReplacement(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, &mockGateway{}, nil)

	voice := core.Voice{ID: "v1", Name: "Alpha", Status: core.VoiceStatusReady}
	store.Select(&voice)

	selected := store.Selected()
	require.NotNil(t, selected)
	assert.Equal(t, "v1", selected.ID)

	store.Select(nil)
	assert.Nil(t, store.Selected())
}

func TestDelete_RemovesExactlyOneEntryInOrder(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{listResults: [][]core.Voice{testVoices()}}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	err := store.Delete(context.Background(), "v2")
	require.NoError(t, err)

	list := store.Voices()
	require.Len(t, list, 2)
	assert.Equal(t, "v1", list[0].ID)
	assert.Equal(t, "v3", list[1].ID)
	assert.Equal(t, []string{"v2"}, mock.deletedIDs)
}

func TestDelete_ClearsMatchingSelection(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{listResults: [][]core.Voice{testVoices()}}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	list := store.Voices()
	store.Select(&list[0])

	require.NoError(t, store.Delete(context.Background(), "v1"))
	assert.Nil(t, store.Selected())
}

func TestDelete_FailureLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{listResults: [][]core.Voice{testVoices()}}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	before := store.Voices()
	mock.deleteErr = errMockDelete

	err := store.Delete(context.Background(), "v1")
	require.ErrorIs(t, err, errMockDelete)

	assert.Equal(t, before, store.Voices())
}

func TestClone_PrependsProvisionalRecord(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{
		listResults: [][]core.Voice{testVoices()},
		cloneResp: gateway.CloneResponse{
			VoiceID: "v-new",
			Status:  core.VoiceStatusProcessing,
			Message: "started",
		},
	}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	voice, err := store.Clone(context.Background(), gateway.CloneRequest{
		Name:        "X",
		Description: "d",
		Files: []gateway.CloneFile{
			{Name: "f1.wav", Data: nil},
			{Name: "f2.wav", Data: nil},
		},
	})
	require.NoError(t, err)

	list := store.Voices()
	require.Len(t, list, 4, "registry must grow by exactly one")

	first := list[0]
	assert.Equal(t, "v-new", first.ID)
	assert.Equal(t, "X", first.Name)
	assert.Equal(t, "d", first.Description)
	assert.Equal(t, core.VoiceStatusProcessing, first.Status)
	assert.Equal(t, 2, first.SampleCount)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), first.CreatedAt)

	assert.True(t, store.Provisional(voice.ID))
}

func TestClone_FailureMutatesNothing(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{
		listResults: [][]core.Voice{testVoices()},
		cloneErr:    errMockClone,
	}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	_, err := store.Clone(context.Background(), gateway.CloneRequest{
		Name:        "X",
		Description: "",
		Files:       []gateway.CloneFile{{Name: "f1.wav", Data: nil}},
	})
	require.ErrorIs(t, err, errMockClone)

	assert.Len(t, store.Voices(), 3)
	require.Error(t, store.LastError())
}

func TestFetchAll_ReconcilesProvisionalRecords(t *testing.T) {
	t.Parallel()

	confirmed := []core.Voice{
		{ID: "v-new", Name: "X", Status: core.VoiceStatusReady, SampleCount: 2},
	}
	mock := &mockGateway{
		listResults: [][]core.Voice{nil, confirmed},
		cloneResp: gateway.CloneResponse{
			VoiceID: "v-new",
			Status:  core.VoiceStatusProcessing,
			Message: "started",
		},
	}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	voice, err := store.Clone(context.Background(), gateway.CloneRequest{
		Name:        "X",
		Description: "",
		Files:       []gateway.CloneFile{{Name: "f1.wav", Data: nil}, {Name: "f2.wav", Data: nil}},
	})
	require.NoError(t, err)
	require.True(t, store.Provisional(voice.ID))

	require.NoError(t, store.FetchAll(context.Background()))

	assert.False(t, store.Provisional(voice.ID), "full fetch confirms provisional records")

	list := store.Voices()
	require.Len(t, list, 1)
	assert.Equal(t, core.VoiceStatusReady, list[0].Status)
}

func TestAwaitReady_PollsUntilTerminal(t *testing.T) {
	t.Parallel()

	mock := &mockGateway{
		listResults: [][]core.Voice{{
			{ID: "v1", Name: "Alpha", Status: core.VoiceStatusProcessing},
		}},
		statusQueue: []gateway.VoiceStatusResponse{
			{Status: core.VoiceStatusProcessing},
			{Status: core.VoiceStatusTraining},
			{Status: core.VoiceStatusReady},
		},
	}
	store := newTestStore(t, mock, nil)

	require.NoError(t, store.FetchAll(context.Background()))

	status, err := store.AwaitReady(context.Background(), "v1", time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, core.VoiceStatusReady, status)
	assert.Equal(t, 3, mock.statusCalls)

	list := store.Voices()
	assert.Equal(t, core.VoiceStatusReady, list[0].Status)
}
