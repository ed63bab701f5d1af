package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MKhiriev/go-firesync/internal/adapter"
	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/mock"
	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/internal/store"
	"github.com/MKhiriev/go-firesync/internal/stream"
	"github.com/MKhiriev/go-firesync/models"
)

// newOfflineChat returns a message collection that never touches the network.
func newOfflineChat(t *testing.T) *service.RealtimeDatabase[models.Message] {
	t.Helper()
	db, _ := newOfflineChatWithStore(t)
	return db
}

func newOfflineChatWithStore(t *testing.T) (*service.RealtimeDatabase[models.Message], store.EntryStore) {
	t.Helper()

	q, err := adapter.NewQuery("http://localhost:9000", nil)
	require.NoError(t, err)

	entries := store.NewMemoryEntryStore()
	factory := func(collection, modifier string) (store.EntryStore, error) {
		return entries, nil
	}

	db, err := service.NewRealtimeDatabase[models.Message](
		q.Child("messages"),
		mock.NewMockTransport(gomock.NewController(t)),
		factory,
		service.Options{
			InitialPull: models.PullNone,
			Streaming:   models.StreamNone,
			SyncPeriod:  time.Hour,
		},
		logger.Nop(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, entries
}

func newTestModel(t *testing.T, chat service.Collection[models.Message]) chatModel {
	t.Helper()

	m := newChatModel(context.Background(), chat, "alice", models.NewAppBuildInfo("1.0.0", "2026-10-18", "abc"), logger.Nop())
	t.Cleanup(m.close)
	return m
}

// drain runs cmd and every command it produces until the model has
// received a message of type M.
func drain[M tea.Msg](t *testing.T, m chatModel, cmd tea.Cmd) chatModel {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for cmd != nil {
		done := make(chan tea.Msg, 1)
		go func(c tea.Cmd) { done <- c() }(cmd)

		var msg tea.Msg
		select {
		case msg = <-done:
		case <-deadline:
			t.Fatal("command did not finish in time")
		}

		if batch, ok := msg.(tea.BatchMsg); ok {
			// только первая команда батча интересна тестам
			if len(batch) == 0 {
				return m
			}
			cmd = batch[0]
			continue
		}

		next, nextCmd := m.Update(msg)
		m = next.(chatModel)
		if _, ok := msg.(M); ok {
			return m
		}
		cmd = nextCmd
	}
	return m
}

func keyPress(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}

// ─────────────────────────────────────────────
// apply
// ─────────────────────────────────────────────

func TestChatModel_ApplyKeepsKeyOrder(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	m.apply(models.Event[models.Message]{Key: "c", Object: models.Message{Content: "3"}})
	m.apply(models.Event[models.Message]{Key: "a", Object: models.Message{Content: "1"}})
	m.apply(models.Event[models.Message]{Key: "b", Object: models.Message{Content: "2"}})
	m.apply(models.Event[models.Message]{Key: "a", Object: models.Message{Content: "1!"}})

	assert.Equal(t, []string{"a", "b", "c"}, m.order)
	assert.Equal(t, "1!", m.messages["a"].Content)

	m.apply(models.Event[models.Message]{Key: "b", Kind: models.Delete})
	assert.Equal(t, []string{"a", "c"}, m.order)
	assert.NotContains(t, m.messages, "b")
}

func TestChatModel_ApplyIgnoresEmptyEvent(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	m.apply(models.EmptyEvent[models.Message](models.SourceOnlineInitial))

	assert.Empty(t, m.order)
	assert.Contains(t, m.renderMessages(), "Нет сообщений")
}

func TestChatModel_PushEventClearsPending(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))
	m.pending["a"] = true

	m.apply(models.Event[models.Message]{Key: "a", Object: models.Message{Content: "x"}, Source: models.SourceOffline})
	assert.True(t, m.pending["a"])

	m.apply(models.Event[models.Message]{Key: "a", Object: models.Message{Content: "x"}, Source: models.SourceOnlinePush})
	assert.False(t, m.pending["a"])
}

func TestChatModel_PreviousOwnKey(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))
	m.apply(models.Event[models.Message]{Key: "a", Object: models.Message{Author: "alice"}})
	m.apply(models.Event[models.Message]{Key: "b", Object: models.Message{Author: "bob"}})
	m.apply(models.Event[models.Message]{Key: "c", Object: models.Message{Author: "alice"}})

	assert.Equal(t, "a", m.previousOwnKey("c"))
	assert.Equal(t, "", m.previousOwnKey("a"))
}

// ─────────────────────────────────────────────
// keys
// ─────────────────────────────────────────────

func TestChatModel_SendPostsMessage(t *testing.T) {
	chat := newOfflineChat(t)
	m := newTestModel(t, chat)

	m.input.SetValue("  привет  ")
	next, cmd := m.Update(keyPress(tea.KeyEnter))
	m = next.(chatModel)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	m = drain[sentMsg](t, m, cmd)
	require.NotEmpty(t, m.lastSent)
	assert.True(t, m.pending[m.lastSent])

	got, ok, err := chat.Get(context.Background(), m.lastSent)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", got.Author)
	assert.Equal(t, "привет", got.Content)
	assert.Positive(t, got.Timestamp)
}

func TestChatModel_SendRequestsServerTimestamp(t *testing.T) {
	chat, entries := newOfflineChatWithStore(t)
	m := newTestModel(t, chat)

	m.input.SetValue("hi")
	_, cmd := m.Update(keyPress(tea.KeyEnter))
	m = drain[sentMsg](t, m, cmd)
	require.NotEmpty(t, m.lastSent)

	partial, err := entries.Get(context.Background(), m.lastSent+"/timestamp")
	require.NoError(t, err)
	assert.True(t, partial.IsPartial)
	assert.JSONEq(t, `{".sv":"timestamp"}`, partial.Data)
}

func TestChatModel_SendIgnoresBlankInput(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	m.input.SetValue("   ")
	_, cmd := m.Update(keyPress(tea.KeyEnter))

	assert.Nil(t, cmd)
}

func TestChatModel_EditAndDeleteLastSent(t *testing.T) {
	chat := newOfflineChat(t)
	ctx := context.Background()
	m := newTestModel(t, chat)

	k, err := chat.Post(ctx, models.Message{Author: "alice", Content: "old"})
	require.NoError(t, err)
	m.lastSent = k

	m.input.SetValue("new")
	next, cmd := m.Update(keyPress(tea.KeyCtrlE))
	m = drain[editedMsg](t, next.(chatModel), cmd)
	assert.Nil(t, m.overlay)

	got, _, err := chat.Get(ctx, k)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Content)

	next, cmd = m.Update(keyPress(tea.KeyCtrlD))
	m = drain[deletedMsg](t, next.(chatModel), cmd)
	assert.Empty(t, m.lastSent)

	_, ok, err := chat.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChatModel_EditWithoutSentMessageShowsOverlay(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	m.input.SetValue("text")
	next, cmd := m.Update(keyPress(tea.KeyCtrlE))
	m = next.(chatModel)

	assert.Nil(t, cmd)
	require.NotNil(t, m.overlay)
	assert.Contains(t, m.View(), errNothingToEdit.Error())

	next, _ = m.Update(keyPress(tea.KeyEsc))
	assert.Nil(t, next.(chatModel).overlay)
}

func TestChatModel_QuitMarksUser(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	next, cmd := m.Update(keyPress(tea.KeyCtrlC))

	assert.True(t, next.(chatModel).quitByUser)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestChatModel_BuildInfoToggle(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	next, _ := m.Update(keyPress(tea.KeyF1))
	m = next.(chatModel)
	require.True(t, m.showBuildInfo)
	assert.Contains(t, m.View(), "1.0.0")

	next, _ = m.Update(keyPress(tea.KeyF1))
	assert.False(t, next.(chatModel).showBuildInfo)
}

// ─────────────────────────────────────────────
// observation
// ─────────────────────────────────────────────

func TestChatModel_ReceivesObservedWrites(t *testing.T) {
	chat := newOfflineChat(t)
	m := newTestModel(t, chat)

	require.NoError(t, chat.Put(context.Background(), "k1", models.Message{Author: "bob", Content: "hi"}))

	m = drain[chatEventMsg](t, m, waitForEvent(m.observation.current))

	assert.Equal(t, []string{"k1"}, m.order)
	assert.Contains(t, m.renderMessages(), "hi")
}

func TestChatModel_EndedObservationResubscribes(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))
	old := m.observation.current

	next, _ := m.Update(observationEndedMsg{err: stream.ErrCancelled})
	m = next.(chatModel)
	require.NotNil(t, m.overlay)
	require.True(t, m.resubscribe)

	next, cmd := m.Update(keyPress(tea.KeyEnter))
	m = next.(chatModel)

	assert.Nil(t, m.overlay)
	assert.NotNil(t, cmd)
	assert.NotSame(t, old, m.observation.current)
}

func TestChatModel_SyncErrorSetsStatus(t *testing.T) {
	m := newTestModel(t, newOfflineChat(t))

	next, cmd := m.Update(syncErrorMsg{err: errors.New("connection refused")})
	m = next.(chatModel)

	assert.NotEmpty(t, m.status)
	assert.NotNil(t, cmd)

	next, _ = m.Update(clearStatusMsg{})
	assert.Empty(t, next.(chatModel).status)
}
