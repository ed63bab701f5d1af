package tui

import (
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/models"
)

// waitForEvent blocks until the observation delivers the next change or ends.
func waitForEvent(o *service.Observation[models.Message]) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-o.Events()
		if !ok {
			return observationEndedMsg{err: o.Err()}
		}
		return chatEventMsg{event: ev}
	}
}

func waitForSyncError(ch <-chan error) tea.Cmd {
	return func() tea.Msg {
		err, ok := <-ch
		if !ok {
			return nil
		}
		return syncErrorMsg{err: err}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m chatModel) cmdSend(text string) tea.Cmd {
	chat, ctx := m.chat, m.ctx
	msg := models.Message{
		Author:    m.author,
		Content:   text,
		Timestamp: time.Now().UnixMilli(),
	}
	return func() tea.Msg {
		key, err := chat.Post(ctx, msg)
		if err != nil {
			return sentMsg{err: err}
		}
		// время сервера заменит локальное после синхронизации
		err = chat.PutProperty(ctx, key, "/timestamp", models.ServerTimestamp())
		return sentMsg{key: key, err: err}
	}
}

func (m chatModel) cmdEdit(key, text string) tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return editedMsg{err: chat.PutProperty(ctx, key, "/content", text)}
	}
}

func (m chatModel) cmdDelete(key string) tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return deletedMsg{key: key, err: chat.Delete(ctx, key)}
	}
}

func (m chatModel) cmdSync() tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return syncDoneMsg{err: chat.Sync(ctx)}
	}
}

func (m chatModel) cmdPullAll() tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return syncDoneMsg{err: chat.PullAll(ctx)}
	}
}

func cmdCopyKey(key string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{key: key, err: clipboard.WriteAll(key)}
	}
}
