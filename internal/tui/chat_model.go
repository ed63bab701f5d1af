package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/MKhiriev/go-firesync/internal/logger"
	"github.com/MKhiriev/go-firesync/internal/service"
	"github.com/MKhiriev/go-firesync/models"
)

const (
	inputCharLimit   = 500
	statusTTL        = 3 * time.Second
	chromeHeight     = 7
	defaultViewWidth = 80
)

// observationRef is shared by every copy of the model, so the observation
// can be replaced from Update and closed from Run.
type observationRef struct {
	current *service.Observation[models.Message]
}

type chatModel struct {
	ctx       context.Context
	chat      service.Collection[models.Message]
	author    string
	buildInfo models.AppBuildInfo
	logger    *logger.Logger

	observation *observationRef
	syncErrs    <-chan error

	messages map[string]models.Message
	order    []string
	pending  map[string]bool
	lastSent string

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	syncing  bool

	status        string
	overlay       *errorOverlayModel
	resubscribe   bool
	showBuildInfo bool
	quitByUser    bool
}

func newChatModel(
	ctx context.Context,
	chat service.Collection[models.Message],
	author string,
	buildInfo models.AppBuildInfo,
	log *logger.Logger,
) chatModel {
	in := textinput.New()
	in.Placeholder = "Сообщение..."
	in.CharLimit = inputCharLimit
	in.Width = defaultViewWidth - 4
	in.Focus()

	s := spinner.New()
	s.Spinner = spinner.MiniDot

	return chatModel{
		ctx:         ctx,
		chat:        chat,
		author:      author,
		buildInfo:   buildInfo,
		logger:      log,
		observation: &observationRef{current: chat.Observe()},
		syncErrs:    chat.SyncErrors(),
		messages:    make(map[string]models.Message),
		pending:     make(map[string]bool),
		input:       in,
		viewport:    viewport.New(defaultViewWidth, 20),
		spinner:     s,
	}
}

func (m chatModel) close() {
	if m.observation.current != nil {
		m.observation.current.Close()
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitForEvent(m.observation.current),
		waitForSyncError(m.syncErrs),
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.input.Width = msg.Width - 6
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatEventMsg:
		m.apply(msg.event)
		m.refreshViewport()
		return m, waitForEvent(m.observation.current)

	case observationEndedMsg:
		if msg.err == nil {
			return m, nil
		}
		m.logger.Err(msg.err).Str("func", "chatModel.Update").Msg("observation ended")
		m.overlay = &errorOverlayModel{message: humanizeServerUnavailableError(msg.err)}
		m.resubscribe = true
		return m, nil

	case syncErrorMsg:
		m.status = humanizeServerUnavailableError(msg.err)
		return m, tea.Batch(waitForSyncError(m.syncErrs), clearStatusAfter(statusTTL))

	case sentMsg:
		if msg.err != nil {
			m.overlay = &errorOverlayModel{message: msg.err.Error()}
			return m, nil
		}
		m.lastSent = msg.key
		m.pending[msg.key] = true
		m.refreshViewport()
		return m, nil

	case editedMsg:
		if msg.err != nil {
			m.overlay = &errorOverlayModel{message: msg.err.Error()}
		}
		return m, nil

	case deletedMsg:
		if msg.err != nil {
			m.overlay = &errorOverlayModel{message: msg.err.Error()}
			return m, nil
		}
		if m.lastSent == msg.key {
			m.lastSent = m.previousOwnKey(msg.key)
		}
		return m, nil

	case syncDoneMsg:
		m.syncing = false
		if msg.err != nil {
			m.status = humanizeServerUnavailableError(msg.err)
		} else {
			m.status = "Синхронизировано"
		}
		return m, clearStatusAfter(statusTTL)

	case copiedMsg:
		if msg.err != nil {
			m.status = "Не удалось скопировать: " + msg.err.Error()
		} else {
			m.status = "Ключ скопирован: " + msg.key
		}
		return m, clearStatusAfter(statusTTL)

	case clearStatusMsg:
		m.status = ""
		return m, nil

	case spinner.TickMsg:
		if !m.syncing {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.quit) {
		m.quitByUser = true
		return m, tea.Quit
	}

	if m.overlay != nil {
		if key.Matches(msg, keys.enter) || key.Matches(msg, keys.esc) {
			m.overlay = nil
			if m.resubscribe {
				m.resubscribe = false
				m.observation.current.Close()
				m.observation.current = m.chat.Observe()
				m.messages = make(map[string]models.Message)
				m.order = nil
				return m, waitForEvent(m.observation.current)
			}
		}
		return m, nil
	}

	if m.showBuildInfo {
		if key.Matches(msg, keys.esc) || key.Matches(msg, keys.info) {
			m.showBuildInfo = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.info):
		m.showBuildInfo = true
		return m, nil

	case key.Matches(msg, keys.send):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.cmdSend(text)

	case key.Matches(msg, keys.edit):
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		if m.lastSent == "" {
			m.overlay = &errorOverlayModel{message: errNothingToEdit.Error()}
			return m, nil
		}
		m.input.SetValue("")
		return m, m.cmdEdit(m.lastSent, text)

	case key.Matches(msg, keys.delete):
		if m.lastSent == "" {
			m.overlay = &errorOverlayModel{message: errNothingToEdit.Error()}
			return m, nil
		}
		return m, m.cmdDelete(m.lastSent)

	case key.Matches(msg, keys.copy):
		if m.lastSent == "" {
			return m, nil
		}
		return m, cmdCopyKey(m.lastSent)

	case key.Matches(msg, keys.sync):
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		return m, tea.Batch(m.spinner.Tick, m.cmdSync())

	case key.Matches(msg, keys.pull):
		if m.syncing {
			return m, nil
		}
		m.syncing = true
		return m, tea.Batch(m.spinner.Tick, m.cmdPullAll())

	case key.Matches(msg, keys.up), key.Matches(msg, keys.down):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply folds one change of the collection into the model.
func (m *chatModel) apply(ev models.Event[models.Message]) {
	if ev.IsEmpty() {
		return
	}

	switch ev.Kind {
	case models.Delete:
		delete(m.messages, ev.Key)
		delete(m.pending, ev.Key)
		if i, found := slices.BinarySearch(m.order, ev.Key); found {
			m.order = slices.Delete(m.order, i, i+1)
		}
	default:
		if _, exists := m.messages[ev.Key]; !exists {
			i, _ := slices.BinarySearch(m.order, ev.Key)
			m.order = slices.Insert(m.order, i, ev.Key)
		}
		m.messages[ev.Key] = ev.Object
		if ev.Source == models.SourceOnlinePush {
			delete(m.pending, ev.Key)
		}
	}
}

// previousOwnKey returns the key of the latest own message before key.
func (m chatModel) previousOwnKey(key string) string {
	i, _ := slices.BinarySearch(m.order, key)
	for j := i - 1; j >= 0; j-- {
		if m.messages[m.order[j]].Author == m.author {
			return m.order[j]
		}
	}
	return ""
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m chatModel) renderMessages() string {
	if len(m.order) == 0 {
		return helpStyle.Render("Нет сообщений")
	}

	var b strings.Builder
	width := max(m.viewport.Width, 20)
	for _, k := range m.order {
		msg := m.messages[k]

		author := authorStyle.Render(msg.Author)
		if msg.Author == m.author {
			author = ownAuthorStyle.Render(msg.Author)
		}
		line := fmt.Sprintf("[%s] %s: %s", formatTimestamp(msg.Timestamp), author, msg.Content)
		if m.pending[k] {
			line = pendingStyle.Render(line + " •")
		}
		b.WriteString(fitText(line, width*4))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m chatModel) View() string {
	if m.showBuildInfo {
		return appStyle.Render(renderBuildInfoWindow(m.buildInfo, m.author))
	}
	if m.overlay != nil {
		return appStyle.Render(m.overlay.View())
	}

	header := titleStyle.Render("go-firesync chat") + "  " + helpStyle.Render(m.author)
	if m.syncing {
		header += "  " + m.spinner.View()
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(uiDivider)
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(uiDivider)
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(helpLine))

	return appStyle.Render(b.String())
}
