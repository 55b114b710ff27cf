package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/huddle-dev/huddle/internal/session"
	"github.com/huddle-dev/huddle/internal/signaling"
	"github.com/huddle-dev/huddle/internal/ui"
)

const maxLogLines = 200

// Session events arriving from the manager's callback goroutines.
type (
	chatMsg        struct{ msg signaling.ChatMessage }
	participantMsg struct {
		id, userID string
		joined     bool
	}
	recordingMsg   struct{ on bool }
	screenShareMsg struct {
		id string
		on bool
	}
	mediaMsg struct {
		id    string
		state signaling.MediaState
	}
	sessionErrMsg struct{ err error }

	tickMsg time.Time
)

// Model is the in-room terminal UI. It renders the chat log plus a live
// status bar, and drives the session manager from key bindings.
type Model struct {
	session *session.Manager
	userID  string

	input  textinput.Model
	spin   spinner.Model
	events chan tea.Msg

	log      []string
	width    int
	quitting bool

	started      time.Time
	chatCount    int
	peersSeen    int
	everRecorded bool
	everShared   bool
}

// New builds the in-room model. Wire Callbacks() into the session manager,
// then hand the manager back with SetSession before running the UI.
func New(userID string) *Model {
	in := textinput.New()
	in.Placeholder = "type a message and press enter"
	in.CharLimit = 500
	in.Prompt = ui.ChatSelfStyle.Render("> ")
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.SpinnerStyle

	return &Model{
		userID:  userID,
		input:   in,
		spin:    sp,
		events:  make(chan tea.Msg, 64),
		started: time.Now(),
	}
}

// SetSession attaches the session manager the key bindings drive. Must be
// called before the model runs.
func (m *Model) SetSession(mgr *session.Manager) {
	m.session = mgr
}

// Callbacks returns the session callback set that feeds this model. Events
// are dropped rather than blocking the session's goroutines when the UI
// falls behind.
func (m *Model) Callbacks() session.Callbacks {
	push := func(msg tea.Msg) {
		select {
		case m.events <- msg:
		default:
		}
	}

	return session.Callbacks{
		OnParticipantJoined: func(id, userID string) {
			push(participantMsg{id: id, userID: userID, joined: true})
		},
		OnParticipantLeft: func(id string) {
			push(participantMsg{id: id})
		},
		OnChatMessage: func(msg signaling.ChatMessage) {
			push(chatMsg{msg: msg})
		},
		OnRecordingStarted: func() { push(recordingMsg{on: true}) },
		OnRecordingStopped: func() { push(recordingMsg{on: false}) },
		OnScreenShareStarted: func(id string) {
			push(screenShareMsg{id: id, on: true})
		},
		OnScreenShareStopped: func(id string) {
			push(screenShareMsg{id: id})
		},
		OnMediaChanged: func(id string, state signaling.MediaState) {
			push(mediaMsg{id: id, state: state})
		},
		OnError: func(err error) { push(sessionErrMsg{err: err}) },
	}
}

// Summary reports what happened during the call, for the post-call table.
func (m *Model) Summary() ui.SessionSummary {
	return ui.SessionSummary{
		RoomID:       m.session.RoomID(),
		Duration:     time.Since(m.started),
		Participants: m.peersSeen,
		ChatMessages: m.chatCount,
		Recorded:     m.everRecorded,
		ScreenShared: m.everShared,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.spin.Tick,
		textinput.Blink,
		m.listen(),
		tick(),
	)
}

func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		return <-m.events
	}
}

func tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" {
				if err := m.session.SendChatMessage(text); err != nil {
					m.appendLog(ui.FormatError(err))
				} else {
					m.chatCount++
					m.appendLog(fmt.Sprintf("%s %s",
						ui.ChatSelfStyle.Render(m.userID+":"), text))
				}
				m.input.Reset()
			}
			return m, nil

		case "ctrl+a":
			muted := m.session.ToggleAudio()
			m.appendEvent(onOff(ui.IconMic+" microphone", !muted))
			return m, nil

		case "ctrl+o":
			muted := m.session.ToggleVideo()
			m.appendEvent(onOff(ui.IconCamera+" camera", !muted))
			return m, nil

		case "ctrl+s":
			if m.session.MediaState().ScreenSharing {
				if err := m.session.StopScreenShare(); err != nil {
					m.appendLog(ui.FormatError(err))
				}
			} else if err := m.session.StartScreenShare(); err != nil {
				m.appendLog(ui.FormatError(err))
			}
			return m, nil

		case "ctrl+r":
			var err error
			if m.session.MediaState().Recording {
				err = m.session.StopRecording()
			} else {
				err = m.session.StartRecording()
			}
			if err != nil {
				m.appendLog(ui.FormatError(err))
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-4)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		if m.session.State() == session.StateIdle && !m.quitting {
			// the transport died underneath us; errors already logged
			m.quitting = true
			return m, tea.Quit
		}
		cmds = append(cmds, tick())

	case chatMsg:
		m.chatCount++
		m.appendLog(fmt.Sprintf("%s %s",
			ui.ChatSenderStyle.Render(msg.msg.Sender+":"), msg.msg.Text))
		cmds = append(cmds, m.listen())

	case participantMsg:
		if msg.joined {
			m.peersSeen++
			m.appendEvent(fmt.Sprintf("%s %s joined", ui.IconPeer, displayName(msg.userID, msg.id)))
		} else {
			m.appendEvent(fmt.Sprintf("%s %s left", ui.IconLeave, shortID(msg.id)))
		}
		cmds = append(cmds, m.listen())

	case recordingMsg:
		if msg.on {
			m.everRecorded = true
			m.appendEvent(ui.IconRecording + " recording started")
		} else {
			m.appendEvent(ui.IconRecording + " recording stopped")
		}
		cmds = append(cmds, m.listen())

	case screenShareMsg:
		if msg.on {
			m.everShared = true
			m.appendEvent(fmt.Sprintf("%s %s started sharing their screen", ui.IconScreen, shortID(msg.id)))
		} else {
			m.appendEvent(fmt.Sprintf("%s %s stopped sharing", ui.IconScreen, shortID(msg.id)))
		}
		cmds = append(cmds, m.listen())

	case mediaMsg:
		m.appendEvent(fmt.Sprintf("%s %s: mic %s, camera %s",
			ui.IconPeer, shortID(msg.id),
			state(msg.state.Audio), state(msg.state.Video)))
		cmds = append(cmds, m.listen())

	case sessionErrMsg:
		m.appendLog(ui.FormatError(msg.err))
		cmds = append(cmds, m.listen())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.statusBar())
	b.WriteString("\n\n")

	if m.session.State() == session.StateJoining {
		b.WriteString(fmt.Sprintf("%s joining %s...\n", m.spin.View(), m.session.RoomID()))
	}

	for _, line := range m.log {
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(ui.MutedStyle.Render(
		"enter chat · ctrl+a mic · ctrl+o camera · ctrl+s screen · ctrl+r record · ctrl+c leave"))

	return b.String()
}

func (m *Model) statusBar() string {
	st := m.session.MediaState()

	parts := []string{
		ui.IconRoom + " " + m.session.RoomID(),
		fmt.Sprintf("%s %d", ui.IconPeer, m.session.PeerCount()),
		onOff(ui.IconMic, st.AudioEnabled),
		onOff(ui.IconCamera, st.VideoEnabled),
	}
	if st.ScreenSharing {
		parts = append(parts, ui.IconScreen+" sharing")
	}
	if st.Recording {
		parts = append(parts, ui.IconRecording+" REC")
	}
	if m.session.IsHost() {
		parts = append(parts, "host")
	}

	return ui.StatusStyle.Render(strings.Join(parts, "  "))
}

func (m *Model) appendLog(line string) {
	m.log = append(m.log, line)
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *Model) appendEvent(line string) {
	m.appendLog(ui.EventStyle.Render(line))
}

func onOff(label string, on bool) string {
	if on {
		return label + " on"
	}
	return label + " off"
}

func state(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func displayName(userID, participantID string) string {
	if userID != "" {
		return userID
	}
	return shortID(participantID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the in-room UI and blocks until the user leaves or the
// session ends.
func Run(m *Model) error {
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
