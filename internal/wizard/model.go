package wizard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wifiportal/internal/credentials"
	"github.com/muurk/wifiportal/internal/discovery"
	"github.com/muurk/wifiportal/internal/radio"
)

// Screen is the active wizard step
type Screen int

const (
	ScreenDiscover Screen = iota
	ScreenNetworks
	ScreenCredentials
	ScreenSubmitting
	ScreenDone
	ScreenFailed
)

// Finder locates portals on the local network. *discovery.Scanner
// implements it.
type Finder interface {
	ScanForPortals(ctx context.Context) ([]*discovery.Portal, error)
}

// PortalAPI is the subset of the portal client the wizard drives
type PortalAPI interface {
	Scan(ctx context.Context) ([]radio.Network, error)
	Save(ctx context.Context, ssid, password string) error
}

// Dialer builds a PortalAPI for a portal base URL
type Dialer func(baseURL string) PortalAPI

// Options configures a wizard
type Options struct {
	Finder Finder
	Dial   Dialer

	// PortalURL skips discovery and goes straight to the network scan
	PortalURL string
}

type portalsMsg struct {
	portals []*discovery.Portal
	err     error
}

type networksMsg struct {
	networks []radio.Network
	err      error
}

type savedMsg struct{ err error }

type portalItem struct{ portal *discovery.Portal }

func (i portalItem) Title() string       { return i.portal.APName }
func (i portalItem) Description() string { return i.portal.BaseURL() + "  " + i.portal.Hostname }
func (i portalItem) FilterValue() string { return i.portal.APName }

type networkItem struct{ network radio.Network }

func (i networkItem) Title() string { return i.network.SSID }
func (i networkItem) Description() string {
	return fmt.Sprintf("%d dBm  %s", i.network.RSSI, i.network.Encryption)
}
func (i networkItem) FilterValue() string { return i.network.SSID }

// Model is the Bubble Tea model for the interactive provisioning wizard:
// find a portal, pick a network, enter the passphrase, save.
type Model struct {
	ctx  context.Context
	opts Options

	screen    Screen
	busy      bool
	err       error
	warnings  []string
	portalURL string
	client    PortalAPI

	portals  list.Model
	networks list.Model
	ssid     textinput.Model
	password textinput.Model
	focus    int

	spinner spinner.Model
	help    help.Model
	keys    keyMap

	width  int
	height int
}

// New creates a wizard model. ctx bounds every network operation it starts.
func New(ctx context.Context, opts Options) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ssid := textinput.New()
	ssid.Placeholder = "network name"
	ssid.CharLimit = 64
	ssid.Width = 32

	password := textinput.New()
	password.Placeholder = "passphrase (empty for open networks)"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 64
	password.Width = 32

	portals := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	portals.Title = "Setup portals"
	portals.SetShowStatusBar(false)
	portals.SetShowHelp(false)

	networks := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	networks.Title = "Networks in range"
	networks.SetShowStatusBar(false)
	networks.SetShowHelp(false)

	m := Model{
		ctx:      ctx,
		opts:     opts,
		portals:  portals,
		networks: networks,
		ssid:     ssid,
		password: password,
		spinner:  s,
		help:     help.New(),
		keys:     newKeyMap(),
		width:    72,
		height:   24,
	}
	m.resize()

	if opts.PortalURL != "" {
		m.portalURL = opts.PortalURL
		m.client = opts.Dial(opts.PortalURL)
		m.screen = ScreenNetworks
	}
	m.busy = true
	return m
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	if m.screen == ScreenNetworks {
		return tea.Batch(m.spinner.Tick, m.scanNetworks())
	}
	return tea.Batch(m.spinner.Tick, m.findPortals())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case portalsMsg:
		m.busy = false
		m.err = msg.err
		items := make([]list.Item, len(msg.portals))
		for i, p := range msg.portals {
			items[i] = portalItem{portal: p}
		}
		return m, m.portals.SetItems(items)

	case networksMsg:
		m.busy = false
		m.err = msg.err
		items := make([]list.Item, len(msg.networks))
		for i, n := range msg.networks {
			items[i] = networkItem{network: n}
		}
		return m, m.networks.SetItems(items)

	case savedMsg:
		m.busy = false
		m.err = msg.err
		if msg.err != nil {
			m.screen = ScreenFailed
		} else {
			m.screen = ScreenDone
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case ScreenDiscover:
		if m.busy || m.portals.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Rescan):
			m.busy, m.err = true, nil
			return m, tea.Batch(m.spinner.Tick, m.findPortals())
		case key.Matches(msg, m.keys.Select):
			item, ok := m.portals.SelectedItem().(portalItem)
			if !ok {
				return m, nil
			}
			m.portalURL = item.portal.BaseURL()
			m.client = m.opts.Dial(m.portalURL)
			m.screen = ScreenNetworks
			m.busy, m.err = true, nil
			return m, tea.Batch(m.spinner.Tick, m.scanNetworks())
		}

	case ScreenNetworks:
		if m.busy || m.networks.FilterState() == list.Filtering {
			break
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			if m.opts.PortalURL != "" {
				return m, nil
			}
			m.screen, m.err = ScreenDiscover, nil
			return m, nil
		case key.Matches(msg, m.keys.Rescan):
			m.busy, m.err = true, nil
			return m, tea.Batch(m.spinner.Tick, m.scanNetworks())
		case key.Matches(msg, m.keys.Manual):
			return m.editCredentials(""), textinput.Blink
		case key.Matches(msg, m.keys.Select):
			item, ok := m.networks.SelectedItem().(networkItem)
			if !ok {
				return m, nil
			}
			return m.editCredentials(item.network.SSID), textinput.Blink
		}

	case ScreenCredentials:
		switch {
		case key.Matches(msg, m.keys.Back):
			m.screen = ScreenNetworks
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.setFocus(1 - m.focus)
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			return m.submit()
		}

	case ScreenFailed:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Retry):
			return m.submit()
		case key.Matches(msg, m.keys.Edit):
			return m.editCredentials(m.ssid.Value()), textinput.Blink
		}

	case ScreenDone:
		if key.Matches(msg, m.keys.Quit) || msg.Type == tea.KeyEnter {
			return m, tea.Quit
		}
		return m, nil

	case ScreenSubmitting:
		return m, nil
	}

	return m.updateFocused(msg)
}

// updateFocused forwards a message to the component that owns the screen
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenDiscover:
		m.portals, cmd = m.portals.Update(msg)
	case ScreenNetworks:
		m.networks, cmd = m.networks.Update(msg)
	case ScreenCredentials:
		if m.focus == 0 {
			m.ssid, cmd = m.ssid.Update(msg)
		} else {
			m.password, cmd = m.password.Update(msg)
		}
	}
	return m, cmd
}

func (m Model) editCredentials(ssid string) Model {
	m.screen = ScreenCredentials
	m.err = nil
	m.warnings = nil
	if ssid != "" {
		m.ssid.SetValue(ssid)
		m.setFocus(1)
	} else {
		m.setFocus(0)
	}
	return m
}

func (m *Model) setFocus(i int) {
	m.focus = i
	if i == 0 {
		m.ssid.Focus()
		m.password.Blur()
	} else {
		m.ssid.Blur()
		m.password.Focus()
	}
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	ssid, password := m.ssid.Value(), m.password.Value()

	warnings, critical := credentials.SeparateWarningsAndErrors(credentials.ValidateCredential(ssid, password))
	if len(critical) > 0 {
		m.screen = ScreenCredentials
		m.err = critical[0]
		return m, nil
	}
	m.warnings = m.warnings[:0]
	for _, w := range warnings {
		m.warnings = append(m.warnings, w.Error())
	}

	m.screen = ScreenSubmitting
	m.busy, m.err = true, nil
	return m, tea.Batch(m.spinner.Tick, m.save(ssid, password))
}

func (m *Model) resize() {
	w, h := m.width-8, m.height-10
	if w < 20 {
		w = 20
	}
	if h < 5 {
		h = 5
	}
	m.portals.SetSize(w, h)
	m.networks.SetSize(w, h)
}

func (m Model) findPortals() tea.Cmd {
	finder, ctx := m.opts.Finder, m.ctx
	return func() tea.Msg {
		portals, err := finder.ScanForPortals(ctx)
		return portalsMsg{portals: portals, err: err}
	}
}

func (m Model) scanNetworks() tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		networks, err := client.Scan(ctx)
		return networksMsg{networks: networks, err: err}
	}
}

func (m Model) save(ssid, password string) tea.Cmd {
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		return savedMsg{err: client.Save(ctx, ssid, password)}
	}
}

// View implements tea.Model
func (m Model) View() string {
	var body string
	switch m.screen {
	case ScreenDiscover:
		body = m.listView(m.portals, "Searching for setup portals...", "No setup portals found. Join the device's access point and press r.")
	case ScreenNetworks:
		body = m.listView(m.networks, "Asking the portal to scan...", "The portal found no networks. Press e to enter an SSID.")
	case ScreenCredentials:
		body = m.credentialsView()
	case ScreenSubmitting:
		body = fmt.Sprintf("%s Saving credentials for %q...", m.spinner.View(), m.ssid.Value())
	case ScreenDone:
		body = SuccessStyle.Render("✓ Credentials saved.") + "\n\n" +
			SubtitleStyle.Render(fmt.Sprintf("The device is restarting and will join %q.", m.ssid.Value()))
	case ScreenFailed:
		body = ErrorStyle.Render("✗ Save failed") + "\n\n" + m.errLine()
	}

	header := TitleStyle.Render(AppName)
	if m.portalURL != "" {
		header += "  " + SubtitleStyle.Render(m.portalURL)
	}

	content := strings.Join([]string{header, body, "", m.help.View(m.keys.forScreen(m.screen))}, "\n")
	return ContainerStyle.Width(m.width - 2).Render(content)
}

func (m Model) listView(l list.Model, busyText, emptyText string) string {
	if m.busy {
		return m.spinner.View() + " " + busyText
	}
	if m.err != nil {
		return m.errLine()
	}
	if len(l.Items()) == 0 {
		return WarningStyle.Render(emptyText)
	}
	return l.View()
}

func (m Model) credentialsView() string {
	label := func(text string, focused bool) string {
		if focused {
			return FocusedLabelStyle.Render(text)
		}
		return LabelStyle.Render(text)
	}

	lines := []string{
		label("SSID", m.focus == 0) + m.ssid.View(),
		label("Password", m.focus == 1) + m.password.View(),
	}
	if m.err != nil {
		lines = append(lines, "", m.errLine())
	}
	for _, w := range m.warnings {
		lines = append(lines, WarningStyle.Render("⚠ "+w))
	}
	return strings.Join(lines, "\n")
}

func (m Model) errLine() string {
	if m.err == nil {
		return ""
	}
	return ErrorStyle.Render("Error: ") + m.err.Error()
}

// Screen returns the active screen
func (m Model) Screen() Screen {
	return m.screen
}

// Err returns the last error shown by the wizard
func (m Model) Err() error {
	return m.err
}

// Run starts the wizard full-screen and blocks until the user quits. It
// reports whether credentials were saved.
func Run(ctx context.Context, opts Options) (bool, error) {
	final, err := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil {
		return false, err
	}
	m, ok := final.(Model)
	return ok && m.screen == ScreenDone, nil
}
