package wizard

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding; each screen shows the subset that applies
type keyMap struct {
	Select key.Binding
	Rescan key.Binding
	Manual key.Binding
	Back   key.Binding
	Next   key.Binding
	Submit key.Binding
	Retry  key.Binding
	Edit   key.Binding
	Quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Rescan: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rescan")),
		Manual: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "enter SSID")),
		Back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Next:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Retry:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Edit:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// screenHelp adapts a binding list to help.KeyMap
type screenHelp []key.Binding

func (s screenHelp) ShortHelp() []key.Binding  { return s }
func (s screenHelp) FullHelp() [][]key.Binding { return [][]key.Binding{s} }

func (k keyMap) forScreen(s Screen) screenHelp {
	switch s {
	case ScreenDiscover:
		return screenHelp{k.Select, k.Rescan, k.Quit}
	case ScreenNetworks:
		return screenHelp{k.Select, k.Rescan, k.Manual, k.Back, k.Quit}
	case ScreenCredentials:
		return screenHelp{k.Next, k.Submit, k.Back}
	case ScreenFailed:
		return screenHelp{k.Retry, k.Edit, k.Quit}
	default:
		return screenHelp{k.Quit}
	}
}
