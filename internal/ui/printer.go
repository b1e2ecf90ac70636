package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiportal/internal/radio"
)

// Printer writes styled CLI output
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer for w. If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	p.width = width
	return p
}

// Width returns the width used for rendering
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(RenderHeader(title, command, params, p.width))
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(RenderResultBox(SuccessMarker+"  SUCCESS", title, details, SuccessColor, SuccessTitleStyle, p.width))
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(RenderResultBox(WarningMarker+"  WARNING", title, details, WarningColor, WarningTitleStyle, p.width))
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(RenderErrorBox(title, err, troubleshooting, p.width))
}

// PrintNetworks prints a scan result table, strongest signal first
func (p *Printer) PrintNetworks(networks []radio.Network) {
	p.Println(RenderNetworks(networks))
}

// RenderHeader renders a command header box. Params are listed in key order.
func RenderHeader(title, command string, params map[string]string, width int) string {
	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(title)),
		HeaderCommandStyle.Render(command),
	)
	if len(params) == 0 {
		return HeaderBorderStyle(width).Render(top)
	}

	var lines []string
	for _, key := range sortedKeys(params) {
		lines = append(lines, HeaderParamKeyStyle.Render(key+":")+" "+HeaderParamValueStyle.Render(params[key]))
	}

	dividerWidth := width - 6
	if dividerWidth < 10 {
		dividerWidth = 10
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		top,
		RenderHorizontalDivider(dividerWidth, "─"),
		strings.Join(lines, "\n"),
	)
	return HeaderBorderStyle(width).Render(content)
}

// RenderResultBox renders a titled box of key/value details
func RenderResultBox(label, title string, details map[string]string, color lipgloss.Color, titleStyle lipgloss.Style, width int) string {
	lines := []string{"", titleStyle.Render(fmt.Sprintf(" %s  ─  %s", label, title)), ""}
	for _, key := range sortedKeys(details) {
		lines = append(lines, ResultKeyStyle.Render(" "+key+":")+" "+ResultValueStyle.Render(details[key]))
	}
	if len(details) > 0 {
		lines = append(lines, "")
	}
	return ResultBoxStyle(width, color).Render(strings.Join(lines, "\n"))
}

// RenderErrorBox renders a failure box with optional troubleshooting tips
func RenderErrorBox(title string, err error, troubleshooting []string, width int) string {
	lines := []string{"", ErrorTitleStyle.Render(fmt.Sprintf(" %s  FAILED  ─  %s", FailureMarker, title)), ""}

	if err != nil {
		lines = append(lines, ErrorMessageStyle.Render(" Error: "+err.Error()), "")
	}

	if len(troubleshooting) > 0 {
		tips := []string{TroubleshootingTitleStyle.Render("Troubleshooting:"), ""}
		for _, tip := range troubleshooting {
			tips = append(tips, TroubleshootingItemStyle.Render("  • "+tip))
		}
		lines = append(lines, TroubleshootingBoxStyle(width).Render(strings.Join(tips, "\n")), "")
	}

	return ResultBoxStyle(width, ErrorColor).Render(strings.Join(lines, "\n"))
}

// RenderNetworks renders networks as an aligned table
func RenderNetworks(networks []radio.Network) string {
	if len(networks) == 0 {
		return MutedStyle.Render("  No networks found")
	}

	sorted := make([]radio.Network, len(networks))
	copy(sorted, networks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].RSSI > sorted[j].RSSI })

	ssidWidth := len("SSID")
	for _, n := range sorted {
		if w := lipgloss.Width(n.SSID); w > ssidWidth {
			ssidWidth = w
		}
	}

	var b strings.Builder
	header := fmt.Sprintf("  %-*s  %-6s  %-5s  %s", ssidWidth, "SSID", "SIGNAL", "RSSI", "SECURITY")
	b.WriteString(MutedStyle.Render(header))
	for _, n := range sorted {
		b.WriteString("\n")
		pad := strings.Repeat(" ", ssidWidth-lipgloss.Width(n.SSID))
		fmt.Fprintf(&b, "  %s%s  %-6s  %-5d  %s", n.SSID, pad, SignalBars(n.RSSI), n.RSSI, n.Encryption)
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
