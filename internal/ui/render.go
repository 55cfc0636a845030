package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/gemd/internal/discovery"
)

// Field is one labelled value in a header or result box. Fields render in
// the order given.
type Field struct {
	Key   string
	Value string
}

func renderFields(fields []Field) string {
	keyWidth := 0
	for _, f := range fields {
		if w := lipgloss.Width(f.Key); w > keyWidth {
			keyWidth = w
		}
	}

	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		key := FieldKeyStyle.Render(f.Key + ":" + strings.Repeat(" ", keyWidth-lipgloss.Width(f.Key)))
		lines = append(lines, key+" "+FieldValueStyle.Render(f.Value))
	}
	return strings.Join(lines, "\n")
}

// RenderHeader renders a command banner: title, command line and the
// settings the command is running with.
func RenderHeader(title, command string, fields []Field, width int) string {
	top := lipgloss.JoinVertical(lipgloss.Left,
		HeaderTitleStyle.Render(strings.ToUpper(title)),
		HeaderCommandStyle.Render(command),
	)

	content := top
	if len(fields) > 0 {
		dividerWidth := width - 8
		if dividerWidth < 10 {
			dividerWidth = 10
		}
		divider := lipgloss.NewStyle().
			Foreground(PrimaryColor).
			PaddingLeft(2).
			Render(strings.Repeat("─", dividerWidth))
		content = lipgloss.JoinVertical(lipgloss.Left, top, divider, renderFields(fields))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(max(width, MinTerminalWidth) - 2).
		Render(content)
}

// RenderSuccess renders a green result box.
func RenderSuccess(title string, fields []Field, width int) string {
	lines := []string{
		"",
		SuccessTitleStyle.Render(SuccessMarker + "  " + title),
	}
	if len(fields) > 0 {
		lines = append(lines, "", renderFields(fields))
	}
	lines = append(lines, "")

	return boxStyle(lipgloss.DoubleBorder(), SuccessColor, width).Render(strings.Join(lines, "\n"))
}

// RenderFailure renders a red result box with the error and optional hints.
func RenderFailure(title string, err error, hints []string, width int) string {
	lines := []string{
		"",
		ErrorTitleStyle.Render(FailureMarker + "  " + title),
	}
	if err != nil {
		lines = append(lines, "", ErrorMessageStyle.Render("Error: "+err.Error()))
	}
	if len(hints) > 0 {
		lines = append(lines, "")
		for _, hint := range hints {
			lines = append(lines, MutedStyle.Render("• "+hint))
		}
	}
	lines = append(lines, "")

	return boxStyle(lipgloss.DoubleBorder(), ErrorColor, width).Render(strings.Join(lines, "\n"))
}

// RenderCapsules renders discovered capsules, one entry per capsule with
// its gemini:// URL and any TXT metadata.
func RenderCapsules(capsules []*discovery.Capsule, width int) string {
	if len(capsules) == 0 {
		title := WarningTitleStyle.Render(WarningMarker + "  No capsules found")
		hint := MutedStyle.Render("Servers advertise themselves with 'gemd serve --mdns'.")
		return boxStyle(lipgloss.RoundedBorder(), WarningColor, width).
			Render(strings.Join([]string{"", title, "", hint, ""}, "\n"))
	}

	var entries []string
	for _, c := range capsules {
		entry := []string{
			CapsuleNameStyle.Render(c.Instance),
			CapsuleURLStyle.Render(c.URL()),
		}
		if c.Hostname != "" {
			entry = append(entry, MutedStyle.Render("host "+c.Hostname))
		}
		for _, key := range []string{"server", "version"} {
			if v := c.GetMetadata(key); v != "" {
				entry = append(entry, MutedStyle.Render(key+" "+v))
			}
		}
		entries = append(entries, strings.Join(entry, "\n"))
	}

	title := SuccessTitleStyle.Render(fmt.Sprintf("%s  %d capsule(s) found", SuccessMarker, len(capsules)))
	body := strings.Join(entries, "\n\n")
	return boxStyle(lipgloss.RoundedBorder(), PrimaryColor, width).
		Render(strings.Join([]string{"", title, "", body, ""}, "\n"))
}

// Printer writes rendered components to an output stream.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a Printer for w, or stdout when w is nil.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{out: w, width: GetTerminalWidth()}
}

// Width returns the render width used by this printer.
func (p *Printer) Width() int {
	return p.width
}

// Println writes content followed by a newline.
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

func (p *Printer) PrintHeader(title, command string, fields []Field) {
	p.Println(RenderHeader(title, command, fields, p.width))
}

func (p *Printer) PrintSuccess(title string, fields []Field) {
	p.Println(RenderSuccess(title, fields, p.width))
}

func (p *Printer) PrintFailure(title string, err error, hints []string) {
	p.Println(RenderFailure(title, err, hints, p.width))
}

func (p *Printer) PrintCapsules(capsules []*discovery.Capsule) {
	p.Println(RenderCapsules(capsules, p.width))
}
