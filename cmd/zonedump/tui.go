package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"zonedb/pkg/debug/ui"
	"zonedb/pkg/debug/zonereader"
	"zonedb/pkg/word"
)

const barWidth = 20

type browser struct {
	snap        *zonereader.Snapshot
	records     []zonereader.Record
	recordsErr  error
	currentView string // "zones", "zone", "records"
	selected    int
	zones       table.Model
	viewport    viewport.Model
	help        help.Model
	width       int
	height      int
}

func newBrowser(snap *zonereader.Snapshot) browser {
	columns := []table.Column{
		{Title: "Zone", Width: 5},
		{Title: "File", Width: 8},
		{Title: "Extents", Width: 8},
		{Title: "Free", Width: 6},
		{Title: "Usage", Width: barWidth + 2},
		{Title: "Fingerprint", Width: 11},
	}
	rows := make([]table.Row, len(snap.Zones))
	for i, z := range snap.Zones {
		rows[i] = table.Row{
			strconv.Itoa(int(z.Number)),
			z.File,
			strconv.Itoa(len(z.Extents)),
			strconv.Itoa(z.Control.FreeWords()),
			ui.UsageBar(z.Used(), word.ZoneWords, barWidth),
			fmt.Sprintf("%08x", z.Fingerprint),
		}
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(min(len(rows), 20)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(ui.PrimaryColor).Bold(true)
	styles.Selected = styles.Selected.Foreground(lipgloss.Color("#FFFFFF")).Background(ui.PrimaryColor)
	t.SetStyles(styles)

	records, err := snap.Records()
	return browser{
		snap:        snap,
		records:     records,
		recordsErr:  err,
		currentView: "zones",
		zones:       t,
		viewport:    viewport.New(80, 20),
		help:        help.New(),
	}
}

func (m browser) Init() tea.Cmd {
	return nil
}

func (m browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-8, 5)
		m.zones.SetHeight(min(len(m.snap.Zones), max(msg.Height-10, 3)))
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, ui.Keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, ui.Keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, ui.Keys.Records):
			m.currentView = "records"
			m.viewport.SetContent(m.renderRecords())
			m.viewport.GotoTop()
			return m, nil
		}

		switch m.currentView {
		case "zones":
			if key.Matches(msg, ui.Keys.Select) {
				m.open(m.zones.Cursor())
				return m, nil
			}
			var cmd tea.Cmd
			m.zones, cmd = m.zones.Update(msg)
			return m, cmd

		case "zone", "records":
			switch {
			case key.Matches(msg, ui.Keys.Back):
				m.currentView = "zones"
				return m, nil
			case m.currentView == "zone" && key.Matches(msg, ui.Keys.NextZone):
				m.open(min(m.selected+1, len(m.snap.Zones)-1))
				return m, nil
			case m.currentView == "zone" && key.Matches(msg, ui.Keys.PrevZone):
				m.open(max(m.selected-1, 0))
				return m, nil
			}
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// open switches to the detail view of zone i.
func (m *browser) open(i int) {
	if i < 0 || i >= len(m.snap.Zones) {
		return
	}
	m.selected = i
	m.zones.SetCursor(i)
	m.currentView = "zone"
	m.viewport.SetContent(m.renderZone(m.snap.Zones[i]))
	m.viewport.GotoTop()
}

func (m browser) View() string {
	var b strings.Builder
	b.WriteString(ui.RenderTitle("🗄", "zonedump "+m.snap.DB.String()))
	b.WriteString("\n\n")

	switch m.currentView {
	case "zones":
		b.WriteString(ui.RenderHeaderWithCount("Zones", len(m.snap.Zones)))
		b.WriteString("\n")
		b.WriteString(m.zones.View())
	case "zone":
		b.WriteString(ui.RenderHeaderWithCount("Zone "+m.snap.Zones[m.selected].File, len(m.snap.Zones[m.selected].Extents)))
		b.WriteString("\n")
		b.WriteString(m.viewport.View())
	case "records":
		b.WriteString(ui.RenderHeaderWithCount("Records", len(m.records)))
		b.WriteString("\n")
		b.WriteString(m.viewport.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.help.View(ui.Keys))
	return b.String()
}

func (m browser) renderZone(z zonereader.ZoneInfo) string {
	var b strings.Builder
	locked := "no"
	if z.Control.Locked {
		locked = "yes"
	}
	b.WriteString(ui.RenderFields(
		"header", fmt.Sprintf("%#o", uint64(z.Header)),
		"free start", strconv.Itoa(int(z.Control.Free)),
		"free words", strconv.Itoa(z.Control.FreeWords()),
		"locked", locked,
		"usage", ui.UsageBar(z.Used(), word.ZoneWords, barWidth),
	))
	b.WriteString("\n\n")

	header := fmt.Sprintf("%-4s %-6s %-6s %-12s", "ID", "Start", "Words", "Next")
	b.WriteString(ui.LabelStyle.Render(header))
	b.WriteString("\n")
	for _, d := range z.Extents {
		next := "-"
		if !d.Next.IsZero() {
			next = d.Next.String()
		}
		b.WriteString(fmt.Sprintf("%-4d %-6d %-6d %-12s\n", d.ID, d.Start, d.Length, next))
	}
	return b.String()
}

func (m browser) renderRecords() string {
	if m.recordsErr != nil {
		return ui.RenderError(m.recordsErr)
	}
	if len(m.records) == 0 {
		return ui.HelpStyle.Render("No records.")
	}

	var b strings.Builder
	header := fmt.Sprintf("%-18s %-10s %-8s %-6s %s", "Key", "Handle", "Bytes", "Date", "Data")
	b.WriteString(ui.LabelStyle.Render(header))
	b.WriteString("\n")
	width := max(m.width-48, 16)
	for _, r := range m.records {
		data, err := m.snap.Payload(r.Handle)
		preview := strconv.Quote(string(data))
		if err != nil {
			preview = ui.ErrorStyle.Render(err.Error())
		}
		b.WriteString(fmt.Sprintf("%-18s %-10s %-8d %-6d %s\n",
			fmt.Sprintf("%#o", uint64(r.Key)), r.Handle, r.Header.Len, r.Header.Date,
			ui.TruncateString(preview, width)))
	}
	return b.String()
}

func (m browser) renderStatusBar() string {
	var text string
	switch m.currentView {
	case "zones":
		text = fmt.Sprintf("%d zones · %d records", len(m.snap.Zones), len(m.records))
	case "zone":
		z := m.snap.Zones[m.selected]
		text = fmt.Sprintf("zone %d/%d · %d used · %d free", m.selected+1, len(m.snap.Zones), z.Used(), z.Control.FreeWords())
	case "records":
		text = fmt.Sprintf("%d records · %3.f%%", len(m.records), m.viewport.ScrollPercent()*100)
	}
	return lipgloss.NewStyle().Width(max(m.width, 0)).Render(ui.RenderStatusBar(text))
}
