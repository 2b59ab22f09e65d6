// Package dashboard renders live mover and station tables in the terminal.
package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"
	"github.com/signalsfoundry/transport-simulator/kb"
	"github.com/signalsfoundry/transport-simulator/model"
)

var (
	moverHeader   = []string{"Mover", "Segment", "Offset", "Speed", "State", "Flags", "Station"}
	stationHeader = []string{"Station", "Occupant", "Waiting", "Moving in", "Moving out"}
)

// Dashboard holds the widgets. It reads only from the knowledge base.
type Dashboard struct {
	store    *kb.KnowledgeBase
	status   *widgets.Paragraph
	movers   *widgets.Table
	stations *widgets.Table
	grid     *ui.Grid
}

// New builds the widgets. No terminal is needed until Run.
func New(store *kb.KnowledgeBase) *Dashboard {
	status := widgets.NewParagraph()
	status.Title = "Simulation"

	movers := widgets.NewTable()
	movers.Title = "Movers"
	movers.RowSeparator = false
	movers.TextStyle = ui.NewStyle(ui.ColorWhite)
	movers.RowStyles[0] = ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)

	stations := widgets.NewTable()
	stations.Title = "Stations"
	stations.RowSeparator = false
	stations.TextStyle = ui.NewStyle(ui.ColorWhite)
	stations.RowStyles[0] = ui.NewStyle(ui.ColorCyan, ui.ColorClear, ui.ModifierBold)

	grid := ui.NewGrid()
	grid.Set(
		ui.NewRow(0.15, status),
		ui.NewRow(0.55, movers),
		ui.NewRow(0.30, stations),
	)

	d := &Dashboard{store: store, status: status, movers: movers, stations: stations, grid: grid}
	d.refresh()
	return d
}

func (d *Dashboard) refresh() {
	snap, ok := d.store.Latest()
	d.status.Text = StatusLine(snap, ok)
	d.movers.Rows = MoverRows(d.store.ListMovers())
	d.stations.Rows = StationRows(d.store.ListStations())
}

// Run takes over the terminal and redraws every interval until ctx is done
// or the user presses q or Ctrl-C.
func (d *Dashboard) Run(ctx context.Context, interval time.Duration) error {
	if err := ui.Init(); err != nil {
		return fmt.Errorf("init termui: %w", err)
	}
	defer ui.Close()

	w, h := ui.TerminalDimensions()
	d.grid.SetRect(0, 0, w, h)
	ui.Render(d.grid)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	events := ui.PollEvents()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			switch e.ID {
			case "q", "<C-c>":
				return nil
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				ui.Render(d.grid)
			}
		case <-ticker.C:
			d.refresh()
			ui.Render(d.grid)
		}
	}
}

// StatusLine summarises the latest snapshot.
func StatusLine(snap model.Snapshot, ok bool) string {
	if !ok {
		return "waiting for first step..."
	}
	onPath, blocked := 0, 0
	for _, m := range snap.Movers {
		if m.Segment != "" {
			onPath++
		}
		if m.Blocked {
			blocked++
		}
	}
	return fmt.Sprintf("tick %d  t=%.2fs  movers %d (%d on path, %d blocked)  carriers %d  [q] quit",
		snap.Tick, snap.Time, len(snap.Movers), onPath, blocked, len(snap.Carriers))
}

// MoverRows formats movers as table rows, header first.
func MoverRows(movers []model.MoverSnapshot) [][]string {
	rows := [][]string{moverHeader}
	for _, m := range movers {
		var flags []string
		if m.Blocked {
			flags = append(flags, "blocked")
		}
		if m.AtPathEnd {
			flags = append(flags, "end")
		}
		rows = append(rows, []string{
			m.ID,
			orDash(m.Segment),
			fmt.Sprintf("%.3f", m.Offset),
			fmt.Sprintf("%.0f", m.Speed),
			m.State,
			orDash(strings.Join(flags, ",")),
			orDash(m.Station),
		})
	}
	return rows
}

// StationRows formats stations as table rows, header first.
func StationRows(stations []model.StationSnapshot) [][]string {
	rows := [][]string{stationHeader}
	for _, s := range stations {
		rows = append(rows, []string{
			s.ID,
			orDash(s.Occupant),
			orDash(strings.Join(s.Waiting, ",")),
			orDash(strings.Join(s.MovingIn, ",")),
			orDash(strings.Join(s.MovingOut, ",")),
		})
	}
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
