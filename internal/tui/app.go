// Package tui is the terminal dashboard for a deepsearchd session. It
// polls the control API and renders daemon state, job progress, recent
// watch hits and the cumulative statistics.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/BENZOOgataga/DeepSearch/internal/tui/client"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const pollInterval = time.Second

// App is the dashboard application shell.
type App struct {
	app    *tview.Application
	client *client.Client

	header *tview.TextView
	jobs   *tview.Table
	hits   *tview.TextView
	stats  *tview.TextView
	footer *tview.TextView

	session string
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewApp creates the dashboard bound to a daemon client.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		app:     tview.NewApplication(),
		client:  c,
		header:  tview.NewTextView().SetDynamicColors(true),
		jobs:    tview.NewTable(),
		hits:    tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
		stats:   tview.NewTextView().SetDynamicColors(true),
		footer:  tview.NewTextView().SetDynamicColors(true),
		session: sessionName,
		ctx:     ctx,
		cancel:  cancel,
	}

	a.jobs.SetBorder(true).SetTitle(" Jobs ")
	a.hits.SetBorder(true).SetTitle(" Watch hits ")
	a.stats.SetBorder(true).SetTitle(" Statistics ")
	a.footer.SetText("[yellow]q[-]:quit  [yellow]c[-]:clear caches  [yellow]x[-]:cancel selected job")

	a.setupBindings()
	return a
}

func (a *App) setupBindings() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q':
			a.app.Stop()
			return nil
		case 'c':
			go func() {
				_, _ = a.client.ClearCaches(a.ctx)
				a.refresh()
			}()
			return nil
		case 'x':
			row, _ := a.jobs.GetSelection()
			if cell := a.jobs.GetCell(row, 0); cell != nil && cell.Text != "" {
				kind := cell.Text
				go func() {
					_ = a.client.Cancel(a.ctx, kind)
					a.refresh()
				}()
			}
			return nil
		}
		return event
	})

	a.jobs.SetSelectable(true, false)
}

// Run starts the poll loop and blocks until the user quits.
func (a *App) Run() error {
	defer a.cancel()

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.header, 1, 0, false).
		AddItem(a.jobs, 0, 2, true).
		AddItem(tview.NewFlex().
			AddItem(a.hits, 0, 2, false).
			AddItem(a.stats, 0, 1, false), 0, 3, false).
		AddItem(a.footer, 1, 0, false)

	go a.pollLoop()

	return a.app.SetRoot(layout, true).Run()
}

func (a *App) pollLoop() {
	a.refresh()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.refresh()
		case <-a.ctx.Done():
			return
		}
	}
}

// refresh pulls a fresh snapshot of everything and redraws. Fetch errors
// surface in the header instead of tearing the UI down; the daemon may
// just be restarting.
func (a *App) refresh() {
	ctx, cancel := context.WithTimeout(a.ctx, 3*time.Second)
	defer cancel()

	info, err := a.client.Status(ctx)
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.header.SetText(fmt.Sprintf("[red]session %s: daemon unreachable (%v)[-]", a.session, err))
		})
		return
	}
	jobs, _ := a.client.Jobs(ctx)
	hits, _ := a.client.Hits(ctx, 20)
	agg, _ := a.client.Stats(ctx)

	a.app.QueueUpdateDraw(func() {
		a.header.SetText(fmt.Sprintf(" session [yellow]%s[-]  state [green]%s[-]  archive %d msgs  hits %d  keywords %d",
			a.session, info.State, info.ArchivedMessages, info.WatchHits, info.Keywords))

		a.jobs.Clear()
		for col, h := range []string{"KIND", "STATE", "PROGRESS"} {
			a.jobs.SetCell(0, col, tview.NewTableCell(h).
				SetTextColor(tcell.ColorYellow).SetSelectable(false))
		}
		for i, j := range jobs {
			state, progress := "idle", ""
			if j.Running {
				state = "running"
				if j.Update != nil {
					progress = fmt.Sprintf("%d/%d channels, %d msgs, %d matches",
						j.Update.ChannelsSearched, j.Update.ChannelsTotal,
						j.Update.MessagesScanned, j.Update.MatchesFound)
				}
			} else if j.Summary != nil {
				state = j.Status
				progress = fmt.Sprintf("%d matches in %d msgs",
					j.Summary.MatchesFound, j.Summary.MessagesScanned)
			}
			a.jobs.SetCell(i+1, 0, tview.NewTableCell(j.Kind))
			a.jobs.SetCell(i+1, 1, tview.NewTableCell(state))
			a.jobs.SetCell(i+1, 2, tview.NewTableCell(progress).SetExpansion(1))
		}

		a.hits.Clear()
		if len(hits) == 0 {
			fmt.Fprint(a.hits, "[gray]no watch hits recorded[-]")
		}
		for _, h := range hits {
			ts := time.UnixMilli(h.Timestamp).Format("01-02 15:04")
			fmt.Fprintf(a.hits, "[gray]%s[-] [yellow]%s[-] %s in %s: %s\n",
				ts, h.Keyword, h.SenderName, h.ChannelName, h.Body)
		}

		a.stats.Clear()
		if agg != nil {
			fmt.Fprintf(a.stats, "searches   %d\n", agg.TotalSearches)
			fmt.Fprintf(a.stats, "deep       %d\n", agg.DeepSearches)
			fmt.Fprintf(a.stats, "cancelled  %d\n", agg.CancelledSearches)
			fmt.Fprintf(a.stats, "messages   %d\n", agg.TotalMessagesSearched)
			fmt.Fprintf(a.stats, "matches    %d\n", agg.TotalMatchesFound)
			fmt.Fprintf(a.stats, "time       %.1fs\n", agg.SearchTimeTotal)
			if agg.LastSearch != nil {
				fmt.Fprintf(a.stats, "last       %q by %s\n", agg.LastSearch.Query, agg.LastSearch.User)
			}
		}
	})
}
