package gui

import (
	"fmt"
	"strings"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// maxLogLines bounds the log view; older lines are dropped first.
const maxLogLines = 500

// App is a progress window for one migration run. It satisfies processor.Reporter.
type App struct {
	window   fyne.Window
	logView  *widget.TextGrid
	progress *widget.ProgressBar
	status   *widget.Label
	openBtn  *widget.Button

	mu      sync.Mutex
	lines   []string
	openURL string
	opener  func(url string) error
}

func New() *App {
	return newApp(app.NewWithID("com.orait.attachment-migrator"))
}

func newApp(a fyne.App) *App {
	w := a.NewWindow("Attachment Migrator")

	g := &App{
		window:   w,
		logView:  widget.NewTextGrid(),
		progress: widget.NewProgressBar(),
		status:   widget.NewLabel("Starting..."),
	}
	g.openBtn = widget.NewButton("Open in Salesforce", g.handleOpen)
	g.openBtn.Disable()

	logScroll := container.NewScroll(g.logView)
	logScroll.SetMinSize(fyne.NewSize(600, 300))

	w.SetContent(container.NewVBox(
		container.NewVBox(g.status, g.progress),
		logScroll,
		container.NewHBox(g.openBtn),
	))
	w.Resize(fyne.NewSize(700, 500))
	return g
}

// Show displays the window and blocks until it is closed.
func (a *App) Show() {
	a.window.ShowAndRun()
}

func (a *App) Log(format string, args ...any) {
	a.mu.Lock()
	a.lines = append(a.lines, fmt.Sprintf(format, args...))
	if len(a.lines) > maxLogLines {
		a.lines = a.lines[len(a.lines)-maxLogLines:]
	}
	text := strings.Join(a.lines, "\n")
	a.mu.Unlock()

	a.logView.SetText(text)
}

func (a *App) SetStatus(status string) {
	a.status.SetText(status)
}

func (a *App) SetProgress(value float64) {
	a.progress.SetValue(value)
}

func (a *App) ShowError(title string, err error) {
	a.SetStatus(title)
	dialog.ShowError(err, a.window)
}

// EnableOpen activates the open button for url, handing it to opener when clicked.
func (a *App) EnableOpen(url string, opener func(url string) error) {
	a.mu.Lock()
	a.openURL = url
	a.opener = opener
	a.mu.Unlock()
	a.openBtn.Enable()
}

func (a *App) handleOpen() {
	a.mu.Lock()
	url, opener := a.openURL, a.opener
	a.mu.Unlock()
	if url == "" || opener == nil {
		return
	}
	if err := opener(url); err != nil {
		a.ShowError("Failed to open browser", err)
	}
}
