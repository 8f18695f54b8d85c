// Package tray provides a system tray indicator showing the finger count.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
)

// Tray represents the system tray application.
type Tray struct {
	onRecalibrate func()
	onPreview     func()
	onQuit        func()
	status        string
	title         string
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
}

// New creates a new Tray instance showing the calibrating status.
func New() *Tray {
	return &Tray{
		status: "Calibrating",
		title:  "…",
	}
}

// OnRecalibrate sets the callback function to be called when recalibration is requested.
func (t *Tray) OnRecalibrate(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecalibrate = fn
}

// OnPreview sets the callback function to be called when the preview menu item is clicked.
func (t *Tray) OnPreview(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPreview = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray event loop, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	t.mu.Lock()
	systray.SetTitle(t.title)
	systray.SetTooltip("fingercount")

	t.menuStatus = systray.AddMenuItem(t.status, "Current reading")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuRecalibrate := systray.AddMenuItem("Recalibrate", "Capture a new empty background")
	menuPreview := systray.AddMenuItem("Open Preview...", "Open the annotated preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit fingercount")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuRecalibrate.ClickedCh:
				t.invoke(func() func() { return t.onRecalibrate })
			case <-menuPreview.ClickedCh:
				t.invoke(func() func() { return t.onPreview })
			case <-menuQuit.ClickedCh:
				t.invoke(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

// invoke reads a callback under the lock and calls it outside the lock.
func (t *Tray) invoke(get func() func()) {
	t.mu.RLock()
	callback := get()
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// SetCount updates the tray title and status line. available is false while
// calibrating, when observed and quota describe the progress.
func (t *Tray) SetCount(count int, available bool, observed, quota int) {
	title, status := Labels(count, available, observed, quota)

	t.mu.Lock()
	defer t.mu.Unlock()

	if title == t.title && status == t.status {
		return
	}
	t.title, t.status = title, status

	if t.menuStatus != nil {
		systray.SetTitle(title)
		t.menuStatus.SetTitle(status)
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Labels returns the tray title and status line for a reading.
func Labels(count int, available bool, observed, quota int) (title, status string) {
	if !available {
		pct := 0
		if quota > 0 {
			pct = 100 * min(observed, quota) / quota
		}
		return "…", fmt.Sprintf("Calibrating %d%%", pct)
	}
	if count == 1 {
		return "1", "1 finger"
	}
	return fmt.Sprintf("%d", count), fmt.Sprintf("%d fingers", count)
}
