package service

import (
	"context"
	"time"

	"github.com/wricardo/kiosk-shell/catalog"
	"github.com/wricardo/kiosk-shell/kiosk/idle"
	"github.com/wricardo/kiosk-shell/kiosk/navigation"
	"github.com/wricardo/kiosk-shell/kiosk/record"
	"github.com/wricardo/kiosk-shell/kiosk/registry"
)

// KioskService defines every operation offered to the presentation layer
type KioskService interface {
	// Views
	ShowView(ctx context.Context, id string) error
	HideView(ctx context.Context, id string) error
	NavigateView(ctx context.Context, id, url string) error
	NavigationControl(ctx context.Context, id, action string) error
	CanGoBack(ctx context.Context, id string) (bool, error)
	CurrentURL(ctx context.Context, id string) (string, bool, error)
	RemoveElements(ctx context.Context, id, selector string) error
	ListViews(ctx context.Context) ([]registry.Info, error)
	DestroyAllViews(ctx context.Context) error

	// Idle timer
	SetIdleTimeout(ctx context.Context, timeout time.Duration) error
	StopIdleTimer(ctx context.Context) error
	StartIdleTimer(ctx context.Context) error
	SuppressIdle(ctx context.Context, suppressed bool) error
	RecordActivity(ctx context.Context, kind string) error
	IdleStatus(ctx context.Context) (*idle.Status, error)

	// Catalog and kiosk record
	ListPages(ctx context.Context) ([]catalog.Page, error)
	GetKiosk(ctx context.Context) (*record.Info, error)
	SaveKiosk(ctx context.Context, info record.Info) error
	ResetKiosk(ctx context.Context) error

	// Quit tears every view down and asks the process to exit
	Quit(ctx context.Context) error
}

// Lifecycle drives views through their state machine
type Lifecycle interface {
	Show(ctx context.Context, id string) error
	Hide(ctx context.Context, id string) error
	DestroyAll(ctx context.Context) error
	Views() []registry.Info
}

// Navigator runs navigation against live views
type Navigator interface {
	CanGoBack(ctx context.Context, id string) bool
	Control(ctx context.Context, id string, action navigation.Action) error
	LoadURL(ctx context.Context, id, url string) error
	CurrentURL(ctx context.Context, id string) (string, bool)
	RemoveElements(ctx context.Context, id, selector string) error
}

// IdleTimer is the process-wide idle countdown
type IdleTimer interface {
	Activity()
	Start()
	Stop()
	SetTimeout(d time.Duration) error
	SetSuppressed(suppressed bool)
	Status() idle.Status
}

// PageCatalog lists the pages the kiosk can host
type PageCatalog interface {
	Page(id string) (catalog.Page, bool)
	Pages() []catalog.Page
}

// Deps are the collaborators a KioskService delegates to
type Deps struct {
	Lifecycle Lifecycle
	Navigator Navigator
	Idle      IdleTimer
	Pages     PageCatalog
	Record    record.Store

	// OnQuit is called once every view is gone
	OnQuit func()
}
