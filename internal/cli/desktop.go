package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v3/pkg/application"

	"go.detai.dev/companion"
	"go.detai.dev/companion/internal/app"
	"go.detai.dev/companion/snap"
)

const windowHeight = 720

// runDesktop runs the Wails app until the window is closed. A bind failure on
// the HTTP port is returned before the window opens.
func runDesktop(ctx context.Context, e *env) error {
	slog.Info("starting app", "edition", e.edition.Name, "version", e.build.Version, "commit", e.build.Commit, "date", e.build.Date)

	core, err := e.newCore()
	if err != nil {
		return err
	}

	service := app.New(core, e.build.Version, snap.Options{
		Interval: e.cfg.SnapInterval(),
		Width:    e.cfg.Snap.Width,
	}, e.cfg.Snap.Hotkey)

	wailsApp := application.New(application.Options{
		Name:        e.edition.Name,
		Description: e.edition.Description,
		Services: []application.Service{
			application.NewService(service),
		},
		Assets: application.AssetOptions{
			Handler: application.BundledAssetFileServer(companion.Assets),
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
	})

	mainWindow := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:       e.edition.Name,
		Width:       e.cfg.Snap.Width,
		Height:      windowHeight,
		URL:         "/",
		AlwaysOnTop: true,
		Mac: application.MacWindow{
			TitleBar:                application.MacTitleBarHiddenInsetUnified,
			InvisibleTitleBarHeight: 38,
		},
	})

	service.Init(wailsApp, mainWindow)
	if err := service.Start(ctx); err != nil {
		service.Shutdown()
		return fmt.Errorf("start %s: %w", e.edition.Name, err)
	}
	defer service.Shutdown()

	if err := wailsApp.Run(); err != nil {
		return fmt.Errorf("run app: %w", err)
	}
	return nil
}
