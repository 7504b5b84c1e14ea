package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/codingsoft/community-hub/internal/store"
)

// ErrDownloadsDisabled is returned when a bundle import is attempted while
// bundle downloads are switched off.
var ErrDownloadsDisabled = errors.New("community hub bundle downloads are not enabled")

// ItemApplier installs a text-based item (system prompt or slash command)
// into the host application. The host owns the side effect.
type ItemApplier interface {
	Apply(ctx context.Context, item *store.Item) error
}

// BundleInstaller imports a downloaded bundle archive into the host
// application. The file at bundlePath is removed by the caller afterwards.
type BundleInstaller interface {
	Install(ctx context.Context, item *store.Item, bundlePath string) error
}

// Importer drives the import pipeline: resolve an import id, pull the item,
// then either apply it directly (text items) or download and install its
// bundle (skills and flows).
type Importer struct {
	client           *Client
	applier          ItemApplier
	installer        BundleInstaller
	events           EventLogger
	telemetry        Telemetry
	http             *http.Client
	downloadsEnabled bool
}

// NewImporter wires the pipeline. The downloads flag is passed explicitly;
// there is no ambient feature-flag state. A nil applier or installer is
// tolerated here; importing an item that needs the missing collaborator
// reports a failed result instead.
func NewImporter(client *Client, applier ItemApplier, installer BundleInstaller,
	events EventLogger, telemetry Telemetry, httpClient *http.Client, downloadsEnabled bool) *Importer {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if events == nil {
		events = NewMemoryEventLog()
	}
	if telemetry == nil {
		telemetry = NopTelemetry{}
	}
	return &Importer{
		client:           client,
		applier:          applier,
		installer:        installer,
		events:           events,
		telemetry:        telemetry,
		http:             httpClient,
		downloadsEnabled: downloadsEnabled,
	}
}

// ImportResult is the normalized outcome handed back to the host UI.
type ImportResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func failure(format string, args ...any) ImportResult {
	return ImportResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Import runs the pipeline for one import id on behalf of userID. There is
// no partial application: either the host collaborator fully succeeds or
// the result reports failure with nothing installed.
func (imp *Importer) Import(ctx context.Context, importID, userID string) ImportResult {
	itemType, id, err := store.ParseImportID(importID)
	if err != nil {
		return failure("invalid import id: %v", err)
	}

	pull := imp.client.PullItem(ctx, itemType, id)
	if !pull.Success {
		return failure("could not fetch item: %s", pull.Error)
	}
	item := pull.Item

	if store.IsBundleType(item.ItemType) {
		if err := imp.importBundle(ctx, item, pull.URL); err != nil {
			return failure("%v", err)
		}
	} else {
		if imp.applier == nil {
			return failure("no item applier configured for %s items", item.ItemType)
		}
		if err := imp.applier.Apply(ctx, item); err != nil {
			return failure("failed to apply item: %v", err)
		}
	}

	imp.record(item, userID)
	return ImportResult{Success: true}
}

// importBundle downloads the item's archive and hands it to the installer.
// The download completes to a temp file before Install is called, so a
// cancelled or failed download leaves no half-installed state.
func (imp *Importer) importBundle(ctx context.Context, item *store.Item, url string) error {
	if !imp.downloadsEnabled {
		return ErrDownloadsDisabled
	}
	if imp.installer == nil {
		return fmt.Errorf("no bundle installer configured for %s items", item.ItemType)
	}
	if url == "" {
		url = item.BundleURL()
	}
	if url == "" {
		return fmt.Errorf("item %s/%s has no bundle url", item.ItemType, item.ID)
	}

	path, err := imp.download(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to download bundle: %w", err)
	}
	defer os.Remove(path)

	if err := imp.installer.Install(ctx, item, path); err != nil {
		return fmt.Errorf("failed to install bundle: %w", err)
	}
	return nil
}

func (imp *Importer) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := imp.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bundle download returned status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp("", "hub-bundle-*.zip")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

// record emits the telemetry event and audit entry for a completed import.
// Both are best-effort; a logging failure never fails the import.
func (imp *Importer) record(item *store.Item, userID string) {
	if err := imp.telemetry.Send("community_hub_import", map[string]any{
		"itemType":   item.ItemType,
		"visibility": item.Visibility,
	}); err != nil {
		log.Printf("Failed to send import telemetry for %s/%s: %v", item.ItemType, item.ID, err)
	}
	if err := imp.events.LogEvent("community_hub_import", map[string]any{
		"itemId":   item.ID,
		"itemType": item.ItemType,
	}, userID); err != nil {
		log.Printf("Failed to log import event for %s/%s: %v", item.ItemType, item.ID, err)
	}
}
