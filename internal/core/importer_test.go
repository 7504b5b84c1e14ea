package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codingsoft/community-hub/internal/config"
	"github.com/codingsoft/community-hub/internal/store"
)

type fakeApplier struct {
	applied []*store.Item
	err     error
}

func (f *fakeApplier) Apply(_ context.Context, item *store.Item) error {
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, item)
	return nil
}

type fakeInstaller struct {
	installed []*store.Item
	contents  [][]byte
	err       error
}

func (f *fakeInstaller) Install(_ context.Context, item *store.Item, bundlePath string) error {
	if f.err != nil {
		return f.err
	}
	// Read while the file still exists; the importer removes it afterwards
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		return err
	}
	f.installed = append(f.installed, item)
	f.contents = append(f.contents, data)
	return nil
}

type captureTelemetry struct {
	events []string
	err    error
}

func (c *captureTelemetry) Send(event string, _ map[string]any) error {
	c.events = append(c.events, event)
	return c.err
}

func newTestImporter(t *testing.T, hubURL string, downloadsEnabled bool) (*Importer, *fakeApplier, *fakeInstaller, *MemoryEventLog, *captureTelemetry) {
	t.Helper()
	client := NewClient(hubURL, NewMemorySettings(""), nil, false)
	applier := &fakeApplier{}
	installer := &fakeInstaller{}
	events := NewMemoryEventLog()
	telemetry := &captureTelemetry{}
	imp := NewImporter(client, applier, installer, events, telemetry, nil, downloadsEnabled)
	return imp, applier, installer, events, telemetry
}

func TestImportAppliesTextItem(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	require.NoError(t, s.Seed())

	imp, applier, installer, events, telemetry := newTestImporter(t, srv.URL, false)
	importID := store.ComputeImportID(store.TypeSlashCommand, "resumir")

	result := imp.Import(context.Background(), importID, "user-1")
	require.True(t, result.Success, result.Error)

	require.Len(t, applier.applied, 1)
	assert.Equal(t, "resumir", applier.applied[0].ID)
	assert.Empty(t, installer.installed, "text items never download a bundle")

	entries := events.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "community_hub_import", entries[0].Event)
	assert.Equal(t, "resumir", entries[0].Metadata["itemId"])
	assert.Equal(t, store.TypeSlashCommand, entries[0].Metadata["itemType"])
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, []string{"community_hub_import"}, telemetry.events)
}

func TestImportBundleItem(t *testing.T) {
	bundle := []byte("PK\x03\x04 fake zip payload")
	bundleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bundle)
	}))
	defer bundleSrv.Close()

	srv, s := newTestHub(t, config.ModeLocal, "", false)
	cfg, _ := json.Marshal(map[string]string{"url": bundleSrv.URL + "/scraper.zip"})
	_, err := s.CreateItem(store.TypeAgentSkill, store.ItemPatch{
		ID: "scraper", Name: "Scraper", Config: cfg,
	})
	require.NoError(t, err)

	imp, applier, installer, _, _ := newTestImporter(t, srv.URL, true)
	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeAgentSkill, "scraper"), "user-1")
	require.True(t, result.Success, result.Error)

	assert.Empty(t, applier.applied)
	require.Len(t, installer.installed, 1)
	assert.Equal(t, "scraper", installer.installed[0].ID)
	assert.Equal(t, bundle, installer.contents[0])
}

func TestImportBundleRequiresDownloadsFlag(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	_, err := s.CreateItem(store.TypeAgentFlow, store.ItemPatch{
		ID: "flow", Name: "Flow", Config: json.RawMessage(`{"url":"https://example.com/f.zip"}`),
	})
	require.NoError(t, err)

	imp, _, installer, events, _ := newTestImporter(t, srv.URL, false)
	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeAgentFlow, "flow"), "user-1")

	require.False(t, result.Success)
	assert.Contains(t, result.Error, "downloads are not enabled")
	assert.Empty(t, installer.installed)
	assert.Empty(t, events.Entries(), "failed imports are not recorded")
}

func TestImportBundleWithoutURLFails(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	_, err := s.CreateItem(store.TypeAgentSkill, store.ItemPatch{ID: "bare", Name: "Bare"})
	require.NoError(t, err)

	imp, _, installer, _, _ := newTestImporter(t, srv.URL, true)
	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeAgentSkill, "bare"), "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "no bundle url")
	assert.Empty(t, installer.installed)
}

func TestImportTextItemWithoutApplierFails(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	require.NoError(t, s.Seed())

	client := NewClient(srv.URL, NewMemorySettings(""), nil, false)
	imp := NewImporter(client, nil, &fakeInstaller{}, nil, nil, nil, false)

	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeSlashCommand, "resumir"), "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "no item applier")
}

func TestImportBundleItemWithoutInstallerFails(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	_, err := s.CreateItem(store.TypeAgentSkill, store.ItemPatch{
		ID: "scraper", Name: "Scraper", Config: json.RawMessage(`{"url":"https://example.com/s.zip"}`),
	})
	require.NoError(t, err)

	client := NewClient(srv.URL, NewMemorySettings(""), nil, false)
	imp := NewImporter(client, &fakeApplier{}, nil, nil, nil, nil, true)

	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeAgentSkill, "scraper"), "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "no bundle installer")
}

func TestImportInvalidIDFails(t *testing.T) {
	srv, _ := newTestHub(t, config.ModeLocal, "", false)
	imp, _, _, _, _ := newTestImporter(t, srv.URL, false)

	result := imp.Import(context.Background(), "not-an-import-id", "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "invalid import id")
}

func TestImportMissingItemFails(t *testing.T) {
	srv, _ := newTestHub(t, config.ModeLocal, "", false)
	imp, _, _, _, _ := newTestImporter(t, srv.URL, false)

	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeSlashCommand, "missing"), "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "Item not found")
}

func TestImportApplierFailureIsFatal(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	require.NoError(t, s.Seed())

	imp, applier, _, events, _ := newTestImporter(t, srv.URL, false)
	applier.err = errors.New("workspace is read-only")

	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeSlashCommand, "resumir"), "user-1")
	require.False(t, result.Success)
	assert.Contains(t, result.Error, "workspace is read-only")
	assert.Empty(t, events.Entries())
}

func TestImportLoggingFailuresAreNonFatal(t *testing.T) {
	srv, s := newTestHub(t, config.ModeLocal, "", false)
	require.NoError(t, s.Seed())

	imp, applier, _, _, telemetry := newTestImporter(t, srv.URL, false)
	telemetry.err = fmt.Errorf("telemetry endpoint unreachable")

	result := imp.Import(context.Background(), store.ComputeImportID(store.TypeSlashCommand, "resumir"), "user-1")
	require.True(t, result.Success, "a telemetry failure must not fail the import")
	assert.Len(t, applier.applied, 1)
}
