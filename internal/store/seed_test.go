package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedInsertsStarterCatalog(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Seed())

	prompts, err := s.ListItems(TypeSystemPrompt)
	require.NoError(t, err)
	assert.Len(t, prompts, 2)

	commands, err := s.ListItems(TypeSlashCommand)
	require.NoError(t, err)
	assert.Len(t, commands, 5)

	resumir, err := s.GetItem(TypeSlashCommand, "resumir")
	require.NoError(t, err)
	require.NotNil(t, resumir)
	assert.Equal(t, "/resumir", resumir.Command)
	assert.Equal(t, DefaultAuthor, resumir.Author)
	assert.Equal(t, VisibilityPublic, resumir.Visibility)
	assert.Equal(t, []string{"summary", "productivity", "text"}, resumir.Tags)
}

func TestSeedIsVersionGatedNotCountGated(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Seed())

	// Wipe the catalog; the version marker must prevent re-seeding
	for _, itemType := range ItemTypes {
		items, err := s.ListItems(itemType)
		require.NoError(t, err)
		for _, item := range items {
			_, err := s.DeleteItem(itemType, item.ID)
			require.NoError(t, err)
		}
	}
	require.NoError(t, s.Seed())

	for _, itemType := range ItemTypes {
		items, err := s.ListItems(itemType)
		require.NoError(t, err)
		assert.Empty(t, items, itemType)
	}
}

func TestReseedRestoresCatalog(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Seed())

	_, err := s.DeleteItem(TypeSlashCommand, "resumir")
	require.NoError(t, err)

	require.NoError(t, s.Reseed())
	resumir, err := s.GetItem(TypeSlashCommand, "resumir")
	require.NoError(t, err)
	assert.NotNil(t, resumir)
}

func TestSeedKeepsExistingRows(t *testing.T) {
	s := newTestStore(t)

	// A row that collides with the catalog is kept as-is
	_, err := s.CreateItem(TypeSlashCommand, ItemPatch{
		ID:      "resumir",
		Name:    "My Resumir",
		Command: "/resumir",
	})
	require.NoError(t, err)

	require.NoError(t, s.Seed())
	item, err := s.GetItem(TypeSlashCommand, "resumir")
	require.NoError(t, err)
	assert.Equal(t, "My Resumir", item.Name)
}
