package store

import (
	"encoding/json"
	"fmt"
	"log"
	"strconv"
)

// seedVersion is bumped whenever the starter catalog changes. Seeding is
// keyed on this marker, not on the row count, so wiping all items does not
// silently re-trigger it on the next boot.
const seedVersion = 1

const seedVersionKey = "seed_version"

type seedItem struct {
	ID          string
	Name        string
	Description string
	Prompt      string
	Command     string
	Tags        []string
}

var starterCatalog = map[string][]seedItem{
	TypeSystemPrompt: {
		{
			ID:          "creative-writer",
			Name:        "Creative Writer",
			Description: "A system prompt for creative writing assistance",
			Prompt:      "You are a creative writing assistant. Help users craft engaging stories, poems, and other creative content.",
			Tags:        []string{"writing", "creative", "general"},
		},
		{
			ID:          "data-analyst",
			Name:        "Data Analyst",
			Description: "A system prompt for data analysis and visualization",
			Prompt:      "You are a data analyst. Help users understand their data, create insights, and suggest visualizations.",
			Tags:        []string{"data", "analysis", "business"},
		},
	},
	TypeSlashCommand: {
		{
			ID:          "traducir",
			Name:        "Traducir",
			Description: "Traduce texto al español con contexto cultural",
			Command:     "/traducir",
			Prompt:      "Translate the following text to Spanish, preserving cultural context and nuances.",
			Tags:        []string{"spanish", "translation", "language"},
		},
		{
			ID:          "resumir",
			Name:        "Resumir",
			Description: "Resume textos largos de forma concisa",
			Command:     "/resumir",
			Prompt:      "Summarize the following text in 3-5 key bullet points.",
			Tags:        []string{"summary", "productivity", "text"},
		},
		{
			ID:          "preguntar",
			Name:        "Preguntar",
			Description: "Genera preguntas de seguimiento inteligentes",
			Command:     "/preguntar",
			Prompt:      "Generate 3-5 intelligent follow-up questions based on the conversation context.",
			Tags:        []string{"questions", "conversation", "engagement"},
		},
		{
			ID:          "codigo",
			Name:        "Explicar Código",
			Description: "Explica código de forma clara y educativa",
			Command:     "/codigo",
			Prompt:      "Explain the following code in clear, educational terms.",
			Tags:        []string{"coding", "education", "programming"},
		},
		{
			ID:          "continuar",
			Name:        "Continuar Conversación",
			Description: "Continúa una conversación de forma natural",
			Command:     "/continuar",
			Prompt:      "Continue the conversation naturally based on the context.",
			Tags:        []string{"conversation", "continuation", "dialogue"},
		},
	},
}

// Reseed clears the version marker and applies the starter catalog again.
// Only reached through an explicit operator action.
func (s *SQLiteStore) Reseed() error {
	if err := s.setMeta(seedVersionKey, "0"); err != nil {
		return err
	}
	return s.Seed()
}

// Seed inserts the starter catalog if the stored seed version is behind the
// current one. Items that already exist (e.g. user-edited copies) are kept.
func (s *SQLiteStore) Seed() error {
	stored, err := s.getMeta(seedVersionKey)
	if err != nil {
		return err
	}
	version, _ := strconv.Atoi(stored)
	if version >= seedVersion {
		return nil
	}

	log.Printf("Seeding starter catalog (version %d -> %d)", version, seedVersion)
	seeded := 0
	for _, itemType := range ItemTypes {
		for _, si := range starterCatalog[itemType] {
			existing, err := s.GetItem(itemType, si.ID)
			if err != nil {
				return fmt.Errorf("failed to check seed item %s/%s: %w", itemType, si.ID, err)
			}
			if existing != nil {
				continue
			}
			tags, _ := json.Marshal(si.Tags)
			_, err = s.CreateItem(itemType, ItemPatch{
				ID:          si.ID,
				Name:        si.Name,
				Description: si.Description,
				Prompt:      si.Prompt,
				Command:     si.Command,
				Tags:        tags,
			})
			if err != nil {
				return fmt.Errorf("failed to seed item %s/%s: %w", itemType, si.ID, err)
			}
			seeded++
		}
	}
	if err := s.setMeta(seedVersionKey, strconv.Itoa(seedVersion)); err != nil {
		return err
	}
	log.Printf("Starter catalog seeded (%d items inserted)", seeded)
	return nil
}
