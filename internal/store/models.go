package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ImportIDNamespace is the fixed prefix of every portable item reference.
// An import ID has the form "<namespace>:<itemType>:<id>".
const ImportIDNamespace = "allm-community-id"

// DefaultAuthor is used when an item is created without an author.
const DefaultAuthor = "CodingSoft"

// Item types form a closed set; each type determines which optional
// fields of Item are meaningful.
const (
	TypeSystemPrompt = "system-prompt"
	TypeSlashCommand = "slash-command"
	TypeAgentSkill   = "agent-skill"
	TypeAgentFlow    = "agent-flow"
)

// ItemTypes lists all valid item types in their canonical order.
var ItemTypes = []string{TypeSystemPrompt, TypeSlashCommand, TypeAgentSkill, TypeAgentFlow}

// ValidItemType reports whether itemType belongs to the closed set.
func ValidItemType(itemType string) bool {
	for _, t := range ItemTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

// PluralTypeKey returns the grouping key used by the explore response,
// e.g. "system-prompt" -> "systemprompts".
func PluralTypeKey(itemType string) string {
	return strings.Replace(itemType, "-", "", 1) + "s"
}

// Visibility values.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Item is a shareable unit of content published to the hub.
// Prompt carries the text body for system prompts and slash commands,
// Command is the "/token" trigger of a slash command, and Config is the
// JSON-serialized payload of agent skills and flows. OwnerID ties the item
// to the connection key that created it; Author is display-only and never
// gates reads.
type Item struct {
	ID          string     `json:"id"`
	ItemType    string     `json:"itemType"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt,omitempty"`
	Command     string     `json:"command,omitempty"`
	Config      string     `json:"config,omitempty"`
	Tags        []string   `json:"tags"`
	Author      string     `json:"author"`
	OwnerID     string     `json:"-"`
	Visibility  string     `json:"visibility"`
	Rating      int        `json:"rating"`
	RatingCount int        `json:"ratingCount"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`
	ImportID    string     `json:"importId,omitempty"`
}

// IsBundleType reports whether items of this type are backed by a
// downloadable bundle rather than plain text.
func IsBundleType(itemType string) bool {
	return itemType == TypeAgentSkill || itemType == TypeAgentFlow
}

// ComputeImportID derives the portable reference for an (itemType, id) pair.
func ComputeImportID(itemType, id string) string {
	return fmt.Sprintf("%s:%s:%s", ImportIDNamespace, itemType, id)
}

// ParseImportID splits an import ID back into its (itemType, id) pair.
// Only the first two colons delimit; the id may itself contain colons.
func ParseImportID(importID string) (itemType, id string, err error) {
	parts := strings.SplitN(importID, ":", 3)
	if len(parts) != 3 || parts[0] != ImportIDNamespace {
		return "", "", fmt.Errorf("malformed import id %q", importID)
	}
	if !ValidItemType(parts[1]) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidItemType, parts[1])
	}
	if parts[2] == "" {
		return "", "", fmt.Errorf("malformed import id %q: empty item id", importID)
	}
	return parts[1], parts[2], nil
}

// Validate enforces the per-type field rules of the closed item set.
func (i *Item) Validate() error {
	if !ValidItemType(i.ItemType) {
		return fmt.Errorf("%w: %s", ErrInvalidItemType, i.ItemType)
	}
	if i.Name == "" {
		return fmt.Errorf("item name is required")
	}
	switch i.ItemType {
	case TypeSlashCommand:
		if !strings.HasPrefix(i.Command, "/") {
			return fmt.Errorf("slash command items require a command starting with '/'")
		}
	case TypeSystemPrompt:
		if i.Prompt == "" {
			return fmt.Errorf("system prompt items require a prompt body")
		}
	case TypeAgentSkill, TypeAgentFlow:
		if i.Config != "" && !json.Valid([]byte(i.Config)) {
			return fmt.Errorf("item config is not valid JSON")
		}
	}
	if i.Visibility != "" && i.Visibility != VisibilityPublic && i.Visibility != VisibilityPrivate {
		return fmt.Errorf("invalid visibility %q", i.Visibility)
	}
	return nil
}

// BundleURL extracts the download URL from the config payload of a skill or
// flow item. Returns "" when no URL is recorded.
func (i Item) BundleURL() string {
	if i.Config == "" {
		return ""
	}
	var cfg struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal([]byte(i.Config), &cfg); err != nil {
		return ""
	}
	return cfg.URL
}

// NormalizeTags accepts the shapes tags arrive in over the wire (an array,
// a JSON-encoded string of an array, or bare comma-separated text) and
// returns a clean []string. The store never persists any other form.
func NormalizeTags(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal(raw, &tags); err == nil {
		return cleanTags(tags)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return TagsFromString(s)
	}
	return []string{}
}

// TagsFromString decodes a stored tags column. It tolerates legacy rows that
// held plain comma-separated text instead of a JSON array.
func TagsFromString(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return []string{}
	}
	var tags []string
	if err := json.Unmarshal([]byte(s), &tags); err == nil {
		return cleanTags(tags)
	}
	return cleanTags(strings.Split(s, ","))
}

// TagsToString encodes tags into the canonical stored form, a JSON array.
func TagsToString(tags []string) string {
	b, err := json.Marshal(cleanTags(tags))
	if err != nil {
		return "[]"
	}
	return string(b)
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if v := strings.TrimSpace(t); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// VoteResult is the aggregate state of an item after a vote mutation,
// as seen by the requester who cast it.
type VoteResult struct {
	Rating      int `json:"rating"`
	RatingCount int `json:"ratingCount"`
	UserVote    int `json:"userVote"`
}
