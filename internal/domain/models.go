package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Universe is the top-level entity: a themed set of generated assets.
// Table names mirror the Supabase schema so the same models map onto the
// remote database.
type Universe struct {
	ID              int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string     `gorm:"not null" json:"name"`
	Slug            string     `gorm:"not null;uniqueIndex" json:"slug"`
	ThumbnailURL    string     `json:"thumbnail_url,omitempty"`
	IsPublic        bool       `gorm:"default:true" json:"is_public"`
	OwnerID         string     `gorm:"size:36" json:"owner_id,omitempty"`
	BackgroundMusic string     `json:"background_music,omitempty"`
	BackgroundColor string     `json:"background_color,omitempty"`
	SupabaseID      *int64     `gorm:"column:supabase_id" json:"supabase_id,omitempty"`
	LastSyncedAt    *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt       time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Assets       []Asset               `gorm:"foreignKey:UniversID;constraint:OnDelete:CASCADE" json:"assets,omitempty"`
	Prompts      *UniversePrompts      `gorm:"foreignKey:UniversID;constraint:OnDelete:CASCADE" json:"prompts,omitempty"`
	Translations []UniverseTranslation `gorm:"foreignKey:UniversID;constraint:OnDelete:CASCADE" json:"translations,omitempty"`
	MusicPrompts []MusicPrompt         `gorm:"foreignKey:UniversID;constraint:OnDelete:CASCADE" json:"music_prompts,omitempty"`
}

func (Universe) TableName() string { return "univers" }

// UniversePrompts holds the default generation prompts for a universe.
type UniversePrompts struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	UniversID          int64     `gorm:"column:univers_id;not null;uniqueIndex" json:"univers_id"`
	DefaultImagePrompt string    `json:"default_image_prompt,omitempty"`
	DefaultVideoPrompt string    `json:"default_video_prompt,omitempty"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
}

func (UniversePrompts) TableName() string { return "univers_prompts" }

type UniverseTranslation struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	UniversID int64  `gorm:"column:univers_id;not null;index;uniqueIndex:uniq_univers_translation_lang,priority:1" json:"univers_id"`
	Language  string `gorm:"size:2;not null;uniqueIndex:uniq_univers_translation_lang,priority:2" json:"language"`
	Name      string `gorm:"not null" json:"name"`
}

func (UniverseTranslation) TableName() string { return "univers_translations" }

// Asset is one vocabulary item in a universe. ImageName is the stable
// filename stem every generated media file for the asset derives from.
type Asset struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UniversID   int64     `gorm:"column:univers_id;not null;index" json:"univers_id"`
	SortOrder   int       `gorm:"not null" json:"sort_order"`
	ImageName   string    `gorm:"not null" json:"image_name"`
	DisplayName string    `gorm:"not null" json:"display_name"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Prompts      *AssetPrompts      `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"prompts,omitempty"`
	Translations []AssetTranslation `gorm:"foreignKey:AssetID;constraint:OnDelete:CASCADE" json:"translations,omitempty"`
}

func (Asset) TableName() string { return "univers_assets" }

type AssetPrompts struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id"`
	AssetID           string     `gorm:"size:36;not null;uniqueIndex" json:"asset_id"`
	CustomImagePrompt string     `json:"custom_image_prompt,omitempty"`
	CustomVideoPrompt string     `json:"custom_video_prompt,omitempty"`
	GenerationCount   int        `gorm:"default:1" json:"generation_count"`
	LastGeneratedAt   *time.Time `json:"last_generated_at,omitempty"`
}

func (AssetPrompts) TableName() string { return "univers_assets_prompts" }

type AssetTranslation struct {
	ID          string `gorm:"primaryKey;size:36" json:"id"`
	AssetID     string `gorm:"size:36;not null;index;uniqueIndex:uniq_asset_translation_lang,priority:1" json:"asset_id"`
	Language    string `gorm:"size:2;not null;uniqueIndex:uniq_asset_translation_lang,priority:2" json:"language"`
	DisplayName string `gorm:"not null" json:"display_name"`
}

func (AssetTranslation) TableName() string { return "univers_assets_translations" }

// MusicPrompt stores the per-language music generation prompt and lyrics.
// At most one row per (universe, language).
type MusicPrompt struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UniversID int64     `gorm:"column:univers_id;not null;index;uniqueIndex:uniq_music_prompt_lang,priority:1" json:"univers_id"`
	Language  string    `gorm:"size:2;not null;uniqueIndex:uniq_music_prompt_lang,priority:2" json:"language"`
	Prompt    string    `gorm:"not null" json:"prompt"`
	Lyrics    string    `gorm:"not null" json:"lyrics"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (MusicPrompt) TableName() string { return "univers_music_prompts" }

// Job statuses. Transitions are pending -> running -> completed|failed,
// terminal states are final.
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job types.
const (
	JobTypeGenerateImages = "generate_images"
	JobTypeGenerateVideos = "generate_videos"
	JobTypeGenerateMusic  = "generate_music"
	JobTypeGenerateAll    = "generate_all"
	JobTypeSyncPull       = "sync_pull"
	JobTypeSyncPush       = "sync_push"
	JobTypeSyncPullAll    = "sync_pull_all"
)

func TerminalJobStatus(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// Job is the durable handle to one asynchronous unit of work.
type Job struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	Type        string         `gorm:"size:50;not null;index" json:"type"`
	UniversSlug string         `gorm:"column:univers_slug;size:100;index" json:"univers_slug,omitempty"`
	Status      string         `gorm:"size:20;not null;index" json:"status"`
	Progress    int            `gorm:"not null;default:0" json:"progress"`
	TotalSteps  int            `gorm:"not null;default:0" json:"total_steps"`
	CurrentStep int            `gorm:"not null;default:0" json:"current_step"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      datatypes.JSON `json:"result,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

func (Job) TableName() string { return "jobs" }
