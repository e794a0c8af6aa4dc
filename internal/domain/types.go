// Package domain holds the core entities of the monitoring pipeline:
// Process, WorkItem, UpstreamLogin, LLMProviderConfig and PromptTemplate.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID creates a random identifier with the given prefix, e.g. "proc-<uuid>".
func NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String())
}

// ProcessStatus is the lifecycle state of a monitoring process.
type ProcessStatus string

const (
	ProcessStopped ProcessStatus = "stopped"
	ProcessRunning ProcessStatus = "running"
	ProcessFailed  ProcessStatus = "failed"
)

// ArticleFilter is passed verbatim to Discovery.
type ArticleFilter struct {
	Category string `json:"category,omitempty"`
	Task     string `json:"task,omitempty"`
	Tab      string `json:"tab,omitempty"` // "home" | "alle" | classroom id
	Search   string `json:"search,omitempty"`
	Sort     string `json:"sort,omitempty"`
}

// Process is one monitoring process owned by a user.
type Process struct {
	ID                  string
	OwnerID             string
	Name                string
	Description         string
	MaxDurationMinutes  int
	GenerateOnly        bool
	Status              ProcessStatus
	StartedAt           *time.Time
	StoppedAt           *time.Time
	ExpiresAt           *time.Time
	StopReason          string
	ErrorMessage        string
	Filter              ArticleFilter
	LoginIDs            []string
	PromptTemplateIDs   []string
	LLMProviderConfigID string

	// DiscoveryTask, PreparationTask, GenerationTask and PostingTask are
	// persisted per-stage task markers. Nothing in this repository sets
	// them; they are cleared on stop, timeout and failure. In-flight stage
	// workers are tracked in the scheduler's own in-memory map instead.
	DiscoveryTask   string
	PreparationTask string
	GenerationTask  string
	PostingTask     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkItemStatus is the lifecycle state of a WorkItem.
type WorkItemStatus string

const (
	StatusDiscovered WorkItemStatus = "discovered"
	StatusPrepared   WorkItemStatus = "prepared"
	StatusGenerated  WorkItemStatus = "generated"
	StatusPosted     WorkItemStatus = "posted"
	StatusFailed     WorkItemStatus = "failed"
	StatusDeleted    WorkItemStatus = "deleted"
)

// WorkItem is one record per (process, article, login). It is the only
// entity carrying pipeline state.
type WorkItem struct {
	ID                string
	ProcessID         string
	LoginID           string
	UserID            string
	ArticleID         string
	UpstreamCommentID string
	PromptTemplateID  string
	LLMProviderID     string

	// Article snapshot, immutable once written during Preparation.
	Title        string
	Author       string
	CategoryID   *int
	TaskID       *int
	URL          string
	ContentText  string
	ContentHTML  string
	PublishedAt  *time.Time
	EditedAt     *time.Time
	ScrapedAt    *time.Time

	// Generated comment, written during Generation.
	CommentText       string
	LLMModelName      string
	LLMProviderName   string
	GenerationTokens  int
	GenerationTimeMs  int64

	Status       WorkItemStatus
	CreatedAt    time.Time
	PostedAt     *time.Time
	FailedAt     *time.Time
	ErrorMessage string
	RetryCount   int
}

// UpstreamLogin is one set of credentials on the upstream platform.
type UpstreamLogin struct {
	ID                 string
	OwnerID            string
	DisplayName        string
	EncryptedUsername  string
	EncryptedPassword  string
	IsAdmin            bool
	IsActive           bool
	LastUsedAt         *time.Time
	CreatedAt          time.Time
}

// LLMProviderConfig is one configured LLM provider account.
type LLMProviderConfig struct {
	ID             string
	OwnerID        string
	ProviderTag    string // "openai" | "mistral" | "anthropic" | ...
	ModelName      string
	EncryptedAPIKey string
	MaxTokens      int
	Temperature    float64
	IsActive       bool
	CreatedAt      time.Time
}

// PromptTemplateCategory distinguishes shared system templates from
// user-owned ones.
type PromptTemplateCategory string

const (
	TemplateSystem PromptTemplateCategory = "SYSTEM"
	TemplateUser   PromptTemplateCategory = "USER"
)

// PromptTemplate renders a system/user prompt pair for Generation.
type PromptTemplate struct {
	ID                 string
	OwnerID            string // empty for SYSTEM templates
	Category           PromptTemplateCategory
	Name               string
	Description        string
	SystemPrompt       string
	UserPromptTemplate string
	CreatedAt          time.Time
}

// Placeholder names accepted in UserPromptTemplate substitution. Markers
// outside this closed set are left untouched.
const (
	PlaceholderArticleTitle   = "article_title"
	PlaceholderArticleContent = "article_content"
	PlaceholderArticleAuthor  = "article_author"
	PlaceholderArticleRawHTML = "article_raw_html"
)
