package db

import (
	"time"

	"github.com/google/uuid"
)

type MarkerStatus string

const (
	MarkerStatusPending    MarkerStatus = "pending"
	MarkerStatusProcessing MarkerStatus = "processing"
	MarkerStatusReady      MarkerStatus = "ready"
	MarkerStatusFailed     MarkerStatus = "failed"
)

type ProjectStatus string

const (
	ProjectStatusActive  ProjectStatus = "active"
	ProjectStatusExpired ProjectStatus = "expired"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

type ProviderKind string

const (
	ProviderLocal       ProviderKind = "local"
	ProviderObjectStore ProviderKind = "object_store"
	ProviderCloudDisk   ProviderKind = "cloud_disk"
)

type RotationRule string

const (
	RotationRuleOrdered RotationRule = "ordered"
	RotationRuleDated   RotationRule = "dated"
	RotationRuleRandom  RotationRule = "random"
)

type NotificationKind string

const (
	NotificationExpirationWarning NotificationKind = "expiration_warning"
	NotificationProjectExpired    NotificationKind = "project_expired"
)

// Content is one uploaded reference image and the recognition marker
// compiled from it. The pipeline owns the marker, thumbnail and status
// fields only; everything else belongs to the CRUD layer.
type Content struct {
	ID        int64
	Token     string
	ProjectID int64
	CompanyID int64

	SourcePath string
	SourceURL  string

	MarkerPath        *string
	MarkerURL         *string
	MarkerStatus      MarkerStatus
	MarkerGeneratedAt *time.Time
	MarkerSizeBytes   *int64
	FeaturePoints     *int32

	ThumbSmallURL  *string
	ThumbMediumURL *string
	ThumbLargeURL  *string

	IsActive  bool
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Video struct {
	ID        int64
	ContentID int64

	StoragePath string
	URL         string

	ThumbSmallURL  *string
	ThumbMediumURL *string
	ThumbLargeURL  *string

	IsActive  bool
	SortOrder int32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RotationDate maps a calendar date to the video that should be active from
// that date onward.
type RotationDate struct {
	On      time.Time `json:"on"`
	VideoID int64     `json:"video_id"`
}

type RotationSchedule struct {
	ID        int64
	ContentID int64
	Rule      RotationRule

	// VideoOrder is the explicit rotation order for the ordered rule and
	// the tie-break order for the others.
	VideoOrder []int64
	Dates      []RotationDate
	Interval   time.Duration

	NextRotationAt *time.Time
	LastRotatedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Notification struct {
	ID        int64
	ProjectID int64
	ContentID *int64
	Kind      NotificationKind

	Subject string
	Body    string

	EmailTo    string
	WebhookURL *string

	EmailSent     bool
	EmailSentAt   *time.Time
	EmailError    *string
	WebhookSent   bool
	WebhookSentAt *time.Time
	WebhookError  *string

	CreatedAt time.Time
}

type Project struct {
	ID        int64
	CompanyID int64
	Name      string
	Status    ProjectStatus

	ContactEmail string
	WebhookURL   *string

	ExpiresAt            *time.Time
	ExpirationNotifiedAt *time.Time
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Company struct {
	ID                  int64
	Name                string
	StorageConnectionID *int64
	CreatedAt           time.Time
}

// StorageConnection describes one configured storage backend for a tenant.
type StorageConnection struct {
	ID        int64
	CompanyID int64
	Provider  ProviderKind

	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool

	BasePath      string
	PublicBaseURL string

	CreatedAt time.Time
}

// ProcessingTask is one tracked pipeline task execution. Its UUID is the
// opaque handle handed back to the enqueuing caller for status polling.
type ProcessingTask struct {
	ID       uuid.UUID
	Kind     string
	RecordID int64
	Status   TaskStatus
	Attempts int32
	Error    *string

	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
