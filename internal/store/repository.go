package store

import (
	"context"
	"time"

	"github.com/talkincode/wagate/internal/domain"
	"gorm.io/gorm"
)

// InstanceRepository handles database operations for instance metadata
type InstanceRepository interface {
	// Create inserts a new instance row, or renames an existing one
	Create(ctx context.Context, inst *domain.Instance) error

	// GetByID retrieves an instance by ID
	GetByID(ctx context.Context, id string) (*domain.Instance, error)

	// List retrieves all instances, newest first
	List(ctx context.Context) ([]*domain.Instance, error)

	// UpdateStatus updates status and, when not empty, the account identifier
	UpdateStatus(ctx context.Context, id, status, accountIdentifier string) error

	// UpdatePairingArtifact stores or clears the pairing artifact
	UpdatePairingArtifact(ctx context.Context, id, artifact string) error

	// Delete removes an instance row
	Delete(ctx context.Context, id string) error
}

// AuthStateStore is the durable credential storage of the protocol layer.
type AuthStateStore interface {
	Save(ctx context.Context, instanceID string, creds domain.Credentials) error
	// Load returns nil, nil when no record exists
	Load(ctx context.Context, instanceID string) (*domain.Credentials, error)
	Delete(ctx context.Context, instanceID string) error
}

// MessageFilter narrows a message history query
type MessageFilter struct {
	RemoteID string
	Limit    int
}

// MessageRepository handles database operations for messages
type MessageRepository interface {
	// Upsert inserts a message or, if (instance, message id) exists, updates its status only
	Upsert(ctx context.Context, msg *domain.Message) error

	// UpdateStatus updates the status of an existing message; missing rows are ignored
	UpdateStatus(ctx context.Context, instanceID, messageID, status string) (bool, error)

	// List retrieves messages of an instance, newest first
	List(ctx context.Context, instanceID string, filter MessageFilter) ([]*domain.Message, error)

	// DeleteOlderThan removes messages older than the given time
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// GormInstanceRepository is the GORM implementation of InstanceRepository
type GormInstanceRepository struct {
	db *gorm.DB
}

// NewGormInstanceRepository creates a new GORM-based repository
func NewGormInstanceRepository(db *gorm.DB) *GormInstanceRepository {
	return &GormInstanceRepository{db: db}
}

// GormAuthStateStore is the GORM implementation of AuthStateStore
type GormAuthStateStore struct {
	db *gorm.DB
}

// NewGormAuthStateStore creates a new GORM-based credential store
func NewGormAuthStateStore(db *gorm.DB) *GormAuthStateStore {
	return &GormAuthStateStore{db: db}
}

// GormMessageRepository is the GORM implementation of MessageRepository
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based repository
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

var (
	_ InstanceRepository = (*GormInstanceRepository)(nil)
	_ AuthStateStore     = (*GormAuthStateStore)(nil)
	_ MessageRepository  = (*GormMessageRepository)(nil)
)
