package domain

import "time"

// Instance status values as stored in the instances table.
const (
	StatusDisconnected    = "disconnected"
	StatusConnecting      = "connecting"
	StatusAwaitingPairing = "qr"
	StatusConnected       = "connected"
)

// Instance is the persisted metadata of one messaging session.
type Instance struct {
	ID                string    `json:"id" gorm:"primaryKey;size:64"`
	Name              string    `json:"name"`
	Status            string    `json:"status" gorm:"size:32;index"`
	AccountIdentifier string    `json:"account_identifier" gorm:"size:64"`
	PairingArtifact   string    `json:"-" gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Instance) TableName() string {
	return "instances"
}

// AuthState holds the credential and key material of one instance.
type AuthState struct {
	InstanceID  string    `json:"instance_id" gorm:"primaryKey;size:64"`
	Credentials []byte    `json:"-"`
	Keys        []byte    `json:"-"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (AuthState) TableName() string {
	return "auth_state"
}

// Credentials is the opaque credential and key material handed to and
// received from the protocol layer.
type Credentials struct {
	Creds []byte
	Keys  []byte
}
