package common

import (
	"github.com/google/uuid"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
)

// ENTITYID_LENGTH is the length of Entity IDs
const ENTITYID_LENGTH = 36

// EntityID identifies AI entities, rigid bodies and stored players
type EntityID string

// IsNil returns if EntityID is nil
func (id EntityID) IsNil() bool {
	return id == ""
}

// GenEntityID generates a new EntityID
func GenEntityID() EntityID {
	return EntityID(uuid.NewString())
}

// ParseEntityID checks that id is a valid EntityID
func ParseEntityID(id string) (EntityID, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", errors.Wrapf(err, "invalid entity ID %q", id)
	}
	return EntityID(id), nil
}

// MustEntityID assures a string to be EntityID
func MustEntityID(id string) EntityID {
	eid, err := ParseEntityID(id)
	if err != nil {
		gwlog.Panic(err)
	}
	return eid
}

// ClientID identifies a network client connection
type ClientID string

// CLIENTID_PREFIX is prepended to every generated client ID
const CLIENTID_PREFIX = "client_"

// GenClientID generates a new Client ID
func GenClientID() ClientID {
	return ClientID(CLIENTID_PREFIX + uuid.NewString())
}

// IsNil returns if ClientID is nil
func (id ClientID) IsNil() bool {
	return id == ""
}
