package common

import (
	"strings"
	"testing"
)

func TestEntityID(t *testing.T) {
	eid := GenEntityID()
	if len(eid) != ENTITYID_LENGTH {
		t.Fail()
	}

	if eid.IsNil() {
		t.Fail()
	}

	if !EntityID("").IsNil() {
		t.Fail()
	}

	if MustEntityID(string(eid)) != eid {
		t.Fail()
	}
}

func TestMustEntityIDPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("should panic on invalid entity ID")
		}
	}()
	MustEntityID("not-an-id")
}

func TestClientID(t *testing.T) {
	if !ClientID("").IsNil() {
		t.Fail()
	}
	cid := GenClientID()
	if cid.IsNil() {
		t.Fail()
	}
	if !strings.HasPrefix(string(cid), CLIENTID_PREFIX) {
		t.Fail()
	}
	if GenClientID() == cid {
		t.Errorf("client IDs should be unique")
	}
}

func TestParseEntityID(t *testing.T) {
	if _, err := ParseEntityID("../../etc/passwd"); err == nil {
		t.Errorf("path should not be an entity ID")
	}
	eid := GenEntityID()
	if parsed, err := ParseEntityID(string(eid)); err != nil || parsed != eid {
		t.Errorf("ParseEntityID(%s) = %s, %v", eid, parsed, err)
	}
}
