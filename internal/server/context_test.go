package server

import (
	"context"
	"testing"
)

func TestIdentityContext(t *testing.T) {
	ctx := WithIdentity(context.Background(), "subj-1", "sess-1", "traveler")

	if v, ok := GetSubjectID(ctx); !ok || v != "subj-1" {
		t.Errorf("GetSubjectID = %q, %v", v, ok)
	}
	if v, ok := GetSessionID(ctx); !ok || v != "sess-1" {
		t.Errorf("GetSessionID = %q, %v", v, ok)
	}
	if v, ok := GetRole(ctx); !ok || v != "traveler" {
		t.Errorf("GetRole = %q, %v", v, ok)
	}
}

func TestIdentityContext_Unset(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetSubjectID(ctx); ok {
		t.Error("GetSubjectID on empty context should report false")
	}
	if _, ok := GetSessionID(ctx); ok {
		t.Error("GetSessionID on empty context should report false")
	}
	if _, ok := GetRole(ctx); ok {
		t.Error("GetRole on empty context should report false")
	}
}
