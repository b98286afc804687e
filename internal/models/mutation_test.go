// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

import (
	"errors"
	"testing"
	"time"
)

func TestParseMutationType(t *testing.T) {
	for _, mt := range MutationTypes {
		got, err := ParseMutationType(string(mt))
		if err != nil || got != mt {
			t.Errorf("ParseMutationType(%q) = %q, %v", mt, got, err)
		}
	}

	_, err := ParseMutationType("delete-project")
	if !errors.Is(err, ErrUnknownMutationType) {
		t.Errorf("expected ErrUnknownMutationType, got %v", err)
	}
}

func TestMutationTypeTable(t *testing.T) {
	tests := []struct {
		mt     MutationType
		table  string
		action string
	}{
		{MutationCreateProject, TableProjects, "create"},
		{MutationUpdateProject, TableProjects, "update"},
		{MutationCreateChamber, TableChambers, "create"},
		{MutationUpdateChamber, TableChambers, "update"},
		{"bogus", "", ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.mt), func(t *testing.T) {
			if got := tt.mt.Table(); got != tt.table {
				t.Errorf("Table() = %q, want %q", got, tt.table)
			}
			if got := tt.mt.Action(); got != tt.action {
				t.Errorf("Action() = %q, want %q", got, tt.action)
			}
		})
	}
}

func TestNewQueuedMutationRejectsMismatch(t *testing.T) {
	_, err := NewQueuedMutation("id-1", MutationCreateProject, &UpdateChamberPayload{ID: "c1"}, time.Now())
	if err == nil {
		t.Fatal("expected error for mismatched payload")
	}

	_, err = NewQueuedMutation("id-1", "nope", &UpdateChamberPayload{ID: "c1"}, time.Now())
	if !errors.Is(err, ErrUnknownMutationType) {
		t.Fatalf("expected ErrUnknownMutationType, got %v", err)
	}

	_, err = NewQueuedMutation("id-1", MutationCreateProject, nil, time.Now())
	if err == nil {
		t.Fatal("expected error for nil payload")
	}
}

func TestQueuedMutationDecodeReturnsVariant(t *testing.T) {
	depth := 2.4
	in := &CreateChamberPayload{
		Chamber:       Chamber{ProjectID: "tmp-A", Identifier: "MH-001", DepthM: &depth},
		ProjectLookup: &ProjectLookup{ProjectNumber: "P-100", Name: "High St", Client: "Council"},
		InternalPhoto: &PhotoRef{StagedKey: "blob-1", Filename: "inside.png"},
	}
	m, err := NewQueuedMutation("id-1", MutationCreateChamber, in, time.Now())
	if err != nil {
		t.Fatalf("NewQueuedMutation: %v", err)
	}

	p, err := m.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	out, ok := p.(*CreateChamberPayload)
	if !ok {
		t.Fatalf("Decode returned %T", p)
	}
	if out.ProjectID != "tmp-A" || out.Identifier != "MH-001" {
		t.Errorf("chamber fields lost: %+v", out.Chamber)
	}
	if out.DepthM == nil || *out.DepthM != depth {
		t.Errorf("depth lost: %v", out.DepthM)
	}
	if out.ProjectLookup.IsZero() {
		t.Error("lookup lost")
	}
	if keys := out.StagedKeys(); len(keys) != 1 || keys[0] != "blob-1" {
		t.Errorf("StagedKeys() = %v", keys)
	}
	if out.Photo(SlotExternal) != nil {
		t.Error("external slot should be empty")
	}
}

func TestDecodePayloadBadJSON(t *testing.T) {
	if _, err := DecodePayload(MutationUpdateProject, []byte("{")); err == nil {
		t.Fatal("expected decode error")
	}
	if _, err := DecodePayload("bogus", []byte("{}")); !errors.Is(err, ErrUnknownMutationType) {
		t.Fatalf("expected ErrUnknownMutationType, got %v", err)
	}
}

func TestTempID(t *testing.T) {
	id := NewTempID()
	if !IsTempID(id) {
		t.Errorf("NewTempID() = %q is not temporary", id)
	}
	if IsTempID("5b6c0c1e-0000-0000-0000-000000000000") {
		t.Error("uuid should not be temporary")
	}
	if NewTempID() == id {
		t.Error("temp ids must be unique")
	}
}

func TestProjectLookupFilters(t *testing.T) {
	var nilLookup *ProjectLookup
	if !nilLookup.IsZero() {
		t.Error("nil lookup should be zero")
	}
	if len(nilLookup.Filters()) != 0 {
		t.Error("nil lookup should have no filters")
	}

	l := &ProjectLookup{ProjectNumber: "P-1", Name: "North"}
	f := l.Filters()
	if len(f) != 2 || f["project_number"] != "P-1" || f["name"] != "North" {
		t.Errorf("Filters() = %v", f)
	}
	if _, ok := f["client"]; ok {
		t.Error("empty client should be omitted")
	}
}

func TestChamberRowOmitsEmpty(t *testing.T) {
	c := Chamber{ProjectID: "p1", Identifier: "MH-7"}
	row := c.Row()
	if len(row) != 2 {
		t.Errorf("Row() = %v, want only required fields", row)
	}

	lat := 51.5
	c.Latitude = &lat
	c.Notes = "silted"
	row = c.Row()
	if row["latitude"] != 51.5 || row["notes"] != "silted" {
		t.Errorf("Row() = %v", row)
	}
}

func TestPhotoSlotURLField(t *testing.T) {
	if SlotInternal.URLField() != "internal_photo_url" {
		t.Errorf("internal = %q", SlotInternal.URLField())
	}
	if SlotExternal.URLField() != "external_photo_url" {
		t.Errorf("external = %q", SlotExternal.URLField())
	}
}
