// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// ErrUnknownMutationType is returned for a type outside the closed set.
var ErrUnknownMutationType = errors.New("unknown mutation type")

// MutationType names a target record kind and an operation.
type MutationType string

const (
	MutationCreateProject MutationType = "create-project"
	MutationUpdateProject MutationType = "update-project"
	MutationCreateChamber MutationType = "create-chamber"
	MutationUpdateChamber MutationType = "update-chamber"
)

// MutationTypes is the closed set of recognized types.
var MutationTypes = []MutationType{
	MutationCreateProject,
	MutationUpdateProject,
	MutationCreateChamber,
	MutationUpdateChamber,
}

// ParseMutationType validates s against the closed set.
func ParseMutationType(s string) (MutationType, error) {
	t := MutationType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownMutationType, s)
	}
	return t, nil
}

func (t MutationType) Valid() bool {
	switch t {
	case MutationCreateProject, MutationUpdateProject, MutationCreateChamber, MutationUpdateChamber:
		return true
	}
	return false
}

// Table returns the backend record kind the mutation writes to.
func (t MutationType) Table() string {
	switch t {
	case MutationCreateProject, MutationUpdateProject:
		return TableProjects
	case MutationCreateChamber, MutationUpdateChamber:
		return TableChambers
	}
	return ""
}

// Action returns "create" or "update".
func (t MutationType) Action() string {
	switch t {
	case MutationCreateProject, MutationCreateChamber:
		return "create"
	case MutationUpdateProject, MutationUpdateChamber:
		return "update"
	}
	return ""
}

func (t MutationType) String() string { return string(t) }

// Payload is implemented by the four typed payload variants.
type Payload interface {
	MutationType() MutationType
}

// CreateProjectPayload inserts a project. TempID is set when the project was
// created offline and other queued entries may reference it.
type CreateProjectPayload struct {
	TempID string `json:"temp_id,omitempty" validate:"omitempty,tempid"`
	Project
}

func (*CreateProjectPayload) MutationType() MutationType { return MutationCreateProject }

// UpdateProjectPayload applies Patch to the project with ID.
type UpdateProjectPayload struct {
	ID    string                 `json:"id" validate:"required"`
	Patch map[string]interface{} `json:"patch" validate:"required,min=1"`
}

func (*UpdateProjectPayload) MutationType() MutationType { return MutationUpdateProject }

// CreateChamberPayload inserts a chamber and then promotes its staged photos.
// ProjectLookup must be set whenever ProjectID is temporary and the project
// may sync under a different id.
type CreateChamberPayload struct {
	Chamber
	ProjectLookup *ProjectLookup `json:"project_lookup,omitempty"`
	InternalPhoto *PhotoRef      `json:"internal_photo,omitempty"`
	ExternalPhoto *PhotoRef      `json:"external_photo,omitempty"`
}

func (*CreateChamberPayload) MutationType() MutationType { return MutationCreateChamber }

// Photo returns the reference for slot, or nil.
func (p *CreateChamberPayload) Photo(slot PhotoSlot) *PhotoRef {
	switch slot {
	case SlotInternal:
		return p.InternalPhoto
	case SlotExternal:
		return p.ExternalPhoto
	}
	return nil
}

// StagedKeys returns the non-empty staged blob keys across both slots.
func (p *CreateChamberPayload) StagedKeys() []string {
	var keys []string
	for _, slot := range PhotoSlots {
		if ref := p.Photo(slot); ref != nil && ref.StagedKey != "" {
			keys = append(keys, ref.StagedKey)
		}
	}
	return keys
}

// UpdateChamberPayload applies Patch to the chamber with ID.
type UpdateChamberPayload struct {
	ID    string                 `json:"id" validate:"required"`
	Patch map[string]interface{} `json:"patch" validate:"required,min=1"`
}

func (*UpdateChamberPayload) MutationType() MutationType { return MutationUpdateChamber }

// NewPayload returns an empty payload value for t.
func NewPayload(t MutationType) (Payload, error) {
	switch t {
	case MutationCreateProject:
		return &CreateProjectPayload{}, nil
	case MutationUpdateProject:
		return &UpdateProjectPayload{}, nil
	case MutationCreateChamber:
		return &CreateChamberPayload{}, nil
	case MutationUpdateChamber:
		return &UpdateChamberPayload{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMutationType, string(t))
}

// DecodePayload parses raw JSON into the payload variant for t.
func DecodePayload(t MutationType, raw []byte) (Payload, error) {
	p, err := NewPayload(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return p, nil
}

// QueuedMutation is one pending write in the mutation log.
type QueuedMutation struct {
	ID        string          `json:"id"`
	Type      MutationType    `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewQueuedMutation encodes p and checks that it matches t.
func NewQueuedMutation(id string, t MutationType, p Payload, now time.Time) (QueuedMutation, error) {
	if !t.Valid() {
		return QueuedMutation{}, fmt.Errorf("%w: %q", ErrUnknownMutationType, string(t))
	}
	if p == nil {
		return QueuedMutation{}, fmt.Errorf("nil payload for %s", t)
	}
	if p.MutationType() != t {
		return QueuedMutation{}, fmt.Errorf("payload kind %s does not match mutation type %s", p.MutationType(), t)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return QueuedMutation{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return QueuedMutation{ID: id, Type: t, Payload: raw, CreatedAt: now.UTC()}, nil
}

// Decode returns the typed payload for m.Type.
func (m *QueuedMutation) Decode() (Payload, error) {
	return DecodePayload(m.Type, m.Payload)
}
