// FieldSync - Drainage Inspection Field Data Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fieldsync

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record kinds on the backend.
const (
	TableProjects = "projects"
	TableChambers = "chambers"
)

// TempIDPrefix marks an id minted on the device that the backend has never seen.
const TempIDPrefix = "tmp-"

// NewTempID returns a fresh temporary identifier.
func NewTempID() string {
	return TempIDPrefix + uuid.New().String()
}

// IsTempID reports whether id was minted on the device.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Project is a survey job.
type Project struct {
	ProjectNumber string `json:"project_number" validate:"required,max=64"`
	Name          string `json:"name" validate:"required,max=200"`
	Client        string `json:"client,omitempty" validate:"max=200"`
	SiteAddress   string `json:"site_address,omitempty" validate:"max=500"`
	Status        string `json:"status,omitempty" validate:"omitempty,oneof=planned active complete archived"`
}

// Row returns the insert row for the projects table.
func (p *Project) Row() map[string]interface{} {
	row := map[string]interface{}{
		"project_number": p.ProjectNumber,
		"name":           p.Name,
	}
	putString(row, "client", p.Client)
	putString(row, "site_address", p.SiteAddress)
	putString(row, "status", p.Status)
	return row
}

// Lookup returns the natural key of p.
func (p *Project) Lookup() ProjectLookup {
	return ProjectLookup{ProjectNumber: p.ProjectNumber, Name: p.Name, Client: p.Client}
}

// ProjectLookup is the natural key used to re-find a project whose real id is
// unknown on the device.
type ProjectLookup struct {
	ProjectNumber string `json:"project_number,omitempty"`
	Name          string `json:"name,omitempty"`
	Client        string `json:"client,omitempty"`
}

// IsZero reports whether no natural-key field is set.
func (l *ProjectLookup) IsZero() bool {
	return l == nil || (l.ProjectNumber == "" && l.Name == "" && l.Client == "")
}

// Filters returns the equality filters for a backend query. Empty fields are
// left out.
func (l *ProjectLookup) Filters() map[string]string {
	f := make(map[string]string, 3)
	if l == nil {
		return f
	}
	if l.ProjectNumber != "" {
		f["project_number"] = l.ProjectNumber
	}
	if l.Name != "" {
		f["name"] = l.Name
	}
	if l.Client != "" {
		f["client"] = l.Client
	}
	return f
}

// Chamber is a manhole or inspection chamber.
type Chamber struct {
	ProjectID      string   `json:"project_id" validate:"required"`
	Identifier     string   `json:"identifier" validate:"required,max=64"`
	ChamberType    string   `json:"chamber_type,omitempty" validate:"omitempty,oneof=manhole inspection catchpit soakaway other"`
	DepthM         *float64 `json:"depth_m,omitempty" validate:"omitempty,gte=0,lte=100"`
	CoverCondition string   `json:"cover_condition,omitempty" validate:"omitempty,oneof=good fair poor broken missing"`
	Notes          string   `json:"notes,omitempty" validate:"max=4000"`
	Latitude       *float64 `json:"latitude,omitempty" validate:"omitempty,latitude"`
	Longitude      *float64 `json:"longitude,omitempty" validate:"omitempty,longitude"`
}

// Row returns the insert row for the chambers table.
func (c *Chamber) Row() map[string]interface{} {
	row := map[string]interface{}{
		"project_id": c.ProjectID,
		"identifier": c.Identifier,
	}
	putString(row, "chamber_type", c.ChamberType)
	putString(row, "cover_condition", c.CoverCondition)
	putString(row, "notes", c.Notes)
	if c.DepthM != nil {
		row["depth_m"] = *c.DepthM
	}
	if c.Latitude != nil {
		row["latitude"] = *c.Latitude
	}
	if c.Longitude != nil {
		row["longitude"] = *c.Longitude
	}
	return row
}

// PhotoSlot names one of the two photo fields on a chamber.
type PhotoSlot string

const (
	SlotInternal PhotoSlot = "internal"
	SlotExternal PhotoSlot = "external"
)

// PhotoSlots lists slots in promotion order.
var PhotoSlots = []PhotoSlot{SlotInternal, SlotExternal}

// URLField is the chamber column that stores the slot's public URL.
func (s PhotoSlot) URLField() string {
	return string(s) + "_photo_url"
}

// PhotoRef points at a photo captured offline. StagedKey references the blob
// staging store. Inline holds a base64 data URL and is only read when
// StagedKey is empty.
type PhotoRef struct {
	StagedKey string `json:"staged_key,omitempty"`
	Inline    string `json:"inline,omitempty"`
	Filename  string `json:"filename,omitempty" validate:"max=255"`
}

// StagedBlob is a binary attachment held locally until upload.
type StagedBlob struct {
	Key      string    `json:"key"`
	Data     []byte    `json:"data"`
	MimeType string    `json:"mime_type"`
	Filename string    `json:"filename"`
	StagedAt time.Time `json:"staged_at"`
}

func putString(row map[string]interface{}, key, v string) {
	if v != "" {
		row[key] = v
	}
}
