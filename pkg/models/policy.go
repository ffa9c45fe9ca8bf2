package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mextdomen/mextdomen/pkg/sid"
)

// PolicyType classifies what a group policy configures. Values outside the
// predefined set are treated as custom types.
type PolicyType string

const (
	PolicySecurity          PolicyType = "Security"
	PolicyRegistry          PolicyType = "Registry"
	PolicyScript            PolicyType = "Script"
	PolicyNetwork           PolicyType = "Network"
	PolicySoftware          PolicyType = "Software"
	PolicyFolderRedirection PolicyType = "FolderRedirection"
)

// TargetKind discriminates PolicyTarget variants.
type TargetKind string

const (
	TargetDomain TargetKind = "domain"
	TargetOU     TargetKind = "ou"
	TargetGroup  TargetKind = "group"
	TargetUser   TargetKind = "user"
	TargetAll    TargetKind = "all"
)

// PolicyTarget names what a policy applies to. ID is zero for TargetAll.
type PolicyTarget struct {
	Kind TargetKind `json:"kind" msgpack:"kind"`
	ID   uuid.UUID  `json:"id,omitempty" msgpack:"id"`
}

// ValueKind discriminates PolicyValue variants.
type ValueKind string

const (
	ValueString  ValueKind = "string"
	ValueInteger ValueKind = "integer"
	ValueBoolean ValueKind = "boolean"
	ValueList    ValueKind = "list"
	ValueJSON    ValueKind = "json"
	ValueBinary  ValueKind = "binary"
)

// PolicyValue is a tagged setting value. Exactly the field matching Kind is
// meaningful; the rest stay zero.
type PolicyValue struct {
	Kind    ValueKind       `json:"kind" msgpack:"kind"`
	String  string          `json:"string,omitempty" msgpack:"string"`
	Integer int64           `json:"integer,omitempty" msgpack:"integer"`
	Boolean bool            `json:"boolean,omitempty" msgpack:"boolean"`
	List    []PolicyValue   `json:"list,omitempty" msgpack:"list"`
	JSON    json.RawMessage `json:"json,omitempty" msgpack:"json"`
	Binary  []byte          `json:"binary,omitempty" msgpack:"binary"`
}

// StringValue builds a string-kind PolicyValue.
func StringValue(s string) PolicyValue {
	return PolicyValue{Kind: ValueString, String: s}
}

// IntegerValue builds an integer-kind PolicyValue.
func IntegerValue(i int64) PolicyValue {
	return PolicyValue{Kind: ValueInteger, Integer: i}
}

// BooleanValue builds a boolean-kind PolicyValue.
func BooleanValue(b bool) PolicyValue {
	return PolicyValue{Kind: ValueBoolean, Boolean: b}
}

// SidOrID identifies a principal for security filtering, either by SID or
// by directory ID. Exactly one field is set.
type SidOrID struct {
	SID *sid.SID   `json:"sid,omitempty" msgpack:"sid"`
	ID  *uuid.UUID `json:"id,omitempty" msgpack:"id"`
}

// GroupPolicy is a named bundle of settings linked to OUs or domains.
type GroupPolicy struct {
	ID                uuid.UUID              `json:"id" msgpack:"id"`
	Name              string                 `json:"name" msgpack:"name"`
	DisplayName       string                 `json:"display_name" msgpack:"display_name"`
	Description       string                 `json:"description,omitempty" msgpack:"description"`
	Version           uint32                 `json:"version" msgpack:"version"`
	PolicyType        PolicyType             `json:"policy_type" msgpack:"policy_type"`
	Target            PolicyTarget           `json:"target" msgpack:"target"`
	Settings          map[string]PolicyValue `json:"settings" msgpack:"settings"`
	Enabled           bool                   `json:"enabled" msgpack:"enabled"`
	Enforced          bool                   `json:"enforced" msgpack:"enforced"`
	Order             uint32                 `json:"order" msgpack:"order"`
	SecurityFiltering []SidOrID              `json:"security_filtering" msgpack:"security_filtering"`
	WMIFilter         string                 `json:"wmi_filter,omitempty" msgpack:"wmi_filter"`
	CreatedAt         time.Time              `json:"created_at" msgpack:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at" msgpack:"updated_at"`

	// LinkedTo lists the OU or domain IDs this policy is linked to.
	LinkedTo []uuid.UUID `json:"linked_to" msgpack:"linked_to"`
}
