package models

import (
	"time"
)

// Event log models
type EventLogRecord struct {
	RecordID     int64     `json:"record_id"`
	Channel      string    `json:"channel"` // System, Application, Security
	Provider     string    `json:"provider"`
	EventID      int       `json:"event_id"`
	Level        string    `json:"level"` // critical, error, warning, information
	TimeCreated  time.Time `json:"time_created"`
	ComputerName string    `json:"computer_name"`
	UserName     string    `json:"user_name,omitempty"`
	Message      string    `json:"message"`
}

type EventLogFilter struct {
	Channel   string     `json:"channel,omitempty"`
	Level     string     `json:"level,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	EventID   int        `json:"event_id,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Until     *time.Time `json:"until,omitempty"`
	MaxEvents int        `json:"max_events,omitempty"`
}

// File index models
type FileEntry struct {
	Path      string            `json:"path"`
	FileName  string            `json:"file_name"`
	Extension string            `json:"extension,omitempty"`
	SizeBytes int64             `json:"size_bytes"`
	Created   time.Time         `json:"created"`
	Modified  time.Time         `json:"modified"`
	Author    string            `json:"author,omitempty"`
	Title     string            `json:"title,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
}

type FileSearchQuery struct {
	NamePattern string `json:"name_pattern,omitempty"`
	Extension   string `json:"extension,omitempty"`
	MaxResults  int    `json:"max_results,omitempty"`
}

// Event bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // raw-record, anonymized-record, query-audit
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}

// Query API responses
type EventQueryResponse struct {
	Records    []EventLogRecord `json:"records"`
	Count      int              `json:"count"`
	Anonymized bool             `json:"anonymized"`
}

type FileSearchResponse struct {
	Entries    []FileEntry `json:"entries"`
	Count      int         `json:"count"`
	Anonymized bool        `json:"anonymized"`
}

type MappingStats struct {
	Usernames     int       `json:"usernames"`
	ComputerNames int       `json:"computer_names"`
	IPAddresses   int       `json:"ip_addresses"`
	Emails        int       `json:"emails"`
	Paths         int       `json:"paths"`
	LastSaved     time.Time `json:"last_saved,omitempty"`
}
