package storage

import (
	"time"

	"ytpipeline/youtube"
)

// Record format constants.
const (
	FormatVersion   = "1.0"
	WorkflowVersion = "1.0"

	ValidationValid = "valid"
)

// MetadataRecord is the on-disk unit for one video. OriginalMetadata is
// written once; only WorkflowMetadata changes afterwards.
type MetadataRecord struct {
	VideoID          string            `json:"videoId"`
	FormatVersion    string            `json:"formatVersion"`
	CreatedAt        time.Time         `json:"createdAt"`
	OriginalMetadata *OriginalMetadata `json:"originalMetadata"`
	WorkflowMetadata WorkflowMetadata  `json:"workflowMetadata"`
	SystemIntegrity  SystemIntegrity   `json:"systemIntegrity"`
}

// OriginalMetadata is the fetched metadata plus its fetch time and checksum.
type OriginalMetadata struct {
	youtube.VideoMetadata
	FetchedAt time.Time `json:"fetchedAt"`
	Checksum  string    `json:"checksum"`
}

// WorkflowMetadata tracks downstream processing of a video.
type WorkflowMetadata struct {
	ProcessedAt        *time.Time         `json:"processedAt"`
	WorkflowVersion    string             `json:"workflowVersion"`
	AIEnhancedTitle    *string            `json:"aiEnhancedTitle"`
	ScriptGenerated    bool               `json:"scriptGenerated"`
	CostTracking       map[string]float64 `json:"costTracking"`
	ProcessingAttempts int                `json:"processingAttempts"`
	LastUpdated        *time.Time         `json:"lastUpdated,omitempty"`
}

// SystemIntegrity records the state of the record's own bookkeeping.
type SystemIntegrity struct {
	LastValidated    time.Time `json:"lastValidated"`
	ValidationStatus string    `json:"validationStatus"`
	BackupCreated    bool      `json:"backupCreated"`
}

// WorkflowUpdate is a partial update of WorkflowMetadata. Nil fields are
// left unchanged; a non-nil CostTracking replaces the stored map.
type WorkflowUpdate struct {
	ProcessedAt        *time.Time         `json:"processedAt,omitempty"`
	WorkflowVersion    *string            `json:"workflowVersion,omitempty" validate:"omitempty,min=1,max=32"`
	AIEnhancedTitle    *string            `json:"aiEnhancedTitle,omitempty" validate:"omitempty,max=500"`
	ScriptGenerated    *bool              `json:"scriptGenerated,omitempty"`
	CostTracking       map[string]float64 `json:"costTracking,omitempty" validate:"omitempty,dive,keys,required,endkeys,gte=0"`
	ProcessingAttempts *int               `json:"processingAttempts,omitempty" validate:"omitempty,gte=0"`
	// IncrementAttempts adds one to ProcessingAttempts after any explicit value is applied.
	IncrementAttempts bool `json:"incrementAttempts,omitempty"`
}

// apply merges u into w.
func (u WorkflowUpdate) apply(w *WorkflowMetadata) {
	if u.ProcessedAt != nil {
		t := u.ProcessedAt.UTC()
		w.ProcessedAt = &t
	}
	if u.WorkflowVersion != nil {
		w.WorkflowVersion = *u.WorkflowVersion
	}
	if u.AIEnhancedTitle != nil {
		title := *u.AIEnhancedTitle
		w.AIEnhancedTitle = &title
	}
	if u.ScriptGenerated != nil {
		w.ScriptGenerated = *u.ScriptGenerated
	}
	if u.CostTracking != nil {
		w.CostTracking = make(map[string]float64, len(u.CostTracking))
		for k, v := range u.CostTracking {
			w.CostTracking[k] = v
		}
	}
	if u.ProcessingAttempts != nil {
		w.ProcessingAttempts = *u.ProcessingAttempts
	}
	if u.IncrementAttempts {
		w.ProcessingAttempts++
	}
}

// Discrepancy is one field that differs between a record and its view row.
type Discrepancy struct {
	Field  string `json:"field"`
	Stored string `json:"stored"`
	View   string `json:"view"`
}

// Reconciliation is the result of comparing a record with its view row.
type Reconciliation struct {
	VideoID       string        `json:"videoId"`
	IsValid       bool          `json:"isValid"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}
