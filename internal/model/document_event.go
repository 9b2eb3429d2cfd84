package model

// DocumentEventOp names a change to persisted study material.
type DocumentEventOp string

const (
	DocumentUpsert    DocumentEventOp = "upsert"
	DocumentDelete    DocumentEventOp = "delete"
	DocumentDropScope DocumentEventOp = "drop_scope"
)

// DocumentEvent is the write-behind message consumed by the persist worker.
// Document is set for upserts only.
type DocumentEvent struct {
	Op         DocumentEventOp `json:"op"`
	UserID     string          `json:"user_id"`
	SubjectKey string          `json:"subject_key"`
	OriginName string          `json:"origin_name,omitempty"`
	Document   *StudyDocument  `json:"document,omitempty"`
}
