package pipeline

// Stream topics, one per hand-off between stages. Renaming a topic orphans
// consumer groups, so treat these as frozen.
const (
	TopicIngest   = "certificate.ingest"
	TopicOCR      = "certificate.ocr"
	TopicMetadata = "certificate.metadata"
)

// IngestEvent announces a freshly queued submission to the OCR stage.
type IngestEvent struct {
	SubmissionID string `json:"submission_id"`
}

// OCREvent announces completed text recognition to the metadata stage.
type OCREvent struct {
	SubmissionID string `json:"submission_id"`
	OCRResultID  string `json:"ocr_result_id"`
}

// MetadataEvent announces extracted fields to the categorization stage.
type MetadataEvent struct {
	SubmissionID string `json:"submission_id"`
	MetadataID   string `json:"metadata_id"`
}
