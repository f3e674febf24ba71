package domain

import "time"

const (
	MimePDF      = "application/pdf"
	MimePlain    = "text/plain"
	MimeMarkdown = "text/markdown"
)

// BlobInfo describes one stored object. Content is immutable after creation
// and the owner is fixed at creation.
type BlobInfo struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	OwnerID    string    `json:"owner_id"`
	MimeType   string    `json:"mime_type"`
	Size       int64     `json:"size"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileRecord is the per-owner metadata entry referencing a stored blob by id.
// It must never outlive its blob: delete removes both or reports the
// inconsistency.
type FileRecord struct {
	ID           string            `json:"id"`
	Filename     string            `json:"filename"`
	OriginalName string            `json:"original_name"`
	MimeType     string            `json:"mime_type"`
	UploadedAt   time.Time         `json:"uploaded_at"`
	Text         string            `json:"extracted_text"`
	Processing   *ProcessingResult `json:"processing_result,omitempty"`
}

// ProcessingResult is the embedded extraction summary. A nil pointer on the
// record means extraction was never attempted; Success=false means it was
// attempted and failed.
type ProcessingResult struct {
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	PageCount  int      `json:"page_count,omitempty"`
	PDFVersion string   `json:"pdf_version,omitempty"`
	Title      string   `json:"title,omitempty"`
	KeyInfo    *KeyInfo `json:"key_info,omitempty"`
}

// KeyInfo holds statistics derived from the cleaned extracted text.
type KeyInfo struct {
	WordCount          int      `json:"word_count"`
	ReadingTimeMinutes int      `json:"reading_time_minutes"`
	PotentialHeadings  []string `json:"potential_headings"`
	CharacterCount     int      `json:"character_count"`
	ParagraphCount     int      `json:"paragraph_count"`
}

// Extraction is the raw output of a text extractor, before normalization.
type Extraction struct {
	Text       string
	PageCount  int
	PDFVersion string
	Title      string
}
