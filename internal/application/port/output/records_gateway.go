package output

import (
	"context"
	"time"
)

// RemoteRecord is one memo as the record service reports it. Field mapping to
// the local Note: ID -> ServerID, Description -> Transcription,
// AudioURL -> AudioPath, Datetime/CreatedAt -> CreatedAt.
type RemoteRecord struct {
	ID          int64
	FolderID    *int64
	Title       *string
	Description *string
	Datetime    *time.Time
	Latitude    *float64
	Longitude   *float64
	Duration    *int64
	Category    *string
	AudioURL    *string
	CreatedAt   *time.Time
	UpdatedAt   *time.Time
}

// RecordsPage is one page of the paginated records listing
type RecordsPage struct {
	Items         []RemoteRecord
	TotalPages    int
	TotalElements int
	Page          int
}

// UploadRecordRequest carries a finished recording to the record service
type UploadRecordRequest struct {
	FilePath string // local audio file to upload
	Name     string
	Datetime time.Time
	Category string
	Place    string // optional resolved place name
}

// FetchRecordsRequest selects a page of remote records
type FetchRecordsRequest struct {
	Search   string // optional, matches title/description server-side
	FolderID *int64 // optional
	Page     int    // 0-based
	PageSize int
}

// RecordsGateway is the remote record service
type RecordsGateway interface {
	// FetchRecords returns one page of records matching the request
	FetchRecords(ctx context.Context, req FetchRecordsRequest) (*RecordsPage, error)

	// UploadRecord sends a recording plus metadata and returns the created
	// remote record, whose ID becomes the Note's server identity
	UploadRecord(ctx context.Context, req UploadRecordRequest) (*RemoteRecord, error)

	// DownloadAudio fetches the audio for a remote record and stores it
	// locally, returning the local path
	DownloadAudio(ctx context.Context, recordID int64) (string, error)

	// DownloadTranscriptPDF fetches the transcript rendered as a PDF for
	// sharing, returning the local path
	DownloadTranscriptPDF(ctx context.Context, recordID int64) (string, error)
}
