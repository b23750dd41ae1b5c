// Package server provides the HTTP surface for the Take Sorter API: REST
// handlers, the upload websocket mount, middleware, and request/response
// DTOs kept separate from the domain types they project.
package server

// CreateJobRequest is the HTTP request body for POST /jobs. Name is
// optional and purely cosmetic (shown in the summary list).
type CreateJobRequest struct {
	Name string `json:"name" validate:"max=200"`
}

// CreateJobResponse is returned by POST /jobs: the allocated job, already
// in the uploading state, and the websocket URL to stream chunks to.
type CreateJobResponse struct {
	JobID string `json:"jobId"`
	WSURL string `json:"wsUrl"`
}

// JobSummaryResponse is the wire projection of query.JobSummary.
type JobSummaryResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	TotalFiles     int    `json:"totalFiles"`
	ProcessedFiles int    `json:"processedFiles"`
	Error          string `json:"error,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
	CompletedAt    string `json:"completedAt,omitempty"`
}

// ListJobsResponse is the paged GET /jobs response.
type ListJobsResponse struct {
	Jobs   []JobSummaryResponse `json:"jobs"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// MediaSummaryResponse is the wire projection of query.MediaSummary.
type MediaSummaryResponse struct {
	ID              string  `json:"id"`
	Filename        string  `json:"filename"`
	MediaType       string  `json:"mediaType"`
	BlobURL         string  `json:"blobUrl"`
	Label           string  `json:"label"`
	RatingScore     float64 `json:"ratingScore"`
	IsTopPick       bool    `json:"isTopPick"`
	EnhancedBlobURL string  `json:"enhancedBlobUrl,omitempty"`
}

// BucketViewResponse is the wire projection of query.BucketView.
type BucketViewResponse struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	MediaType string                 `json:"mediaType"`
	Members   []MediaSummaryResponse `json:"members"`
}

// PartialResultResponse is the GET /jobs/:id/partial response (spec.md §4.9b).
type PartialResultResponse struct {
	Job         JobSummaryResponse     `json:"job"`
	Buckets     []BucketViewResponse   `json:"buckets"`
	Unclustered []MediaSummaryResponse `json:"unclustered"`
}

// FinalResultResponse is the GET /jobs/:id/results response (spec.md §4.9c).
type FinalResultResponse struct {
	Job      JobSummaryResponse     `json:"job"`
	TopPicks []MediaSummaryResponse `json:"topPicks"`
	Buckets  []BucketViewResponse   `json:"buckets"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
