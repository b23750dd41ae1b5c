package upload

// Wire frame kinds exchanged over the duplex upload session (spec.md §6).
// Client frames: the text init frame opens a session; every following
// binary frame carries one chunk. Server frames are always JSON text.

type initFrame struct {
	Kind        string `json:"kind"`
	TotalChunks int    `json:"totalChunks"`
	TotalSize   int64  `json:"totalSize"`
}

type statusUpdateFrame struct {
	Kind  string           `json:"kind"`
	JobID string           `json:"jobId"`
	Data  statusUpdateData `json:"data"`
}

type statusUpdateData struct {
	Status         string `json:"status"`
	ProcessedFiles int    `json:"processedFiles"`
	TotalFiles     int    `json:"totalFiles"`
}

type chunkAckFrame struct {
	Kind  string        `json:"kind"`
	JobID string        `json:"jobId"`
	Data  chunkAckData  `json:"data"`
}

type chunkAckData struct {
	ChunkIndex int `json:"chunkIndex"`
	Received   int `json:"received"`
	Total      int `json:"total"`
}

type processingProgressFrame struct {
	Kind  string                  `json:"kind"`
	JobID string                  `json:"jobId"`
	Data  processingProgressData `json:"data"`
}

type processingProgressData struct {
	Stage   string `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message,omitempty"`
}

type errorFrame struct {
	Kind string    `json:"kind"`
	Data errorData `json:"data"`
}

type errorData struct {
	Message string `json:"message"`
}

func newStatusUpdate(jobID, status string, processed, total int) statusUpdateFrame {
	return statusUpdateFrame{
		Kind:  "status_update",
		JobID: jobID,
		Data:  statusUpdateData{Status: status, ProcessedFiles: processed, TotalFiles: total},
	}
}

func newChunkAck(jobID string, chunkIndex, received, total int) chunkAckFrame {
	return chunkAckFrame{
		Kind:  "chunk_ack",
		JobID: jobID,
		Data:  chunkAckData{ChunkIndex: chunkIndex, Received: received, Total: total},
	}
}

func newProcessingProgress(jobID, stage string, current, total int, message string) processingProgressFrame {
	return processingProgressFrame{
		Kind:  "processing_progress",
		JobID: jobID,
		Data:  processingProgressData{Stage: stage, Current: current, Total: total, Message: message},
	}
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Kind: "error", Data: errorData{Message: message}}
}
