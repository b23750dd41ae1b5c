package upload

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/pipeline"
)

// errChunkWriteFailed marks a handleChunk error as a scratch-file I/O
// failure rather than a protocol violation, so readLoop can tell the two
// apart: a write failure fails the job (spec.md §4.2 Errors), a protocol
// violation just closes the session with an error frame.
var errChunkWriteFailed = errors.New("chunk write failed")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxChunkHeader = 4
	// maxFrameSize bounds a single binary frame: the 4-byte chunk index plus
	// generous headroom over the reference client's 1 MiB chunk size.
	maxFrameSize = 8*1024*1024 + maxChunkHeader
)

// session owns exactly one upload connection: one scratch file, one Job
// row, and the four server frame kinds (spec.md §6). It is not shared
// across goroutines beyond its own readLoop/writePump pair.
type session struct {
	conn         *websocket.Conn
	jobs         job.Repository
	scratch      blobstore.ScratchStore
	orchestrator *pipeline.Orchestrator
	logger       *slog.Logger

	send chan []byte

	j           *job.Job
	file        blobstore.ScratchFile
	chunkSize   int64
	totalChunks int
	totalSize   int64
	received    map[int]bool
}

func newSession(conn *websocket.Conn, j *job.Job, jobs job.Repository, scratch blobstore.ScratchStore, orchestrator *pipeline.Orchestrator, logger *slog.Logger) *session {
	return &session{
		conn:         conn,
		j:            j,
		jobs:         jobs,
		scratch:      scratch,
		orchestrator: orchestrator,
		logger:       logger,
		send:         make(chan []byte, 16),
		received:     make(map[int]bool),
	}
}

// run drives the session to completion: it starts the writer pump, reads
// frames until the connection closes, then tears everything down.
func (s *session) run() {
	go s.writePump()
	s.readLoop()

	close(s.send)
	if s.file != nil {
		_ = s.file.Close()
	}
}

func (s *session) readLoop() {
	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Warn("upload session read error", slog.String("error", err.Error()))
			}
			return
		}

		switch kind {
		case websocket.TextMessage:
			if err := s.handleInit(data); err != nil {
				s.sendError(err.Error())
				return
			}
		case websocket.BinaryMessage:
			if err := s.handleChunk(data); err != nil {
				if errors.Is(err, errChunkWriteFailed) {
					s.failJob(err.Error())
				} else {
					s.sendError(err.Error())
				}
				return
			}
			if s.uploadComplete() {
				s.finishUpload()
				return
			}
		}
	}
}

func (s *session) handleInit(data []byte) error {
	if s.file != nil {
		return fmt.Errorf("init already received for this session")
	}

	var f initFrame
	if err := json.Unmarshal(data, &f); err != nil || f.Kind != "init" {
		return fmt.Errorf("expected init control frame")
	}
	if f.TotalChunks <= 0 || f.TotalSize <= 0 {
		return fmt.Errorf("init requires positive totalChunks and totalSize")
	}

	ctx := context.Background()

	// chunkSize is fixed at init time per OQ1: totalSize/totalChunks rounded
	// up, so every subsequent chunk's offset is chunkIndex*chunkSize
	// regardless of arrival order.
	chunkSize := (f.TotalSize + int64(f.TotalChunks) - 1) / int64(f.TotalChunks)

	file, err := s.scratch.Create(ctx, s.j.ID, f.TotalSize)
	if err != nil {
		return fmt.Errorf("allocate scratch file: %w", err)
	}

	s.file = file
	s.chunkSize = chunkSize
	s.totalChunks = f.TotalChunks
	s.totalSize = f.TotalSize

	s.enqueue(newStatusUpdate(s.j.ID, string(s.j.Status), s.j.ProcessedFiles, s.j.TotalFiles))
	return nil
}

func (s *session) handleChunk(data []byte) error {
	if s.file == nil {
		return fmt.Errorf("no active upload session")
	}
	if len(data) < maxChunkHeader {
		return fmt.Errorf("chunk frame shorter than the 4-byte index prefix")
	}

	chunkIndex := int(binary.BigEndian.Uint32(data[:maxChunkHeader]))
	payload := data[maxChunkHeader:]

	if chunkIndex < 0 || chunkIndex >= s.totalChunks {
		return fmt.Errorf("chunk index %d out of range [0,%d)", chunkIndex, s.totalChunks)
	}

	offset := int64(chunkIndex) * s.chunkSize
	if err := s.file.WriteAt(offset, payload); err != nil {
		return fmt.Errorf("write chunk %d: %w: %w", chunkIndex, errChunkWriteFailed, err)
	}

	s.received[chunkIndex] = true
	s.enqueue(newChunkAck(s.j.ID, chunkIndex, len(s.received), s.totalChunks))
	return nil
}

func (s *session) uploadComplete() bool {
	return s.file != nil && len(s.received) == s.totalChunks
}

// finishUpload closes the scratch file, advances the job to extracting,
// and runs the remaining pipeline stages, forwarding progress over this
// session until the job reaches a terminal state or the client disconnects.
func (s *session) finishUpload() {
	ctx := context.Background()

	if err := s.file.Close(); err != nil {
		s.logger.Error("failed to close scratch file", slog.String("job_id", s.j.ID), slog.String("error", err.Error()))
		s.failJob("failed to finalize uploaded archive")
		return
	}
	s.file = nil

	if err := s.j.TransitionTo(job.StatusExtracting); err != nil {
		s.failJob(err.Error())
		return
	}
	if err := s.jobs.Save(ctx, s.j); err != nil {
		s.failJob("failed to persist job")
		return
	}
	s.enqueue(newStatusUpdate(s.j.ID, string(s.j.Status), s.j.ProcessedFiles, s.j.TotalFiles))

	if err := s.orchestrator.Run(ctx, s.j, s); err != nil {
		s.logger.Error("pipeline run failed", slog.String("job_id", s.j.ID), slog.String("error", err.Error()))
	}
	s.enqueue(newStatusUpdate(s.j.ID, string(s.j.GetStatus()), s.j.ProcessedFiles, s.j.TotalFiles))
}

func (s *session) failJob(message string) {
	ctx := context.Background()
	if err := s.j.Fail(message); err == nil {
		_ = s.jobs.Save(ctx, s.j)
	}
	s.sendError(message)
}

// Publish implements pipeline.Sink, forwarding orchestrator progress as
// processing_progress frames over this session.
func (s *session) Publish(_ context.Context, u pipeline.Update) {
	s.enqueue(newProcessingProgress(u.JobID, u.Stage, u.Current, u.Total, u.Message))
}

func (s *session) sendError(message string) {
	s.enqueue(newErrorFrame(message))
}

func (s *session) enqueue(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		s.logger.Error("failed to marshal upload frame", slog.String("error", err.Error()))
		return
	}
	select {
	case s.send <- data:
	default:
		s.logger.Warn("upload session send buffer full, dropping frame", slog.String("job_id", s.jobIDOrEmpty()))
	}
}

func (s *session) jobIDOrEmpty() string {
	if s.j == nil {
		return ""
	}
	return s.j.ID
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case data, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
