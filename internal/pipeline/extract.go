package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path"
	"regexp"
	"strings"

	"github.com/shotsort/shotsort-api/internal/blobstore"
	"github.com/shotsort/shotsort-api/internal/job"
	"github.com/shotsort/shotsort-api/internal/media"
)

var acceptedImageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".heic": true, ".heif": true, ".bmp": true, ".tiff": true,
}

var acceptedVideoExt = map[string]bool{
	".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9.\-]`)

// sanitizeFilename replaces every character outside [A-Za-z0-9.-] with an
// underscore (§4.3).
func sanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// acceptEntry reports whether a zip entry should be extracted: not hidden,
// not a resource fork, not inside __MACOSX, not Thumbs.db, and has a
// supported extension. It also returns the resolved media type.
func acceptEntry(name string) (media.Type, bool) {
	base := path.Base(name)
	if strings.HasPrefix(base, ".") {
		return "", false
	}
	if strings.HasPrefix(base, "._") {
		return "", false
	}
	if strings.Contains(name, "__MACOSX") {
		return "", false
	}
	if strings.EqualFold(base, "Thumbs.db") {
		return "", false
	}

	ext := strings.ToLower(path.Ext(base))
	switch {
	case acceptedImageExt[ext]:
		return media.TypeImage, true
	case acceptedVideoExt[ext]:
		return media.TypeVideo, true
	default:
		return "", false
	}
}

func mimeTypeFor(filename string) string {
	t := mime.TypeByExtension(strings.ToLower(path.Ext(filename)))
	if t == "" {
		return "application/octet-stream"
	}
	return t
}

// runExtracting opens the job's scratch archive, accepts supported entries,
// uploads them to the Blob Store, and batch-creates MediaFile records
// (§4.3). A zero-accepted-entry archive is a fatal-per-job error.
func (o *Orchestrator) runExtracting(ctx context.Context, j *job.Job, sink Sink) error {
	r, _, err := o.scratch.Open(ctx, j.ID)
	if err != nil {
		return fmt.Errorf("open scratch archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read scratch archive: %w", err)
	}

	zr, err := zip.NewReader(strings.NewReader(string(data)), int64(len(data)))
	if err != nil {
		return fmt.Errorf("read archive: %w", err)
	}

	var accepted []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if _, ok := acceptEntry(f.Name); ok {
			accepted = append(accepted, f)
		}
	}

	if len(accepted) == 0 {
		return ErrNoMediaFiles
	}

	files := make([]*media.MediaFile, len(accepted))
	if err := forEachBounded(ctx, o.conc.Label, len(accepted), func(ctx context.Context, i int) error {
		f := accepted[i]
		mediaType, _ := acceptEntry(f.Name)
		filename := sanitizeFilename(path.Base(f.Name))
		mimeType := mimeTypeFor(filename)

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}
		defer func() { _ = rc.Close() }()

		// The storage key carries the entry's position in the archive ahead
		// of its sanitized basename: two entries from different folders can
		// legitimately share a basename (e.g. two cameras both producing
		// IMG_0001.jpg), and filename alone would collide in BuildKey,
		// silently overwriting one file's blob with the other's.
		key := blobstore.BuildKey(j.ID, fmt.Sprintf("%04d_%s", i, filename))
		url, err := o.blobs.Put(ctx, key, rc)
		if err != nil {
			return fmt.Errorf("upload %s: %w", filename, err)
		}

		files[i] = media.New(j.ID, filename, f.Name, key, url, mediaType, mimeType, int64(f.UncompressedSize64))

		sink.Publish(ctx, Update{JobID: j.ID, Stage: StageExtracting, Current: i + 1, Total: len(accepted)})
		return nil
	}); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	if err := o.media.SaveBatch(ctx, files); err != nil {
		return fmt.Errorf("save media files: %w", err)
	}

	if err := o.scratch.Remove(ctx, j.ID); err != nil {
		o.logger.Warn("failed to remove scratch archive", slog.String("job_id", j.ID), slog.String("error", err.Error()))
	}

	j.UpdateProgress(0, len(files))
	return o.advance(ctx, j, job.StatusLabeling)
}
