package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"

	"github.com/shotsort/shotsort-api/internal/media"
	"github.com/shotsort/shotsort-api/internal/modelprovider"
)

// fakeModel is a deterministic modelprovider.Client for pipeline tests. Each
// hook defaults to an always-succeeding behavior; tests override only the
// hooks they care about.
type fakeModel struct {
	mu sync.Mutex

	describeCalls int32

	describeFn       func(mediaType media.Type) string
	sameTakeFn       func(a, b []byte) (bool, error)
	compareQualityFn func(a, b []byte) (modelprovider.QualityResult, error)
	enhanceFn        func(data []byte) ([]byte, error)
	nameBucketFn     func(labels []string) string
}

var _ modelprovider.Client = (*fakeModel)(nil)

func newFakeModel() *fakeModel {
	return &fakeModel{}
}

func (f *fakeModel) Describe(_ context.Context, data io.Reader, mediaType media.Type, _ string) (string, error) {
	atomic.AddInt32(&f.describeCalls, 1)
	_, _ = io.ReadAll(data)
	if f.describeFn != nil {
		return f.describeFn(mediaType), nil
	}
	return "a label", nil
}

func (f *fakeModel) SameTake(_ context.Context, a, b io.Reader) (bool, error) {
	aBytes, _ := io.ReadAll(a)
	bBytes, _ := io.ReadAll(b)
	if f.sameTakeFn != nil {
		return f.sameTakeFn(aBytes, bBytes)
	}
	return false, nil
}

func (f *fakeModel) CompareQuality(_ context.Context, a, b io.Reader, _ media.Type, _ string) (modelprovider.QualityResult, error) {
	aBytes, _ := io.ReadAll(a)
	bBytes, _ := io.ReadAll(b)
	if f.compareQualityFn != nil {
		return f.compareQualityFn(aBytes, bBytes)
	}
	return modelprovider.QualityResult{Winner: "a", Confidence: 1, Reasoning: "default"}, nil
}

func (f *fakeModel) Enhance(_ context.Context, data io.Reader) (io.ReadCloser, error) {
	raw, _ := io.ReadAll(data)
	if f.enhanceFn != nil {
		out, err := f.enhanceFn(raw)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(newByteReader(out)), nil
	}
	return io.NopCloser(newByteReader(append([]byte("enhanced:"), raw...))), nil
}

func (f *fakeModel) NameBucket(_ context.Context, labels []string) (string, error) {
	if f.nameBucketFn != nil {
		return f.nameBucketFn(labels), nil
	}
	return "Fake Bucket", nil
}
