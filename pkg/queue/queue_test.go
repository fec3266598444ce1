package queue_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/cuemby/cdf-extractor-utils/pkg/identity"
	"github.com/cuemby/cdf-extractor-utils/pkg/model"
	"github.com/cuemby/cdf-extractor-utils/pkg/queue"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFlushesOnTrigger(t *testing.T) {
	var uploaded []int
	q := queue.New(queue.Config[int]{
		Name:           "test",
		UploadInterval: time.Hour,
		Codec:          queue.JSONCodec[int]{},
		Log:            zerolog.Nop(),
		Upload: func(ctx context.Context, items []int) queue.UploadResult[int] {
			uploaded = append(uploaded, items...)
			return queue.UploadResult[int]{Uploaded: len(items)}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	q.Trigger()

	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, uploaded)
}

// TestQueueBufferedUnderOutageThenRecovers matches the "queue with buffer
// under outage" scenario: 10 events, the next two flushes fail, the buffer
// file is non-empty after each failure and cloud state stays unchanged, then the
// next flush after recovery writes everything and truncates the buffer.
func TestQueueBufferedUnderOutageThenRecovers(t *testing.T) {
	bufPath := t.TempDir() + "/buf.bin"

	var attempt int
	var delivered []int
	q := queue.New(queue.Config[int]{
		Name:           "events",
		UploadInterval: time.Hour,
		BufferPath:     bufPath,
		Codec:          queue.JSONCodec[int]{},
		Log:            zerolog.Nop(),
		Upload: func(ctx context.Context, items []int) queue.UploadResult[int] {
			attempt++
			if attempt <= 2 {
				return queue.UploadResult[int]{Failed: items, Err: errors.New("server error")}
			}
			delivered = append(delivered, items...)
			return queue.UploadResult[int]{Uploaded: len(items)}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	for i := 0; i < 10; i++ {
		q.Enqueue(i)
	}

	q.Trigger()
	info, err := os.Stat(bufPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Empty(t, delivered)

	q.Trigger()
	info, err = os.Stat(bufPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
	assert.Empty(t, delivered)

	q.Trigger()
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, delivered)
	info, err = os.Stat(bufPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

type fakeReporter struct {
	calls []string
}

func (r *fakeReporter) ReportRun(ctx context.Context, status, message string) error {
	r.calls = append(r.calls, status)
	return nil
}

// TestQueueReportsPipelineRunAfterFailureStreakThenRecovery matches spec
// §4.6's "post a seen/failure run after a flush failure streak": two
// consecutive failed flushes cross a threshold of 2 and post one "failure"
// run, then the next successful flush posts one "seen" run.
func TestQueueReportsPipelineRunAfterFailureStreakThenRecovery(t *testing.T) {
	reporter := &fakeReporter{}
	var attempt int
	q := queue.New(queue.Config[int]{
		Name:                   "events",
		UploadInterval:         time.Hour,
		Codec:                  queue.JSONCodec[int]{},
		Log:                    zerolog.Nop(),
		Pipeline:               reporter,
		FailureStreakThreshold: 2,
		Upload: func(ctx context.Context, items []int) queue.UploadResult[int] {
			attempt++
			if attempt <= 2 {
				return queue.UploadResult[int]{Failed: items, Err: errors.New("server error")}
			}
			return queue.UploadResult[int]{Uploaded: len(items)}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	q.Enqueue(1)
	q.Trigger()
	assert.Empty(t, reporter.calls)

	q.Enqueue(2)
	q.Trigger()
	require.Equal(t, []string{queue.RunStatusFailure}, reporter.calls)

	q.Enqueue(3)
	q.Trigger()
	assert.Equal(t, []string{queue.RunStatusFailure, queue.RunStatusSeen}, reporter.calls)
}

func TestDataPointCodecRoundTrip(t *testing.T) {
	codec := queue.DataPointCodec{}
	frame := queue.DataPointFrame{
		ID: identity.ByExternalID("S1"),
		Points: []model.DataPoint{
			{Timestamp: time.UnixMilli(1000).UTC(), Value: 3.14},
			{Timestamp: time.UnixMilli(2000).UTC(), IsString: true, StringValue: "hello"},
		},
	}

	encoded, err := codec.Encode(frame)
	require.NoError(t, err)
	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, frame, decoded)
}

func TestDataPointCodecRejectsEmptySeries(t *testing.T) {
	codec := queue.DataPointCodec{}
	_, err := codec.Encode(queue.DataPointFrame{ID: identity.ByExternalID("S1")})
	require.Error(t, err)
}
