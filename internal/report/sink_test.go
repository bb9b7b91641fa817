package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileSink_WritesValidatedReport(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	path, err := NewFileSink(dir, false, zap.NewNop()).Persist(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "inferload_results_20260314_150926.json"), path)

	_, err = os.Stat(TracesPath(path))
	assert.True(t, os.IsNotExist(err), "no sidecar without traces")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, r.RunID, loaded.RunID)
	assert.Equal(t, r.Target, loaded.Target)
	require.Contains(t, loaded.Scenarios, "spike")
	for _, p := range loaded.Scenarios["spike"].Phases {
		assert.Empty(t, p.Outcomes)
	}
	assert.Equal(t, r.Scenarios["spike"].Phases[0].Summary, loaded.Scenarios["spike"].Phases[0].Summary)

	// in-memory report keeps its traces
	assert.Len(t, r.Traces(), 6)
}

func TestFileSink_TracesSidecar(t *testing.T) {
	dir := t.TempDir()
	r := sampleReport()

	path, err := NewFileSink(dir, true, nil).Persist(context.Background(), r)
	require.NoError(t, err)

	traces, err := LoadTraces(TracesPath(path))
	require.NoError(t, err)
	require.Len(t, traces, 6)
	assert.Equal(t, "Baseline", traces[0].Phase)
	assert.Equal(t, "HTTP 503", traces[3].Error)

	loaded, err := Load(path)
	require.NoError(t, err)
	loaded.AttachTraces(traces)
	assert.Len(t, loaded.Scenarios["spike"].Phases[1].Outcomes, 2)
}

func TestFileSink_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSink(t.TempDir(), false, nil).Persist(ctx, sampleReport())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_RejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hello":"world"}`), 0o644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidReport)
}

type fakeS3 struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.input = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Persist(t *testing.T) {
	client := &fakeS3{}
	sink := NewS3SinkWithClient(client, "results", "inferload/runs", nil)
	r := sampleReport()

	loc, err := sink.Persist(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "s3://results/inferload/runs/"+r.RunID+".json", loc)
	assert.Equal(t, "results", *client.input.Bucket)
	assert.Equal(t, "inferload/runs/"+r.RunID+".json", *client.input.Key)
	assert.Equal(t, "application/json", *client.input.ContentType)
	assert.NoError(t, ValidateJSON(client.body))
	assert.NotContains(t, string(client.body), `"outcomes"`)
}

func TestS3Sink_Error(t *testing.T) {
	sink := NewS3SinkWithClient(&fakeS3{err: errors.New("access denied")}, "b", "", nil)
	_, err := sink.Persist(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "access denied")
}

func TestNewS3Sink_RequiresBucket(t *testing.T) {
	_, err := NewS3Sink(context.Background(), S3Options{}, nil)
	assert.Error(t, err)
}

func TestPostgresSink_Persist(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := sampleReport()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inferload_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS inferload_phase_summaries").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inferload_runs")).
		WithArgs(r.RunID, r.Target, r.StartedAt, r.FinishedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	for _, name := range []string{"Baseline", "Spike", "Recovery"} {
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO inferload_phase_summaries")).
			WithArgs(r.RunID, "spike", name, sqlmock.AnyArg(), 2, sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	loc, err := NewPostgresSinkWithDB(db, zap.NewNop()).Persist(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "postgres://inferload_runs/"+r.RunID, loc)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSink_RollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO inferload_runs").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err = NewPostgresSinkWithDB(db, nil).Persist(context.Background(), sampleReport())
	assert.ErrorContains(t, err, "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingSink struct{ err error }

func (f failingSink) Persist(context.Context, *Report) (string, error) { return "", f.err }

type memorySink struct{ got []*Report }

func (m *memorySink) Persist(_ context.Context, r *Report) (string, error) {
	m.got = append(m.got, r)
	return "memory://" + r.RunID, nil
}

func TestMultiSink_ContinuesAfterFailure(t *testing.T) {
	boom := errors.New("disk full")
	mem := &memorySink{}
	multi := NewMultiSink(zap.NewNop(), failingSink{err: boom}, nil, mem)
	assert.Equal(t, 2, multi.Len())

	r := sampleReport()
	locations, err := multi.PersistAll(context.Background(), r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"memory://" + r.RunID}, locations)
	require.Len(t, mem.got, 1)

	// statistics are untouched by the failed sink
	assert.Equal(t, 6, r.Scenarios["spike"].Overall.Total)

	loc, err := multi.Persist(context.Background(), r)
	assert.Equal(t, "memory://"+r.RunID, loc)
	assert.Error(t, err)
}

func TestMultiSink_Empty(t *testing.T) {
	loc, err := NewMultiSink(nil).Persist(context.Background(), sampleReport())
	assert.NoError(t, err)
	assert.Empty(t, loc)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "SPIKE TEST (completed)")
	assert.Contains(t, out, "Baseline Phase Summary:")
	assert.Contains(t, out, "Successful: 1 (50.0%)")
	assert.Contains(t, out, "Avg Latency: 1.000s")
	assert.Contains(t, out, "Target recovered after the spike")
	assert.Contains(t, out, "Elapsed: 2m0s")
	assert.Contains(t, out, "[info] Baseline: small-sample percentile underestimate")
	assert.Contains(t, out, "    1  HTTP 503")
}

func TestErrorCounts_TruncatesOnRuneBoundary(t *testing.T) {
	long := "HTTP 500: " + strings.Repeat("é", 100)
	counts := errorCounts([]OutcomeRecord{
		{Success: false, Error: long},
		{Success: false, Error: long},
		{Success: true},
	})

	require.Len(t, counts, 1)
	assert.Equal(t, 2, counts[0].count)
	msg := counts[0].message
	assert.True(t, utf8.ValidString(msg), "truncated message must stay valid UTF-8")
	assert.True(t, strings.HasSuffix(msg, "..."))
	assert.Equal(t, maxErrorLen, utf8.RuneCountInString(strings.TrimSuffix(msg, "...")))
}

func TestWriteText_DegradationTable(t *testing.T) {
	r := New("t", t0)
	r.Add(&ScenarioReport{
		TestType: "soak",
		Status:   "completed",
		Chunks: []ChunkReport{
			{Index: 0, OffsetSeconds: 0, Summary: Summary{AvgLatency: 0.5, P95Latency: 0.9, SuccessRate: 100}},
			{Index: 1, OffsetSeconds: 60, Summary: Summary{AvgLatency: 0.7, P95Latency: 1.2, SuccessRate: 98.5}},
		},
	})

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, r))
	lines := strings.Split(buf.String(), "\n")

	var table []string
	for _, l := range lines {
		if strings.HasPrefix(l, "Chunk") || strings.HasPrefix(l, "1 ") || strings.HasPrefix(l, "2 ") {
			table = append(table, l)
		}
	}
	require.Len(t, table, 3)
	assert.Contains(t, table[1], "0.500")
	assert.Contains(t, table[2], "1m0s")
	assert.Contains(t, table[2], "98.5%")
}

func TestWriteText_PropagatesWriteError(t *testing.T) {
	err := WriteText(errWriterFunc(func([]byte) (int, error) { return 0, io.ErrClosedPipe }), sampleReport())
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}

type errWriterFunc func([]byte) (int, error)

func (f errWriterFunc) Write(p []byte) (int, error) { return f(p) }
