package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/keyword-crawler/internal/crawler"
)

var foundAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleResults() []crawler.Result {
	return []crawler.Result{
		{RunID: "run-1", Keyword: "shop", Category: "txt", Label: "Shop, robots", Link: "https://shop.com.bd/robots.txt", FoundAt: foundAt},
		{RunID: "run-1", Keyword: "shop", Category: "txt", Label: "Readme", Link: "https://shop.com.bd/readme.txt", FoundAt: foundAt},
	}
}

func TestCSVAppendsWithSingleHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "results.csv")
	first, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, first.Write(context.Background(), "shop", "txt", sampleResults()[:1]))
	require.NoError(t, first.Close())

	second, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, second.Write(context.Background(), "shop", "txt", sampleResults()[1:]))
	require.NoError(t, second.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"run-1", "shop", "txt", "Shop, robots", "https://shop.com.bd/robots.txt", "2024-03-01T12:00:00Z"}, rows[1])
	assert.Equal(t, "https://shop.com.bd/readme.txt", rows[2][4])
}

func TestCSVConcurrentWriters(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	s, err := NewCSV(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Write(context.Background(), "k", "txt", sampleResults()))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 41)
}

func TestPostgresWriteInsertsInTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "")
	require.NoError(t, err)

	results := sampleResults()
	mock.ExpectBegin()
	for _, r := range results {
		mock.ExpectExec("INSERT INTO keyword_results").
			WithArgs(r.Link, r.RunID, r.Keyword, r.Category, r.Label, r.FoundAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.Write(context.Background(), "shop", "txt", results))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresWriteRollsBackOnError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "results")
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO results").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err = store.Write(context.Background(), "shop", "txt", sampleResults())
	require.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "results")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS results").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRejectsBadTableName(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPostgresWithPool(mock, "results; DROP TABLE x")
	require.Error(t, err)
	_, err = NewPostgresWithPool(nil, "results")
	require.Error(t, err)
}

func TestPostgresWriteEmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewPostgresWithPool(mock, "")
	require.NoError(t, err)
	require.NoError(t, store.Write(context.Background(), "k", "txt", nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteIgnoresDuplicateLinks(t *testing.T) {
	t.Parallel()

	s, err := NewSQLite(filepath.Join(t.TempDir(), "db", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Write(ctx, "shop", "txt", sampleResults()))
	require.NoError(t, s.Write(ctx, "shop", "txt", sampleResults()[:1]))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestKafkaPublishesOneMessagePerResult(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	s := NewKafkaWithWriter(writer)

	require.NoError(t, s.Write(context.Background(), "shop", "txt", sampleResults()))
	require.Len(t, writer.msgs, 2)
	assert.Equal(t, "https://shop.com.bd/robots.txt", string(writer.msgs[0].Key))

	var decoded crawler.Result
	require.NoError(t, json.Unmarshal(writer.msgs[1].Value, &decoded))
	assert.Equal(t, sampleResults()[1], decoded)

	require.NoError(t, s.Close())
	assert.True(t, writer.closed)
}

func TestKafkaWrapsWriterErrors(t *testing.T) {
	t.Parallel()

	s := NewKafkaWithWriter(&fakeWriter{err: errors.New("leader not available")})
	err := s.Write(context.Background(), "shop", "txt", sampleResults())
	require.ErrorContains(t, err, "kafka write: leader not available")
	require.NoError(t, s.Write(context.Background(), "shop", "txt", nil))
}

func TestNewKafkaValidates(t *testing.T) {
	t.Parallel()

	_, err := NewKafka(nil, "topic")
	require.Error(t, err)
	s, err := NewKafka([]string{"localhost:9092"}, "results")
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

type fakePublisher struct {
	data    [][]byte
	attrs   []map[string]string
	err     error
	stopped bool
}

func (p *fakePublisher) Publish(_ context.Context, data []byte, attrs map[string]string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.data = append(p.data, data)
	p.attrs = append(p.attrs, attrs)
	return "msg-1", nil
}

func (p *fakePublisher) Stop() { p.stopped = true }

func TestPubSubPublishesNotification(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	s := NewPubSubWithPublisher(pub)

	require.NoError(t, s.Write(context.Background(), "shop", "txt", sampleResults()))
	require.NoError(t, s.Write(context.Background(), "shop", "txt", nil))
	require.Len(t, pub.data, 1)

	var note Notification
	require.NoError(t, json.Unmarshal(pub.data[0], &note))
	assert.Equal(t, Notification{
		RunID:    "run-1",
		Keyword:  "shop",
		Category: "txt",
		Links:    []string{"https://shop.com.bd/robots.txt", "https://shop.com.bd/readme.txt"},
	}, note)
	assert.Equal(t, map[string]string{"keyword": "shop", "category": "txt"}, pub.attrs[0])

	require.NoError(t, s.Close())
	assert.True(t, pub.stopped)
}

func TestPubSubWrapsErrors(t *testing.T) {
	t.Parallel()

	s := NewPubSubWithPublisher(&fakePublisher{err: errors.New("permission denied")})
	require.ErrorContains(t, s.Write(context.Background(), "k", "txt", sampleResults()), "permission denied")
}

type failingSink struct{ err error }

func (f failingSink) Write(context.Context, string, string, []crawler.Result) error { return f.err }
func (f failingSink) Close() error                                                 { return f.err }

func TestMultiWritesToEverySink(t *testing.T) {
	t.Parallel()

	a, b := NewMemory(), NewMemory()
	boom := errors.New("boom")
	m := NewMulti(a, nil, failingSink{err: boom}, b)

	err := m.Write(context.Background(), "shop", "txt", sampleResults())
	require.ErrorIs(t, err, boom)
	assert.Len(t, a.Results(), 2)
	assert.Len(t, b.Results(), 2)
	assert.Equal(t, 1, b.Writes())

	require.ErrorIs(t, m.Close(), boom)
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}
