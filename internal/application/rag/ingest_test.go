package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic-rag-api/internal/application/retrieval"
	"agentic-rag-api/internal/domain/entity"
	"agentic-rag-api/internal/infrastructure/messaging"
)

type fakeLoader struct {
	err  error
	urls []string
}

func (l *fakeLoader) Load(_ context.Context, urls []string) ([]retrieval.SourceDocument, error) {
	l.urls = urls
	if l.err != nil {
		return nil, l.err
	}
	out := make([]retrieval.SourceDocument, 0, len(urls))
	for _, u := range urls {
		out = append(out, retrieval.SourceDocument{Source: u, Content: "text of " + u})
	}
	return out, nil
}

type fakeIndexer struct {
	disabled bool
	resets   int
	docs     int
}

func (i *fakeIndexer) Enabled() bool { return !i.disabled }

func (i *fakeIndexer) Reset(context.Context) error {
	i.resets++
	return nil
}

func (i *fakeIndexer) IndexDocuments(_ context.Context, docs []retrieval.SourceDocument) (int, error) {
	i.docs += len(docs)
	return len(docs) * 4, nil
}

type memoryJobs struct {
	mu   sync.Mutex
	jobs map[string]entity.IngestJob
}

func newMemoryJobs() *memoryJobs {
	return &memoryJobs{jobs: make(map[string]entity.IngestJob)}
}

func (m *memoryJobs) Create(_ context.Context, job *entity.IngestJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = *job
	return nil
}

func (m *memoryJobs) GetByID(_ context.Context, id string) (*entity.IngestJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *memoryJobs) Update(ctx context.Context, job *entity.IngestJob) error {
	return m.Create(ctx, job)
}

type fakePublisher struct {
	err  error
	sent []*messaging.IngestJobMessage
}

func (p *fakePublisher) PublishIngestJob(_ context.Context, job *messaging.IngestJobMessage) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.sent = append(p.sent, job)
	return "1-0", nil
}

var defaultCorpus = []string{"https://lilianweng.github.io/posts/2023-06-23-agent/"}

func TestResolveURLs(t *testing.T) {
	svc := NewIngestService(nil, nil, nil, nil, defaultCorpus)

	urls, err := svc.ResolveURLs(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultCorpus, urls)

	urls, err = svc.ResolveURLs([]string{" https://a/x ", "https://a/x", "", "http://b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a/x", "http://b"}, urls)

	_, err = svc.ResolveURLs([]string{"ftp://a/x"})
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = svc.ResolveURLs([]string{"not a url"})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = NewIngestService(nil, nil, nil, nil, nil).ResolveURLs(nil)
	assert.ErrorIs(t, err, ErrNoURLs)
}

func TestIngest_LoadsAndIndexes(t *testing.T) {
	loader := &fakeLoader{}
	indexer := &fakeIndexer{}
	svc := NewIngestService(loader, indexer, nil, nil, defaultCorpus)

	res, err := svc.Ingest(context.Background(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, &IngestResult{Documents: 1, Chunks: 4}, res)
	assert.Equal(t, 1, indexer.resets)
	assert.Equal(t, defaultCorpus, loader.urls)
}

func TestIngest_Errors(t *testing.T) {
	_, err := NewIngestService(&fakeLoader{}, &fakeIndexer{disabled: true}, nil, nil, defaultCorpus).Ingest(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrIndexerDisabled)

	boom := errors.New("404")
	_, err = NewIngestService(&fakeLoader{err: boom}, &fakeIndexer{}, nil, nil, defaultCorpus).Ingest(context.Background(), nil, false)
	assert.ErrorIs(t, err, boom)
}

func TestEnqueue_CreatesAndPublishes(t *testing.T) {
	jobs := newMemoryJobs()
	pub := &fakePublisher{}
	svc := NewIngestService(&fakeLoader{}, &fakeIndexer{}, jobs, pub, defaultCorpus)

	job, err := svc.Enqueue(context.Background(), []string{"https://a"}, true)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, job.Status)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, job.ID, pub.sent[0].JobID)
	assert.Equal(t, []string{"https://a"}, pub.sent[0].URLs)
	assert.True(t, pub.sent[0].Reset)

	stored, err := svc.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, stored.Status)
}

func TestEnqueue_PublishFailureMarksJobFailed(t *testing.T) {
	jobs := newMemoryJobs()
	svc := NewIngestService(&fakeLoader{}, &fakeIndexer{}, jobs, &fakePublisher{err: errors.New("redis down")}, defaultCorpus)

	_, err := svc.Enqueue(context.Background(), nil, false)
	require.Error(t, err)

	require.Len(t, jobs.jobs, 1)
	for _, j := range jobs.jobs {
		assert.Equal(t, entity.JobStatusFailed, j.Status)
	}
}

func TestEnqueue_Disabled(t *testing.T) {
	_, err := NewIngestService(&fakeLoader{}, &fakeIndexer{}, nil, nil, defaultCorpus).Enqueue(context.Background(), nil, false)
	assert.ErrorIs(t, err, ErrIngestDisabled)
}

func TestHandleMessage_CompletesJob(t *testing.T) {
	jobs := newMemoryJobs()
	pub := &fakePublisher{}
	svc := NewIngestService(&fakeLoader{}, &fakeIndexer{}, jobs, pub, defaultCorpus)

	job, err := svc.Enqueue(context.Background(), []string{"https://a", "https://b"}, false)
	require.NoError(t, err)

	msg, err := messaging.NewMessage(job.ID, messaging.MessageTypeIngest, pub.sent[0])
	require.NoError(t, err)
	require.NoError(t, svc.HandleMessage(context.Background(), msg))

	stored, _ := jobs.GetByID(context.Background(), job.ID)
	assert.Equal(t, entity.JobStatusCompleted, stored.Status)
	assert.Equal(t, 2, stored.Documents)
	assert.Equal(t, 8, stored.Chunks)

	// 重复投递直接跳过
	indexer := svc.indexer.(*fakeIndexer)
	require.NoError(t, svc.HandleMessage(context.Background(), msg))
	assert.Equal(t, 2, indexer.docs)
}

func TestHandleMessage_FailureIsReturnedForRetry(t *testing.T) {
	jobs := newMemoryJobs()
	svc := NewIngestService(&fakeLoader{err: errors.New("timeout")}, &fakeIndexer{}, jobs, &fakePublisher{}, defaultCorpus)

	msg, err := messaging.NewMessage("job-x", messaging.MessageTypeIngest, &messaging.IngestJobMessage{JobID: "job-x", URLs: []string{"https://a"}})
	require.NoError(t, err)

	err = svc.HandleMessage(context.Background(), msg)
	require.Error(t, err)

	stored, _ := jobs.GetByID(context.Background(), "job-x")
	require.NotNil(t, stored)
	assert.Equal(t, entity.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "timeout")
}

func TestHandleMessage_BadPayloadIsDropped(t *testing.T) {
	svc := NewIngestService(&fakeLoader{}, &fakeIndexer{}, newMemoryJobs(), &fakePublisher{}, defaultCorpus)
	msg := &messaging.Message{ID: "m", Type: messaging.MessageTypeIngest, Payload: []byte(`"not an object"`)}
	assert.NoError(t, svc.HandleMessage(context.Background(), msg))
}
