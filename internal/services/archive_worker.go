package services

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/markdave123-py/Prism/internal/core"
	"github.com/markdave123-py/Prism/internal/core/logger"
	objectclient "github.com/markdave123-py/Prism/internal/core/object-client"
)

// archiveJob is one saved upload waiting to be copied to object storage.
//
// Path:        local copy; removed once the job finishes, whatever the outcome.
// Name:        original file name, used in the object key.
// ContentType: stored alongside the object.
type archiveJob struct {
	SessionID   string
	Name        string
	Path        string
	ContentType string

	epoch uint64
}

// Archiver copies ingested uploads to object storage on a single background
// worker so requests never wait on the upload.
type Archiver struct {
	obj  core.ObjectClient
	jobs chan archiveJob
	log  *logger.Logger

	mu     sync.Mutex
	closed bool
	epochs map[string]uint64 // bumped by Purge; older jobs are dropped
	wg     sync.WaitGroup

	// held across an upload and across a purge so neither interleaves
	uploadMu sync.Mutex
}

// NewArchiver builds an archiver with a bounded job queue (64).
func NewArchiver(obj core.ObjectClient, log *logger.Logger) *Archiver {
	return &Archiver{
		obj:    obj,
		jobs:   make(chan archiveJob, 64),
		epochs: make(map[string]uint64),
		log:    log.With("service", "Archiver"),
	}
}

// Start runs the worker. It drains the queue after Close.
func (a *Archiver) Start(ctx context.Context) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for job := range a.jobs {
			a.processOne(ctx, job)
		}
	}()
}

// Enqueue hands a saved file to the worker. When the queue is full or closed
// the file is removed right away and false is returned.
func (a *Archiver) Enqueue(job archiveJob) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.closed {
		job.epoch = a.epochs[job.SessionID]
		select {
		case a.jobs <- job:
			return true
		default:
		}
	}
	a.log.Warn("archive queue unavailable, skipping upload", "file", job.Name)
	removeUpload(job.Path, a.log)
	return false
}

// Close stops accepting jobs and waits for queued ones.
func (a *Archiver) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	a.wg.Wait()
}

// Purge deletes everything archived for the session and drops its queued
// jobs. An upload already running finishes before the delete starts.
func (a *Archiver) Purge(ctx context.Context, sessionID string) error {
	a.uploadMu.Lock()
	defer a.uploadMu.Unlock()

	a.mu.Lock()
	a.epochs[sessionID]++
	a.mu.Unlock()

	return a.obj.DeletePrefix(ctx, objectclient.SessionPrefix(sessionID))
}

func (a *Archiver) stale(job archiveJob) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return job.epoch != a.epochs[job.SessionID]
}

func (a *Archiver) processOne(ctx context.Context, job archiveJob) {
	defer removeUpload(job.Path, a.log)

	a.uploadMu.Lock()
	defer a.uploadMu.Unlock()
	if a.stale(job) {
		a.log.Debug("session purged, upload dropped", "file", job.Name, "session", job.SessionID)
		return
	}
	if err := a.upload(ctx, job); err != nil {
		a.log.Warn("archive upload failed", "file", job.Name, "session", job.SessionID, "error", err)
	}
}

func (a *Archiver) upload(ctx context.Context, job archiveJob) error {
	f, err := os.Open(job.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	key := objectclient.ArchiveKey(job.SessionID, job.Name)
	url, err := a.obj.UploadFile(ctx, key, f, job.ContentType)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	a.log.Debug("upload archived", "file", job.Name, "url", url)
	return nil
}

func removeUpload(path string, log *logger.Logger) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("could not remove upload", "path", path, "error", err)
	}
}
