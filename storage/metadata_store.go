package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ytpipeline/youtube"
)

// DefaultLockTimeout bounds how long a workflow update waits for the record lock.
const DefaultLockTimeout = 10 * time.Second

// MetadataStore keeps one JSON record per video under a directory. It is
// safe for concurrent use within and across processes sharing the directory.
type MetadataStore struct {
	dir         string
	local       *DirBackup
	remote      []BackupSink
	view        ViewLayer
	refetcher   Refetcher
	log         logrus.FieldLogger
	now         func() time.Time
	lockTimeout time.Duration
}

// Option configures a MetadataStore.
type Option func(*MetadataStore)

// WithBackupDir sets the local backup directory. The default is dir/backups.
func WithBackupDir(dir string) Option {
	return func(s *MetadataStore) { s.local = &DirBackup{Dir: dir} }
}

// WithBackupSink adds an off-host backup destination. Its failures are
// logged and do not affect backupCreated.
func WithBackupSink(sink BackupSink) Option {
	return func(s *MetadataStore) { s.remote = append(s.remote, sink) }
}

// WithView sets the view layer used for recovery and reconciliation.
func WithView(v ViewLayer) Option {
	return func(s *MetadataStore) { s.view = v }
}

// WithRefetcher sets the fetcher used to rebuild corrupt records.
func WithRefetcher(f Refetcher) Option {
	return func(s *MetadataStore) { s.refetcher = f }
}

// WithLogger sets the store's logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *MetadataStore) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MetadataStore) { s.now = now }
}

// WithLockTimeout sets how long UpdateWorkflowFields waits for the lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *MetadataStore) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// NewMetadataStore opens (creating if needed) a store rooted at dir.
func NewMetadataStore(dir string, opts ...Option) (*MetadataStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: metadata directory required", ErrInvalidInput)
	}
	s := &MetadataStore{
		dir:         dir,
		local:       &DirBackup{Dir: filepath.Join(dir, "backups")},
		log:         logrus.StandardLogger(),
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "metadata-store")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "open", Entity: "store", ID: dir, Err: err}
	}
	return s, nil
}

// Dir returns the directory holding primary records.
func (s *MetadataStore) Dir() string { return s.dir }

// BackupDir returns the local backup directory.
func (s *MetadataStore) BackupDir() string { return s.local.Dir }

func (s *MetadataStore) recordPath(videoID string) string {
	return filepath.Join(s.dir, videoID+".json")
}

// checkVideoID accepts only canonical 11-character IDs, which also keeps
// record and lock file names inside the store directory.
func checkVideoID(videoID string) error {
	if id, ok := youtube.ExtractVideoID(videoID); !ok || id != videoID {
		return fmt.Errorf("%w: video ID %q", ErrInvalidInput, videoID)
	}
	return nil
}

func encodeRecord(r *MetadataRecord) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return append(data, '\n'), nil
}

// Read returns the record exactly as stored, without validating it. A
// missing record yields ErrNotFound; undecodable bytes yield ErrIntegrity.
func (s *MetadataStore) Read(ctx context.Context, videoID string) (*MetadataRecord, error) {
	if err := checkVideoID(videoID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.recordPath(videoID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &StorageError{Op: "read", Entity: "record", ID: videoID, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &StorageError{Op: "read", Entity: "record", ID: videoID, Err: err}
	}

	var r MetadataRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, &StorageError{Op: "read", Entity: "record", ID: videoID, Err: fmt.Errorf("%w: %v", ErrIntegrity, err)}
	}
	return &r, nil
}

// Validate reports whether r passes the integrity check.
func (s *MetadataStore) Validate(r *MetadataRecord) bool { return Validate(r) }

// Write creates the record for videoID from meta. If a valid record already
// exists it is returned unchanged; the original metadata is never replaced
// while it validates. A new record is published with an exclusive create,
// then backed up, then rewritten with backupCreated set when the local
// backup succeeded.
func (s *MetadataStore) Write(ctx context.Context, videoID string, meta *youtube.VideoMetadata) (*MetadataRecord, error) {
	if err := checkVideoID(videoID); err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: nil metadata", ErrInvalidInput)
	}
	if meta.VideoID != "" && meta.VideoID != videoID {
		return nil, fmt.Errorf("%w: metadata is for %q, not %q", ErrInvalidInput, meta.VideoID, videoID)
	}

	existing, err := s.Read(ctx, videoID)
	if err == nil && Validate(existing) {
		return existing, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	record, err := s.newRecord(videoID, meta)
	if err != nil {
		return nil, &StorageError{Op: "write", Entity: "record", ID: videoID, Err: err}
	}
	data, err := encodeRecord(record)
	if err != nil {
		return nil, &StorageError{Op: "write", Entity: "record", ID: videoID, Err: err}
	}

	log := s.log.WithField("video_id", videoID)
	path := s.recordPath(videoID)

	err = writeFileAtomic(path, data, true)
	if errors.Is(err, ErrAlreadyExists) {
		current, rerr := s.Read(ctx, videoID)
		if rerr == nil && Validate(current) {
			// Another writer got there first.
			return current, nil
		}
		log.Warn("replacing record that failed integrity check")
		if rerr == nil {
			record.WorkflowMetadata = carryWorkflow(current.WorkflowMetadata)
			if data, err = encodeRecord(record); err != nil {
				return nil, &StorageError{Op: "write", Entity: "record", ID: videoID, Err: err}
			}
		}
		err = writeFileAtomic(path, data, false)
	}
	if err != nil {
		return nil, &StorageError{Op: "write", Entity: "record", ID: videoID, Err: err}
	}

	if s.backup(ctx, videoID, data) {
		if err := s.markBackedUp(ctx, record); err != nil {
			log.WithError(err).Warn("could not record backup status")
		} else {
			record.SystemIntegrity.BackupCreated = true
		}
	}

	log.WithField("checksum", record.OriginalMetadata.Checksum).Info("metadata record created")
	return record, nil
}

func (s *MetadataStore) newRecord(videoID string, meta *youtube.VideoMetadata) (*MetadataRecord, error) {
	now := s.now().UTC()
	orig := &OriginalMetadata{VideoMetadata: *meta.Clone(), FetchedAt: now}
	orig.VideoID = videoID
	sum, err := Checksum(&orig.VideoMetadata)
	if err != nil {
		return nil, err
	}
	orig.Checksum = sum

	return &MetadataRecord{
		VideoID:          videoID,
		FormatVersion:    FormatVersion,
		CreatedAt:        now,
		OriginalMetadata: orig,
		WorkflowMetadata: WorkflowMetadata{
			WorkflowVersion: WorkflowVersion,
			CostTracking:    map[string]float64{},
		},
		SystemIntegrity: SystemIntegrity{
			LastValidated:    now,
			ValidationStatus: ValidationValid,
		},
	}, nil
}

// carryWorkflow keeps the workflow state of a record being rebuilt.
func carryWorkflow(w WorkflowMetadata) WorkflowMetadata {
	if w.WorkflowVersion == "" {
		w.WorkflowVersion = WorkflowVersion
	}
	if w.CostTracking == nil {
		w.CostTracking = map[string]float64{}
	}
	return w
}

// backup saves data to every sink and reports whether the local copy succeeded.
func (s *MetadataStore) backup(ctx context.Context, videoID string, data []byte) bool {
	name := BackupName(videoID, s.now())
	log := s.log.WithField("video_id", videoID)

	ok := true
	if err := s.local.Save(ctx, videoID, name, data); err != nil {
		log.WithError(err).Warn("local backup failed")
		ok = false
	}
	for _, sink := range s.remote {
		if err := sink.Save(ctx, videoID, name, data); err != nil {
			log.WithError(err).WithField("sink", sink.Name()).Warn("remote backup failed")
		}
	}
	return ok
}

// markBackedUp sets backupCreated on the stored record under the record
// lock, provided the stored record is still the one just written.
func (s *MetadataStore) markBackedUp(ctx context.Context, record *MetadataRecord) error {
	return s.withLock(ctx, record.VideoID, func() error {
		current, err := s.Read(ctx, record.VideoID)
		if err != nil {
			return err
		}
		if current.OriginalMetadata == nil || current.OriginalMetadata.Checksum != record.OriginalMetadata.Checksum ||
			!current.CreatedAt.Equal(record.CreatedAt) {
			return errors.New("record replaced before backup status was saved")
		}
		current.SystemIntegrity.BackupCreated = true
		data, err := encodeRecord(current)
		if err != nil {
			return err
		}
		return writeFileAtomic(s.recordPath(record.VideoID), data, false)
	})
}

func (s *MetadataStore) withLock(ctx context.Context, videoID string, fn func() error) error {
	lock := NewFileLock(s.recordPath(videoID))
	if err := lock.Lock(ctx, s.lockTimeout); err != nil {
		return &StorageError{Op: "lock", Entity: "record", ID: videoID, Err: err}
	}
	defer lock.Unlock()
	return fn()
}

// GetReliable returns trustworthy original metadata for videoID: the stored
// record when it validates, otherwise metadata re-fetched from the source
// URL in the view layer and written back. Integrity failures are logged,
// not returned. With no valid record and no usable view row it returns
// ErrNoReliableSource.
func (s *MetadataStore) GetReliable(ctx context.Context, videoID string) (*OriginalMetadata, error) {
	if err := checkVideoID(videoID); err != nil {
		return nil, err
	}
	log := s.log.WithField("video_id", videoID)

	record, err := s.Read(ctx, videoID)
	switch {
	case err == nil && Validate(record):
		return record.OriginalMetadata, nil
	case err == nil, errors.Is(err, ErrIntegrity):
		log.WithError(ErrIntegrity).Warn("stored metadata is corrupt, attempting recovery")
	case errors.Is(err, ErrNotFound):
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		log.WithError(err).Warn("reading stored metadata failed")
	}

	if meta := s.recover(ctx, videoID); meta != nil {
		return meta, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, &StorageError{Op: "get", Entity: "record", ID: videoID, Err: ErrNoReliableSource}
}

// recover rebuilds the record from the view layer's source URL. It returns
// nil when recovery is not possible.
func (s *MetadataStore) recover(ctx context.Context, videoID string) *OriginalMetadata {
	if s.view == nil || s.refetcher == nil {
		return nil
	}
	log := s.log.WithField("video_id", videoID)

	row, err := s.view.Row(ctx, videoID)
	if err != nil {
		log.WithError(err).Warn("view lookup failed")
		return nil
	}
	if row == nil || row.SourceURL == "" {
		return nil
	}

	meta, err := s.refetcher.FetchMetadata(ctx, row.SourceURL)
	if err != nil {
		log.WithError(err).Warn("re-fetch from view source failed")
		return nil
	}
	record, err := s.Write(ctx, videoID, meta)
	if err != nil {
		log.WithError(err).Warn("writing recovered metadata failed")
		return nil
	}
	log.WithField("source_url", row.SourceURL).Info("metadata recovered from view source")
	return record.OriginalMetadata
}

// UpdateWorkflowFields merges upd into the record's workflow metadata under
// the record lock, stamps lastUpdated and persists it. Original metadata is
// never touched.
func (s *MetadataStore) UpdateWorkflowFields(ctx context.Context, videoID string, upd WorkflowUpdate) (*MetadataRecord, error) {
	if err := checkVideoID(videoID); err != nil {
		return nil, err
	}
	// Checked before locking so unknown IDs leave no lock file behind.
	if _, err := os.Stat(s.recordPath(videoID)); errors.Is(err, os.ErrNotExist) {
		return nil, &StorageError{Op: "update", Entity: "record", ID: videoID, Err: ErrNotFound}
	}

	var updated *MetadataRecord
	err := s.withLock(ctx, videoID, func() error {
		record, err := s.Read(ctx, videoID)
		if err != nil {
			return err
		}
		upd.apply(&record.WorkflowMetadata)
		now := s.now().UTC()
		record.WorkflowMetadata.LastUpdated = &now

		data, err := encodeRecord(record)
		if err != nil {
			return err
		}
		if err := writeFileAtomic(s.recordPath(videoID), data, false); err != nil {
			return &StorageError{Op: "update", Entity: "record", ID: videoID, Err: err}
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Reconcile compares the stored record with its view row and reports every
// differing field. It never modifies either side.
func (s *MetadataStore) Reconcile(ctx context.Context, videoID string) (*Reconciliation, error) {
	if s.view == nil {
		return nil, ErrNoView
	}
	record, err := s.Read(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if record.OriginalMetadata == nil {
		return nil, &StorageError{Op: "reconcile", Entity: "record", ID: videoID, Err: ErrIntegrity}
	}
	row, err := s.view.Row(ctx, videoID)
	if err != nil {
		return nil, &StorageError{Op: "reconcile", Entity: "view row", ID: videoID, Err: err}
	}
	if row == nil {
		return nil, &StorageError{Op: "reconcile", Entity: "view row", ID: videoID, Err: ErrNotFound}
	}

	return reconcile(record, row), nil
}

func reconcile(record *MetadataRecord, row *ViewRow) *Reconciliation {
	orig := record.OriginalMetadata
	result := &Reconciliation{VideoID: record.VideoID, Discrepancies: []Discrepancy{}}

	add := func(field, stored, view string) {
		if strings.TrimSpace(stored) != strings.TrimSpace(view) {
			result.Discrepancies = append(result.Discrepancies, Discrepancy{Field: field, Stored: stored, View: view})
		}
	}

	urlID, _ := youtube.ExtractVideoID(row.SourceURL)
	if urlID != record.VideoID {
		result.Discrepancies = append(result.Discrepancies, Discrepancy{
			Field: "sourceUrl", Stored: youtube.WatchURL(record.VideoID), View: row.SourceURL,
		})
	}
	add("title", orig.Title, row.Title)
	add("videoId", record.VideoID, row.VideoID)
	add("channelName", orig.ChannelName, row.ChannelName)
	add("duration", orig.DurationDisplay, row.Duration)

	result.IsValid = len(result.Discrepancies) == 0
	return result
}
