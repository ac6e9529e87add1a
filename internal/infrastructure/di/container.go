// Package di wires the application together.
// This implements manual dependency injection for Clean Architecture.
package di

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/afero"

	"github.com/transono/voicememo/internal/app"
	appconfig "github.com/transono/voicememo/internal/app/config"
	"github.com/transono/voicememo/internal/application/port/output"
	"github.com/transono/voicememo/internal/application/usecase/memo"
	syncusecase "github.com/transono/voicememo/internal/application/usecase/sync"
	"github.com/transono/voicememo/internal/audio/capture"
	"github.com/transono/voicememo/internal/domain/model/note"
	"github.com/transono/voicememo/internal/domain/repository"
	"github.com/transono/voicememo/internal/infrastructure/gateway/auth"
	"github.com/transono/voicememo/internal/infrastructure/gateway/platform"
	"github.com/transono/voicememo/internal/infrastructure/gateway/records"
	"github.com/transono/voicememo/internal/infrastructure/gateway/storage"
	"github.com/transono/voicememo/internal/infrastructure/gateway/transcription"
	sqliterepo "github.com/transono/voicememo/internal/infrastructure/persistence/sqlite"
	"github.com/transono/voicememo/internal/infrastructure/transaction"
)

// Container holds every long-lived collaborator of the application
type Container struct {
	config *appconfig.AppConfig
	paths  app.Paths
	fs     afero.Fs

	db          *sql.DB
	noteRepo    repository.NoteRepository
	profileRepo repository.ProfileRepository
	txManager   output.TransactionManager

	tokenStore *auth.TokenStore
	tokens     *auth.Provider
	gateway    output.RecordsGateway
	audioStore output.AudioStorage
	archiver   memo.Archiver
	listener   *transcription.Listener

	captureService *capture.Service
	syncEngine     *syncusecase.Engine
	memoService    *memo.Service
}

// NewContainer builds the full dependency graph from resolved configuration.
// The transcription listener is constructed but not started; callers that
// want live transcript pushes call StartTranscriptionFeed.
func NewContainer(cfg *appconfig.AppConfig, paths app.Paths) (*Container, error) {
	c := &Container{
		config: cfg,
		paths:  paths,
		fs:     afero.NewOsFs(),
	}

	app.SetLogger(app.NewLogger(cfg.LogLevel()))

	if err := paths.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("create home directories: %w", err)
	}

	if err := c.initializeStore(); err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}
	if err := c.initializeGateways(); err != nil {
		c.db.Close()
		return nil, fmt.Errorf("initialize gateways: %w", err)
	}
	c.initializeUseCases()

	return c, nil
}

func (c *Container) initializeStore() error {
	db, err := sqliterepo.Open(c.paths.DB)
	if err != nil {
		return err
	}
	c.db = db

	if err := sqliterepo.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return err
	}

	repo := sqliterepo.NewNoteRepository(db)
	c.noteRepo = repo
	c.profileRepo = sqliterepo.NewProfileRepository(db)

	txManager := transaction.NewSQLiteTransactionManager(db)
	txManager.SetCommitListener(repo)
	c.txManager = txManager
	return nil
}

func (c *Container) initializeGateways() error {
	c.tokenStore = auth.NewTokenStore(c.fs, c.paths.Home)
	c.tokens = auth.NewProvider(c.config.BaseURL(), c.config.RequestTimeout(), c.tokenStore)

	c.gateway = records.NewClient(
		c.config.BaseURL(),
		c.config.RequestTimeout(),
		c.tokens,
		c.fs,
		c.paths.Audio,
		c.paths.PDF,
	)
	c.audioStore = storage.NewLocalAudioStorage(c.fs, c.paths.Audio)

	if bucket := c.config.ArchiveBucket(); bucket != "" {
		archiver, err := storage.NewS3ArchiveGateway(context.Background(), storage.S3Config{
			Bucket: bucket,
		})
		if err != nil {
			return fmt.Errorf("create archive gateway: %w", err)
		}
		c.archiver = archiver
	}
	return nil
}

func (c *Container) initializeUseCases() {
	c.captureService = capture.NewService(
		platform.TerminalPermissionGate{},
		c.fs,
		c.paths.Capture,
		c.config.SampleRate(),
		c.config.BandCount(),
		capture.OpenPortaudioStream,
	)

	c.syncEngine = syncusecase.NewEngine(
		c.noteRepo,
		c.gateway,
		c.audioStore,
		c.txManager,
		platform.NewTerminalNotifier(os.Stderr),
		c.config.PageSize(),
	)

	c.memoService = memo.NewService(
		c.noteRepo,
		c.audioStore,
		c.gateway,
		platform.NewStaticLocationProvider(nil),
		c.syncEngine,
		c.archiver,
		c.fs,
	)

	if url := c.config.TranscriptionURL(); url != "" {
		c.listener = transcription.NewListener(url, c.tokens,
			func(ctx context.Context, msg transcription.Message) {
				serverID := note.ServerID(strconv.FormatInt(msg.ServerID, 10))
				if err := c.memoService.ApplyTranscription(ctx, serverID, msg.Transcription); err != nil {
					app.GetLogger().Warn("apply transcription for record %s: %v", serverID, err)
				}
			})
	}
}

// StartTranscriptionFeed connects the live transcript socket, if one is
// configured
func (c *Container) StartTranscriptionFeed(ctx context.Context) error {
	if c.listener == nil {
		return nil
	}
	return c.listener.Start(ctx)
}

// Close waits for in-flight uploads and releases every held resource
func (c *Container) Close() error {
	c.syncEngine.WaitForUploads()
	if c.listener != nil {
		if err := c.listener.Stop(); err != nil {
			app.GetLogger().Warn("stop transcription feed: %v", err)
		}
	}
	return c.db.Close()
}

func (c *Container) Config() *appconfig.AppConfig              { return c.config }
func (c *Container) Paths() app.Paths                          { return c.paths }
func (c *Container) Fs() afero.Fs                              { return c.fs }
func (c *Container) NoteRepository() repository.NoteRepository { return c.noteRepo }
func (c *Container) ProfileRepository() repository.ProfileRepository {
	return c.profileRepo
}
func (c *Container) AudioStorage() output.AudioStorage { return c.audioStore }
func (c *Container) Auth() *auth.Provider              { return c.tokens }
func (c *Container) CaptureService() *capture.Service  { return c.captureService }
func (c *Container) SyncEngine() *syncusecase.Engine   { return c.syncEngine }
func (c *Container) MemoService() *memo.Service        { return c.memoService }
