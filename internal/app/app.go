package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/archive"
	"github.com/drsanjula/iOSBackupExplorer/internal/config"
	"github.com/drsanjula/iOSBackupExplorer/internal/encryption"
	"github.com/drsanjula/iOSBackupExplorer/internal/export"
	"github.com/drsanjula/iOSBackupExplorer/internal/extract"
	"github.com/drsanjula/iOSBackupExplorer/internal/fs"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"
	"github.com/drsanjula/iOSBackupExplorer/internal/sink"
)

// App is the application layer between the CLI and the archive packages.
// It builds logging, exclusions and export destinations from config, and
// records the command as an Operation. The caller must call Close when done.
type App struct {
	cfg      *config.Config
	logger   ibex.Logger
	logFile  *os.File
	clock    ibex.Clock
	op       *Operation
	loc      *time.Location
	excludes []string
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	clock   ibex.Clock
	ids     ibex.IDGenerator
	console io.Writer
}

// WithClock sets the clock used for operation timing.
func WithClock(c ibex.Clock) Option {
	return func(o *appOptions) { o.clock = c }
}

// WithIDGenerator sets how operation IDs are generated.
func WithIDGenerator(g ibex.IDGenerator) Option {
	return func(o *appOptions) { o.ids = g }
}

// WithConsole sets where warnings are echoed. Defaults to stderr.
func WithConsole(w io.Writer) Option {
	return func(o *appOptions) { o.console = w }
}

// New creates a fully wired App from the given config.
// operation identifies the CLI command being run (e.g. "ExportMedia").
func New(cfg *config.Config, operation string, opts ...Option) (*App, error) {
	o := appOptions{clock: ibex.RealClock{}, ids: ibex.UUIDGenerator{}, console: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	excludes, err := mediaExclusions(cfg.Media)
	if err != nil {
		return nil, err
	}

	op := NewOperation(o.ids.New(), operation, "", o.clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, level, o.console)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   &slogAdapter{l: logger},
		logFile:  logFile,
		clock:    o.clock,
		op:       op,
		loc:      loc,
		excludes: excludes,
	}
	a.logger.Debug("operation started", "operation", operation)
	return a, nil
}

func mediaExclusions(cfg config.MediaConfig) ([]string, error) {
	patterns := append([]string(nil), cfg.Exclude...)
	if cfg.ExcludeFile == "" {
		return patterns, nil
	}
	fromFile, err := fs.ParseIgnoreFile(cfg.ExcludeFile)
	if err != nil {
		return nil, fmt.Errorf("reading media exclude file: %w", err)
	}
	return append(patterns, fromFile...), nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Operation returns the record of the running command.
func (a *App) Operation() *Operation { return a.op }

// Location is the time zone timestamps are shown in.
func (a *App) Location() *time.Location { return a.loc }

// Logger returns the operation's logger.
func (a *App) Logger() ibex.Logger { return a.logger }

// Discover lists the archives in dir, or in the configured backup
// directory when dir is empty.
func (a *App) Discover(dir string) ([]archive.Summary, error) {
	if dir == "" {
		dir = a.cfg.BackupDir
	}
	if dir == "" {
		d, err := archive.DefaultBackupDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	a.op.Parameters = dir
	found, err := archive.Discover(dir)
	if err != nil {
		return nil, err
	}
	a.logger.Info("backup directory scanned", "dir", dir, "archives", len(found))
	return found, nil
}

// Open opens the archive at path and builds its extractors.
func (a *App) Open(ctx context.Context, path string) (*Session, error) {
	a.op.Parameters = path
	arc, err := archive.Open(ctx, path, archive.WithLogger(a.logger))
	if err != nil {
		a.logger.Error("opening archive failed", "path", path, "error", err)
		return nil, err
	}

	opts := []extract.Option{
		extract.WithLogger(a.logger),
		extract.WithExclusions(a.excludes),
	}
	return &Session{
		app:        a,
		archive:    arc,
		Calls:      extract.NewCallHistory(arc, opts...),
		Notes:      extract.NewNotes(arc, opts...),
		Messages:   extract.NewMessages(arc, opts...),
		Contacts:   extract.NewContacts(arc, opts...),
		CameraRoll: extract.NewCameraRoll(arc, opts...),
	}, nil
}

// SetupKeys generates the age key pair exports are sealed with.
func (a *App) SetupKeys(passphrase string) error {
	enc := encryption.NewAgeEncryptor(a.cfg.Export.Encryption)
	if err := enc.Setup(passphrase); err != nil {
		return err
	}
	a.logger.Info("export keys created", "public_key", a.cfg.Export.Encryption.PublicKeyPath)
	return nil
}

// PublicKey returns the recipient exports are sealed to.
func (a *App) PublicKey() (string, error) {
	return encryption.NewAgeEncryptor(a.cfg.Export.Encryption).PublicKey()
}

// Decrypt unlocks the private key with passphrase and decrypts an exported
// file from r into w.
func (a *App) Decrypt(r io.Reader, w io.Writer, passphrase string) error {
	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Export.Encryption)
	if err != nil {
		return err
	}
	if enc == nil {
		enc = encryption.NewAgeEncryptor(a.cfg.Export.Encryption)
	}
	dc, err := enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	return dc.Decrypt(r, w)
}

// DecryptedName strips the encryption suffix from an exported file name.
func DecryptedName(name string) string {
	if trimmed := strings.TrimSuffix(name, encryption.Suffix); trimmed != name {
		return trimmed
	}
	return name + ".dec"
}

// Close finishes the operation with the command's outcome and closes the
// log file. It is safe to call more than once.
func (a *App) Close(result error) error {
	if !a.op.Done() {
		a.op.Finish(result, a.clock.Now())
		a.logger.Info("operation finished",
			"operation", a.op.Operation,
			"status", a.op.Status,
			"duration", a.op.Duration().String())
	}
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	if err != nil {
		return fmt.Errorf("closing log file: %w", err)
	}
	return nil
}

// Session is one open archive with its extractors.
type Session struct {
	app     *App
	archive *archive.Archive

	Calls      *extract.CallHistory
	Notes      *extract.Notes
	Messages   *extract.Messages
	Contacts   *extract.Contacts
	CameraRoll *extract.CameraRoll
}

func (s *Session) Device() ibex.Device { return s.archive.Device() }
func (s *Session) Root() string        { return s.archive.Root() }

// Stats summarises every category of the archive.
type Stats struct {
	Device   ibex.Device
	Files    int
	Domains  map[string]int
	Media    extract.MediaStats
	Contacts extract.ContactStats
	Messages extract.MessageStats
	Notes    extract.NoteStats
	Calls    extract.CallStats
}

// Stats collects the summary of every category. Unreadable categories
// report zero counts.
func (s *Session) Stats(ctx context.Context) Stats {
	return Stats{
		Device:   s.Device(),
		Files:    s.archive.TotalFileCount(ctx),
		Domains:  s.archive.DomainCounts(ctx),
		Media:    s.CameraRoll.Stats(ctx),
		Contacts: s.Contacts.Stats(ctx),
		Messages: s.Messages.Stats(ctx),
		Notes:    s.Notes.Stats(ctx),
		Calls:    s.Calls.Stats(ctx),
	}
}

// Close releases the archive.
func (s *Session) Close() error {
	return s.archive.Close()
}

// Kind names an exportable category.
type Kind string

const (
	KindMedia    Kind = "media"
	KindContacts Kind = "contacts"
	KindMessages Kind = "messages"
	KindNotes    Kind = "notes"
	KindCalls    Kind = "calls"
)

// Kinds lists every category in display order.
var Kinds = []Kind{KindMedia, KindContacts, KindMessages, KindNotes, KindCalls}

// ParseKind validates a category name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown category %q (want one of media, contacts, messages, notes, calls)", s)
}

// ExportRequest describes one export.
type ExportRequest struct {
	Kind Kind
	// Dest is a folder for per-item exports and a file for single-file
	// exports (calls, and contacts with Single).
	Dest   string
	Single bool
	// Media limits a media export to images or videos. MediaOther means all.
	Media   ibex.MediaKind
	Observe func(export.Progress)
}

// SingleFile reports whether the request writes one file.
func (r ExportRequest) SingleFile() bool {
	return r.Kind == KindCalls || (r.Kind == KindContacts && r.Single)
}

// ExportReport is the outcome of an export.
type ExportReport struct {
	export.Result
	Location string
}

// Export writes one category to the configured destination.
func (s *Session) Export(ctx context.Context, req ExportRequest) (ExportReport, error) {
	a := s.app
	dest, name := req.Dest, ""
	if req.SingleFile() {
		dest, name = filepath.Dir(req.Dest), filepath.Base(req.Dest)
	}

	out, err := sink.FromExportConfig(ctx, a.cfg.Export, dest)
	if err != nil {
		return ExportReport{}, fmt.Errorf("creating export destination: %w", err)
	}
	report := ExportReport{Location: out.Location()}
	opts := []export.Option{export.WithLogger(a.logger), export.WithLocation(a.loc)}

	switch req.Kind {
	case KindMedia:
		var files []*ibex.MediaFile
		switch req.Media {
		case ibex.MediaImage:
			files = s.CameraRoll.Photos(ctx)
		case ibex.MediaVideo:
			files = s.CameraRoll.Videos(ctx)
		default:
			files = s.CameraRoll.All(ctx)
		}
		report.Result, err = export.NewMediaExport(files, out, opts...).Run(ctx, req.Observe)
	case KindContacts:
		if req.Single {
			report.Result, err = export.ContactsSingle(ctx, s.Contacts.All(ctx), out, name, opts...)
		} else {
			report.Result, err = export.Contacts(ctx, s.Contacts.All(ctx), out, opts...)
		}
	case KindMessages:
		report.Result, err = export.Messages(ctx, s.Messages.Chats(ctx), out, opts...)
	case KindNotes:
		report.Result, err = export.Notes(ctx, s.Notes.All(ctx), out, opts...)
	case KindCalls:
		report.Result, err = export.Calls(ctx, s.Calls.All(ctx), out, name, opts...)
	default:
		return report, fmt.Errorf("unknown category %q", req.Kind)
	}

	switch {
	case errors.Is(err, ibex.ErrNothingToExport):
		a.logger.Info("nothing to export", "category", string(req.Kind))
	case err != nil:
		a.logger.Warn("export incomplete", "category", string(req.Kind),
			"exported", report.Exported, "failed", report.Failed, "error", err)
	default:
		a.logger.Info("export finished", "category", string(req.Kind),
			"exported", report.Exported, "failed", report.Failed, "location", report.Location)
	}
	return report, err
}
