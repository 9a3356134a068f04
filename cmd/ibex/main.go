package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/drsanjula/iOSBackupExplorer/internal/app"
	"github.com/drsanjula/iOSBackupExplorer/internal/config"
	"github.com/drsanjula/iOSBackupExplorer/internal/export"
	"github.com/drsanjula/iOSBackupExplorer/internal/ibex"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	heading = color.New(color.Bold, color.FgCyan)
	warn    = color.New(color.FgYellow)
	failure = color.New(color.FgRed, color.Bold)
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		failure.Fprintln(os.Stderr, describe(err))
		os.Exit(1)
	}
}

// describe turns an error into the message shown to the user. Archive-open
// failures get an actionable explanation.
func describe(err error) string {
	switch {
	case errors.Is(err, ibex.ErrEncrypted):
		return "This backup is encrypted and cannot be read. Turn off \"Encrypt local backup\" in the sync software and back up again.\n" + err.Error()
	case errors.Is(err, ibex.ErrNotABackup):
		return "Not a valid device backup folder: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return "Error: " + err.Error()
	}
}

// loadConfig reads the config file, falling back to defaults when there is none.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.Load(defaults["config_path"], app.DefaultConfig(defaults))
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates an App. The caller must call Close.
// operation identifies the CLI command being run (e.g. "ExportMedia").
func newApp(operation string) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// withSession opens the archive at path and runs fn against it. The
// operation record is finished with fn's outcome.
func withSession(ctx context.Context, operation, path string, fn func(*app.App, *app.Session) error) (err error) {
	a, err := newApp(operation)
	if err != nil {
		return err
	}
	defer func() { a.Close(err) }()

	s, err := a.Open(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(a, s)
}

var rootCmd = &cobra.Command{
	Use:           "ibex",
	Short:         "Explore and export unencrypted device backups",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// backups command
var backupsCmd = &cobra.Command{
	Use:   "backups [DIR]",
	Short: "List the backups in a folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("ListBackups")
		if err != nil {
			return err
		}
		defer func() { a.Close(err) }()

		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		found, err := a.Discover(dir)
		if err != nil {
			return err
		}
		if len(found) == 0 {
			fmt.Println("No backups found.")
			return nil
		}

		for _, s := range found {
			d := s.Device
			lock := ""
			if s.Encrypted {
				lock = warn.Sprint("  [encrypted]")
			}
			heading.Printf("%s%s\n", d.Name, lock)
			fmt.Printf("  %s, iOS %s, backed up %s\n", d.Model, d.OSVersion, when(d.LastBackup))
			fmt.Printf("  %s\n", s.Path)
		}
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info ARCHIVE",
	Short: "Show device information",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), "Info", args[0], func(a *app.App, s *app.Session) error {
			d := s.Device()
			heading.Println(d.Name)
			rows := [][2]string{
				{"Display name", d.DisplayName},
				{"Model", d.Model},
				{"iOS version", d.OSVersion},
				{"Serial", d.Serial},
				{"IMEI", d.IMEI},
				{"Phone number", d.PhoneNumber},
				{"Identifier", d.Identifier},
				{"Last backup", when(d.LastBackup)},
				{"Location", s.Root()},
			}
			for _, r := range rows {
				fmt.Printf("  %-13s %s\n", r[0]+":", r[1])
			}
			return nil
		})
	},
}

// stats command
var statsCmd = &cobra.Command{
	Use:   "stats ARCHIVE",
	Short: "Summarise every data category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd.Context(), "Stats", args[0], func(a *app.App, s *app.Session) error {
			st := s.Stats(cmd.Context())
			heading.Printf("%s (%s files in %d domains)\n",
				st.Device.Label(), humanize.Comma(int64(st.Files)), len(st.Domains))

			fmt.Printf("  %-10s %s photos (%s), %s videos (%s)\n", "Media:",
				humanize.Comma(int64(st.Media.Photos)), humanize.Bytes(uint64(st.Media.PhotoSize)),
				humanize.Comma(int64(st.Media.Videos)), humanize.Bytes(uint64(st.Media.VideoSize)))
			fmt.Printf("  %-10s %s (%d with phone, %d with email)\n", "Contacts:",
				humanize.Comma(int64(st.Contacts.Total)), st.Contacts.WithPhones, st.Contacts.WithEmails)
			fmt.Printf("  %-10s %s messages in %d chats (%d iMessage, %d SMS)\n", "Messages:",
				humanize.Comma(int64(st.Messages.Messages)), st.Messages.Chats, st.Messages.IMessages, st.Messages.SMS)
			fmt.Printf("  %-10s %s notes, %s words\n", "Notes:",
				humanize.Comma(int64(st.Notes.Notes)), humanize.Comma(int64(st.Notes.Words)))
			fmt.Printf("  %-10s %s calls (%d in, %d out, %d missed), %s talking\n", "Calls:",
				humanize.Comma(int64(st.Calls.Total)), st.Calls.Incoming, st.Calls.Outgoing, st.Calls.Missed,
				st.Calls.TotalDuration.String())
			return nil
		})
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list {media|contacts|messages|notes|calls} ARCHIVE",
	Short: "List the entries of one category",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := app.ParseKind(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")

		return withSession(cmd.Context(), "List", args[1], func(a *app.App, s *app.Session) error {
			return list(cmd.Context(), a, s, kind, limit)
		})
	},
}

func list(ctx context.Context, a *app.App, s *app.Session, kind app.Kind, limit int) error {
	loc := a.Location()
	stamp := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.In(loc).Format("2006-01-02 15:04")
	}

	var lines []string
	switch kind {
	case app.KindMedia:
		for _, m := range s.CameraRoll.All(ctx) {
			lines = append(lines, fmt.Sprintf("%-16s  %-5s  %9s  %s",
				stamp(m.ModTime()), m.Kind(), humanize.Bytes(uint64(m.Size())), m.OriginalPath()))
		}
	case app.KindContacts:
		for _, c := range s.Contacts.All(ctx) {
			lines = append(lines, fmt.Sprintf("%-30s  %-18s  %s", c.DisplayName(), c.PrimaryPhone(), c.PrimaryEmail()))
		}
	case app.KindMessages:
		for _, c := range s.Messages.Chats(ctx) {
			lines = append(lines, fmt.Sprintf("%-16s  %-30s  %5d  %s",
				stamp(c.LastActivity), c.DisplayName, len(c.Messages), oneLine(c.Preview(), 60)))
		}
	case app.KindNotes:
		for _, n := range s.Notes.All(ctx) {
			lines = append(lines, fmt.Sprintf("%-16s  %-40s  %6d words", stamp(n.Modified), oneLine(n.Title, 40), n.WordCount()))
		}
	case app.KindCalls:
		for _, c := range s.Calls.All(ctx) {
			lines = append(lines, fmt.Sprintf("%-16s  %-9s  %-20s  %8s", stamp(c.Date), c.TypeName(), c.PhoneNumber(), c.FormattedDuration()))
		}
	}

	if len(lines) == 0 {
		fmt.Println("No data available.")
		return nil
	}
	shown := lines
	if limit > 0 && len(shown) > limit {
		shown = shown[:limit]
	}
	for _, l := range shown {
		fmt.Println(l)
	}
	if len(shown) < len(lines) {
		fmt.Printf("... %s more\n", humanize.Comma(int64(len(lines)-len(shown))))
	}
	return nil
}

func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}

// export command
var exportCmd = &cobra.Command{
	Use:   "export {media|contacts|messages|notes|calls} ARCHIVE DEST",
	Short: "Export one category",
	Long: `Export one category of an archive.

DEST is a folder, except for calls and for contacts with --single, where it
names the file to write. Press Ctrl-C during a media export to stop after the
current file; files already copied are kept.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := app.ParseKind(args[0])
		if err != nil {
			return err
		}
		single, _ := cmd.Flags().GetBool("single")
		photos, _ := cmd.Flags().GetBool("photos")
		videos, _ := cmd.Flags().GetBool("videos")
		if photos && videos {
			return fmt.Errorf("--photos and --videos are mutually exclusive")
		}

		req := app.ExportRequest{Kind: kind, Dest: args[2], Single: single}
		switch {
		case photos:
			req.Media = ibex.MediaImage
		case videos:
			req.Media = ibex.MediaVideo
		}
		if kind == app.KindMedia && isTerminal(os.Stderr) {
			req.Observe = progressPrinter(os.Stderr)
		}

		operation := "Export" + strings.ToUpper(string(kind[:1])) + string(kind[1:])
		return withSession(cmd.Context(), operation, args[1], func(a *app.App, s *app.Session) error {
			report, err := s.Export(cmd.Context(), req)
			if req.Observe != nil {
				fmt.Fprintln(os.Stderr)
			}
			switch {
			case errors.Is(err, ibex.ErrNothingToExport):
				fmt.Println("No data available.")
				return nil
			case errors.Is(err, context.Canceled):
				warn.Printf("Cancelled: %d of %d exported to %s\n", report.Exported, report.Total(), report.Location)
				return err
			case err != nil && report.Exported == 0:
				return err
			}

			fmt.Printf("%d of %d exported to %s\n", report.Exported, report.Total(), report.Location)
			if report.Failed > 0 {
				warn.Printf("%d failed; see the log for details\n", report.Failed)
			}
			return nil
		})
	},
}

func progressPrinter(w io.Writer) func(export.Progress) {
	return func(p export.Progress) {
		fmt.Fprintf(w, "\r\033[K[%d/%d] %s  %s / %s",
			p.Index, p.Total, p.Label,
			humanize.Bytes(uint64(p.BytesCopied)), humanize.Bytes(uint64(p.TotalBytes)))
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func when(t time.Time) string {
	if t.IsZero() {
		return ibex.Unknown
	}
	return t.Local().Format("2006-01-02 15:04") + " (" + humanize.Time(t) + ")"
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := app.DefaultConfig(defaults)
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Backup Dir: %s\n", cfg.BackupDir)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		heading.Printf("Configuration from %s:\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Create the key pair used to encrypt exports",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp("SetupKeys")
		if err != nil {
			return err
		}
		defer func() { a.Close(err) }()

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := a.SetupKeys(pass); err != nil {
			return err
		}
		pub, err := a.PublicKey()
		if err != nil {
			return err
		}
		fmt.Printf("Public key: %s\n", pub)
		fmt.Println("Set [export.encryption] type = \"age\" in the config to encrypt exports.")
		return nil
	},
}

// decrypt command
var decryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt an encrypted export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = app.DecryptedName(args[0])
		}

		a, err := newApp("Decrypt")
		if err != nil {
			return err
		}
		defer func() { a.Close(err) }()

		src, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening encrypted file: %w", err)
		}
		defer src.Close()

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}

		dst, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		if err := a.Decrypt(src, dst, pass); err != nil {
			dst.Close()
			os.Remove(out)
			return err
		}
		if err := dst.Close(); err != nil {
			return fmt.Errorf("closing output file: %w", err)
		}
		fmt.Printf("Decrypted to %s\n", filepath.Clean(out))
		return nil
	},
}

// readPassphrase prompts on stderr. Input is hidden on a terminal and read
// as a plain line otherwise.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if isTerminal(os.Stdin) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(backupsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("limit", "n", 50, "Maximum number of entries to show (0 for all)")
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().Bool("single", false, "Write all contacts into one file")
	exportCmd.Flags().Bool("photos", false, "Export photos only")
	exportCmd.Flags().Bool("videos", false, "Export videos only")
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().StringP("output", "o", "", "Output file (default: FILE without .age)")
}
