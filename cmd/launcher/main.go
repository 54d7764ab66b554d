package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/remakesof/launcher/internal/config"
	"github.com/remakesof/launcher/internal/domain"
	"github.com/remakesof/launcher/internal/domain/event"
	"github.com/remakesof/launcher/internal/transfer"
	"github.com/remakesof/launcher/internal/ui"
	"github.com/remakesof/launcher/internal/util/ratelimiter"
)

const version = "0.3.0"

var (
	configPath string
	a          *app
)

var rootCmd = &cobra.Command{
	Use:           "launcher",
	Short:         "RemakeSoF game launcher",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		a, err = newApp(configPath)
		return err
	},
}

func init() {
	// Runs after every command, including ones whose RunE failed.
	cobra.OnFinalize(func() {
		if a != nil {
			a.close()
		}
	})

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath(), "Path to configuration file")

	loginCmd.Flags().StringP("username", "u", "", "Player name")
	loginCmd.Flags().StringP("password", "p", "", "Password (read from stdin when omitted)")
	loginCmd.Flags().Bool("remember", false, "Keep the session on disk (default: launcher.remember_me)")

	installCmd.Flags().Bool("force", false, "Reinstall even when the installed build is current")
	installCmd.Flags().Bool("plain", false, "Print progress lines instead of the progress bar")

	cleanCmd.Flags().Bool("watch", false, "Keep sweeping on the configured interval until interrupted")

	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)
	rootCmd.AddCommand(loginCmd, logoutCmd, refreshCmd, whoamiCmd, checkCmd, installCmd, statusCmd, cleanCmd, settingsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrCanceled):
		return 130
	case errors.Is(err, domain.ErrNotLoggedIn), errors.Is(err, domain.ErrAuthFailed):
		return 2
	default:
		return 1
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the game server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")

		remember := a.cfg.Launcher.RememberMe
		if cmd.Flags().Changed("remember") {
			remember, _ = cmd.Flags().GetBool("remember")
		}

		in := bufio.NewReader(cmd.InOrStdin())
		var err error
		if username == "" {
			if username, err = prompt(cmd.OutOrStdout(), in, "Username: "); err != nil {
				return err
			}
		}
		if password == "" {
			if password, err = prompt(cmd.OutOrStdout(), in, "Password: "); err != nil {
				return err
			}
		}

		ctx, cancel := signalContext()
		defer cancel()

		session, err := a.auth.Login(ctx, domain.Credentials{Username: username, Password: password}, remember)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", session.Username)
		if session.Message != "" {
			fmt.Fprintln(cmd.OutOrStdout(), session.Message)
		}
		if !remember {
			fmt.Fprintln(cmd.OutOrStdout(), "Session not saved (remember me is off)")
		}
		return nil
	},
}

func prompt(w io.Writer, r *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.auth.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the stored session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		session, err := a.auth.Refresh(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session renewed for %s\n", session.Username)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session, renewing it when it is about to expire",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := a.auth.Status()
		if err != nil {
			return err
		}
		if st.LoggedIn && !st.Expired {
			ctx, cancel := signalContext()
			defer cancel()
			if _, err := a.auth.EnsureFresh(ctx); err != nil {
				a.logger.Warn("failed to renew session", zap.Error(err))
			}
			if st, err = a.auth.Status(); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch {
		case !st.LoggedIn:
			fmt.Fprintln(out, "Not logged in")
		case !st.HasExpiry:
			fmt.Fprintln(out, "Logged in")
		case st.Expired:
			fmt.Fprintf(out, "Session expired %s\n", humanize.Time(st.ExpiresAt))
		default:
			fmt.Fprintf(out, "Logged in, session expires %s (%s)\n",
				humanize.Time(st.ExpiresAt), st.ExpiresAt.Local().Format(time.RFC1123))
		}
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the server for a newer game build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		inst, err := a.newInstaller(nil, a.logger)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		status, err := inst.CheckForUpdate(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Latest:    %s (%s, released %s)\n",
			status.Latest.Version, humanize.Bytes(uint64(status.Latest.FileSize)), status.Latest.ReleaseDate)
		if status.Installed != nil {
			fmt.Fprintf(out, "Installed: %s (%s)\n",
				status.Installed.Version, humanize.Time(status.Installed.InstalledAt))
		} else {
			fmt.Fprintln(out, "Installed: none")
		}
		if status.UpdateAvailable {
			fmt.Fprintln(out, "An update is available. Run `launcher install`.")
		} else {
			fmt.Fprintln(out, "Up to date.")
		}
		return nil
	},
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Download, verify and install the latest game build",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		plain, _ := cmd.Flags().GetBool("plain")
		useTUI := !plain && isatty.IsTerminal(os.Stdout.Fd())

		dispatcher := event.NewInMemoryDispatcher(false)
		metrics := event.NewMetricsHandler()
		dispatcher.Subscribe(metrics)

		log := a.logger
		if useTUI {
			// Keep warnings off the screen while the progress bar owns it.
			log = log.WithOptions(zap.IncreaseLevel(zapcore.ErrorLevel))
		}
		dispatcher.Subscribe(event.NewLoggingHandler(log))
		dispatcher.OnError(func(e event.DomainEvent, err error) {
			log.Warn("event handler failed", zap.String("event", e.EventName()), zap.Error(err))
		})

		inst, err := a.newInstaller(dispatcher, log)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		status, err := inst.CheckForUpdate(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if !status.UpdateAvailable && !force {
			fmt.Fprintf(out, "Version %s is already installed.\n", status.Latest.Version)
			return nil
		}

		title := fmt.Sprintf("Installing RemakeSoF %s", status.Latest.Version)
		var result *domain.Installation
		if useTUI {
			result, err = installWithProgressBar(ctx, cancel, inst.InstallVersion, status.Latest, title)
		} else {
			fmt.Fprintln(out, title)
			result, err = inst.InstallVersion(ctx, status.Latest, plainProgress(out, 2*time.Second))
		}
		if err != nil {
			return err
		}

		m := metrics.GetMetrics()
		fmt.Fprintf(out, "Installed %s to %s (%s", result.Version, result.ArchivePath, humanize.Bytes(uint64(result.Size)))
		if m["attempts_failed"] > 0 || m["restarts"] > 0 {
			fmt.Fprintf(out, ", %d interrupted attempts, %d restarts", m["attempts_failed"], m["restarts"])
		}
		fmt.Fprintln(out, ")")
		return nil
	},
}

type installFunc func(ctx context.Context, v *domain.GameVersion, sink transfer.Sink) (*domain.Installation, error)

func installWithProgressBar(ctx context.Context, cancel context.CancelFunc, install installFunc, v *domain.GameVersion, title string) (*domain.Installation, error) {
	sink := &transfer.LatestSink{}
	p := tea.NewProgram(ui.NewModel(title, sink, cancel))

	type outcome struct {
		inst *domain.Installation
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		inst, err := install(ctx, v, sink)
		done <- outcome{inst, err}
		p.Send(ui.DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress view failed: %w", err)
	}

	res := <-done
	return res.inst, res.err
}

// plainProgress prints one progress line per interval for non-terminal output
func plainProgress(w io.Writer, interval time.Duration) transfer.Sink {
	limiter := ratelimiter.New(interval)
	return transfer.SinkFunc(func(s transfer.Sample) {
		if allowed, _ := limiter.Allow(); allowed {
			fmt.Fprintln(w, ui.FormatSample(s))
		}
	})
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the installation and any unfinished downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.openInstallDir(); err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		installed, err := a.store.GetLatestInstallation()
		if err != nil {
			return err
		}
		if installed == nil {
			fmt.Fprintln(out, "No game installed")
		} else {
			state := "ok"
			if !a.fs.FileExists(installed.ArchivePath) {
				state = "missing"
			}
			fmt.Fprintf(out, "Installed %s at %s (%s, %s) [%s]\n",
				installed.Version, installed.ArchivePath, humanize.Bytes(uint64(installed.Size)),
				humanize.Time(installed.InstalledAt), state)
		}

		jobs, err := a.store.ListActiveJobs()
		if err != nil {
			return err
		}
		for _, job := range jobs {
			line := fmt.Sprintf("Download %s: %s, %s", job.Version, job.Status, humanize.Bytes(uint64(job.BytesDownloaded)))
			if job.Size > 0 {
				line += fmt.Sprintf(" of %s", humanize.Bytes(uint64(job.Size)))
			}
			if job.LastError != "" {
				line += fmt.Sprintf(" (last error: %s)", job.LastError)
			}
			fmt.Fprintln(out, line)
		}

		stats, err := a.store.GetJournalStats()
		if err != nil {
			return err
		}
		if stats.FailedCount > 0 {
			fmt.Fprintf(out, "%d failed downloads in the journal\n", stats.FailedCount)
		}

		if usage, err := a.fs.GetDiskUsage(); err == nil {
			fmt.Fprintf(out, "Disk: %s free of %s\n", humanize.Bytes(usage.Free), humanize.Bytes(usage.Total))
		}
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Release abandoned downloads and remove stale partial files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := a.newMaintenance()
		if err != nil {
			return err
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			ctx, cancel := signalContext()
			defer cancel()
			return svc.Start(ctx)
		}

		res, err := svc.Sweep()
		if res != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Released %d stale downloads, removed %d failed entries and %d partial files\n",
				res.ReleasedJobs, res.RemovedFailed, res.RemovedPartFiles)
		}
		return err
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change launcher settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n", a.cfg.Path())

		for _, key := range config.SettableKeys() {
			fmt.Fprintf(out, "%s = %v\n", key, a.cfg.Get(key))
		}
		fmt.Fprintf(out, "# install directory: %s\n", a.cfg.Launcher.GetInstallPath())
		fmt.Fprintf(out, "# data directory: %s\n", a.cfg.Launcher.GetDataDir())
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a setting and save it",
	Long:  "Change a setting and save it. Settable keys:\n  " + strings.Join(config.SettableKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := a.cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := a.cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", args[0], a.cfg.Get(args[0]))
		return nil
	},
}
