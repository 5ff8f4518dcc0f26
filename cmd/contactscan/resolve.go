package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nao1215/contactscan/internal/config"
	"github.com/nao1215/contactscan/internal/engine"
	"github.com/nao1215/contactscan/internal/governor"
	"github.com/nao1215/contactscan/internal/model"
	"github.com/nao1215/contactscan/internal/report"
)

// errNoProfiles is returned when neither flags nor --file describe a profile.
var errNoProfiles = errors.New("no profile given (use --name, --bio, --website, --instagram or --file)")

// NewResolveCmd creates the resolve command.
func NewResolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Find the contact details of one or more profiles",
		Long: `Resolve finds the website, Instagram profile, email addresses and
tracking link of a creator profile.

Emails and links in the bio are used first. When the bio has no email and
the profile declares a website, the website is crawled (same origin only)
until an email address is found or the page budget runs out.

Examples:
  # Resolve a single profile
  contactscan resolve --name "Jane Doe" --website jane.example --instagram @jane

  # Resolve profiles from a YAML or JSON file
  contactscan resolve --file profiles.yaml --batch 10

  # Read profiles from stdin and write a Markdown report
  cat profiles.json | contactscan resolve --file - -f markdown -o report.md

Profile file example:
  - displayName: Jane Doe
    bio: "Bookings: jane@example.com"
    website: jane.example
    socialProfiles:
      - service: instagram
        url: https://instagram.com/jane`,
		Args: cobra.NoArgs,
		RunE: runResolveCmd,
	}

	cmd.Flags().StringP("name", "n", "", "Display name of the profile")
	cmd.Flags().String("bio", "", "Bio text of the profile")
	cmd.Flags().StringP("website", "w", "", "Website declared by the profile")
	cmd.Flags().StringP("instagram", "i", "", "Instagram handle or URL declared by the profile")
	cmd.Flags().StringArray("social", nil,
		"Other declared profile as service=url (repeatable)")
	cmd.Flags().StringP("file", "F", "",
		"YAML or JSON file with a list of profiles (\"-\" reads stdin)")

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of profiles resolved concurrently")
	cmd.Flags().String("session", "",
		"Session whose daily crawl budget is used (default: the OS user)")
	cmd.Flags().Bool("no-history", false,
		"Do not record lookups in the history database")

	addConfigFlag(cmd)
	addCrawlFlags(cmd)

	cmd.Flags().StringP("format", "f", config.DefaultFormat,
		"Report format: simple, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("tee", false,
		"Also print the report to stdout when --output is set")

	return cmd
}

// runResolveCmd executes the resolve command.
func runResolveCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	profiles, err := profilesFromFlags(cmd)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Verbose, false)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer s.Close()

	tee, err := cmd.Flags().GetBool("tee")
	if err != nil {
		return err
	}

	return runResolve(ctx, cmd, cfg, s, profiles, tee)
}

// runResolve resolves profiles and writes the report.
func runResolve(ctx context.Context, cmd *cobra.Command, cfg *config.Config, s *stack, profiles []model.Profile, tee bool) error {
	caller := governor.Caller{
		Key:   cfg.SessionID,
		Quota: s.sessionQuota(cfg.SessionID),
	}

	startTime := time.Now()
	results, err := resolveWithProgress(ctx, s.engine, profiles, caller, cfg.BatchSize, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("resolution interrupted: %w", err)
	}
	slog.Info("resolution complete",
		"profiles", len(profiles),
		"elapsed", time.Since(startTime).Round(time.Millisecond),
	)

	entries := report.FromBatch(results, time.Now())
	if err := writeReport(cmd, cfg, entries, tee); err != nil {
		return err
	}

	if limited := report.Summarize(entries).RateLimited; limited > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Warning: %d of %d website crawls were rate limited; their results only use the profile.\n",
			limited, len(entries))
	}
	return nil
}

// resolveWithProgress runs the batch while a spinner on w shows how many
// profiles are done. The spinner stays silent when w is not a terminal.
func resolveWithProgress(
	ctx context.Context,
	e *engine.Engine,
	profiles []model.Profile,
	caller governor.Caller,
	concurrency int,
	w io.Writer,
) ([]engine.BatchResult, error) {
	writerOpt := spinner.WithWriter(w)
	if f, ok := w.(*os.File); ok {
		writerOpt = spinner.WithWriterFile(f)
	}
	sp := spinner.New(spinner.CharSets[9], 100*time.Millisecond, writerOpt)
	sp.Suffix = fmt.Sprintf(" resolving %d profile(s)", len(profiles))
	sp.Start()
	defer sp.Stop()

	var (
		mu      sync.Mutex
		done    int
		results = make([]engine.BatchResult, len(profiles))
	)
	err := e.ResolveBatch(ctx, profiles, caller, concurrency, func(r engine.BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		results[r.Index] = r
		done++
		sp.Lock()
		sp.Suffix = fmt.Sprintf(" [%d/%d] %s", done, len(profiles), displayName(r.Profile))
		sp.Unlock()
	})
	return results, err
}

func displayName(p model.Profile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.DeclaredWebsite != "" {
		return p.DeclaredWebsite
	}
	return "(unnamed)"
}

// profilesFromFlags builds the profile list from --file, or a single
// profile from the other profile flags.
func profilesFromFlags(cmd *cobra.Command) ([]model.Profile, error) {
	flags := cmd.Flags()

	path, err := flags.GetString("file")
	if err != nil {
		return nil, err
	}
	if path != "" {
		var profiles []model.Profile
		if path == "-" {
			profiles, err = readProfiles(cmd.InOrStdin())
		} else {
			profiles, err = loadProfiles(path)
		}
		if err != nil {
			return nil, err
		}
		if len(profiles) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", errNoProfiles, path)
		}
		return profiles, nil
	}

	var p model.Profile
	if p.DisplayName, err = flags.GetString("name"); err != nil {
		return nil, err
	}
	if p.BioText, err = flags.GetString("bio"); err != nil {
		return nil, err
	}
	if p.DeclaredWebsite, err = flags.GetString("website"); err != nil {
		return nil, err
	}

	instagram, err := flags.GetString("instagram")
	if err != nil {
		return nil, err
	}
	if sp, ok := model.InstagramProfile(instagram); ok {
		p.SocialProfiles = append(p.SocialProfiles, sp)
	}

	socials, err := flags.GetStringArray("social")
	if err != nil {
		return nil, err
	}
	for _, s := range socials {
		sp, err := parseSocial(s)
		if err != nil {
			return nil, err
		}
		p.SocialProfiles = append(p.SocialProfiles, sp)
	}

	if p.IsBlank() {
		return nil, errNoProfiles
	}
	return []model.Profile{p}, nil
}

// parseSocial parses "service=url".
func parseSocial(s string) (model.SocialProfile, error) {
	service, u, ok := strings.Cut(s, "=")
	service = strings.TrimSpace(service)
	u = strings.TrimSpace(u)
	if !ok || service == "" || u == "" {
		return model.SocialProfile{}, fmt.Errorf("invalid --social value %q (want service=url)", s)
	}
	return model.SocialProfile{Service: service, URL: u}, nil
}

// loadProfiles reads a profile list from a YAML or JSON file.
func loadProfiles(path string) ([]model.Profile, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided profile path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to open profile file: %w", err)
	}
	defer f.Close()

	return readProfiles(f)
}

// readProfiles decodes either a bare list of profiles or a mapping with a
// "profiles" list. JSON input is accepted because JSON is valid YAML.
func readProfiles(r io.Reader) ([]model.Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles: %w", err)
	}

	var list []model.Profile
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Profiles []model.Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return wrapped.Profiles, nil
}
