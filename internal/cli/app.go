package cli

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dropper-mc/dropper/pkg/config"
	"github.com/dropper-mc/dropper/pkg/httputil"
	"github.com/dropper-mc/dropper/pkg/index"
	"github.com/dropper-mc/dropper/pkg/install"
	"github.com/dropper-mc/dropper/pkg/manifest"
	"github.com/dropper-mc/dropper/pkg/plan"
	"github.com/dropper-mc/dropper/pkg/resolve"
	"github.com/dropper-mc/dropper/pkg/source"
)

const userAgent = "dropper (+https://github.com/dropper-mc/dropper)"

// app wires the configuration into the full pipeline: manifest, source
// registry, resolver, and installer. One app serves one command
// invocation against one server root.
type app struct {
	cfg       *config.Config
	manifest  *manifest.Manifest
	registry  *source.Registry
	resolver  *resolve.Resolver
	store     *install.StateStore
	installer *install.Installer
	logger    *log.Logger
}

// newApp builds the pipeline for the server root.
func newApp(ctx context.Context, root string) (*app, error) {
	logger := loggerFromContext(ctx)

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(cfg.ManifestPath())
	if err != nil {
		return nil, err
	}
	cache, err := httputil.NewCache(cfg.CachePath(), cfg.TTL())
	if err != nil {
		return nil, fmt.Errorf("open metadata cache: %w", err)
	}

	fetcher := httputil.NewHTTPFetcher(userAgent)
	sources, err := buildSources(cfg.Sources)
	if err != nil {
		return nil, err
	}
	registry := source.NewRegistry(sources, fetcher, cache, logger)

	store, err := install.NewStateStore(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		manifest:  m,
		registry:  registry,
		resolver:  resolve.New(index.New(registry)),
		store:     store,
		installer: install.New(fetcher, store, cfg.PluginPath(), cfg.Concurrency, logger),
		logger:    logger,
	}, nil
}

// buildSources maps config entries onto extractors. The kind is already
// validated by config.Load; the switch stays exhaustive anyway so a new
// kind cannot slip through silently.
func buildSources(configs []config.SourceConfig) ([]*source.Source, error) {
	sources := make([]*source.Source, 0, len(configs))
	for _, sc := range configs {
		base := strings.TrimRight(sc.URL, "/")
		s := &source.Source{ID: sc.ID, Priority: sc.Priority}
		switch sc.Kind {
		case "bukkit":
			s.Extractor = source.NewBukkitExtractor(sc.ID, base)
			s.CatalogURL = func(name string) string {
				return base + "/" + url.PathEscape(strings.ToLower(name)) + "/files"
			}
		case "spiget":
			s.Extractor = source.NewSpigetExtractor(sc.ID)
			s.CatalogURL = func(name string) string {
				return base + "/" + url.PathEscape(name) + "/versions"
			}
		default:
			return nil, fmt.Errorf("unknown source kind %q", sc.Kind)
		}
		sources = append(sources, s)
	}
	return sources, nil
}

// sync resolves the manifest, plans against the installed state, and
// applies the plan. With dryRun the plan is printed and nothing touches
// disk. The returned error is non-nil when resolution fails, the run is
// canceled, or any action fails, so the process exits non-zero. The
// summary is non-nil whenever the plan was applied (even partially) or
// there was nothing to do; callers use it to decide whether committed
// work should be recorded despite the error.
func (a *app) sync(ctx context.Context, dryRun bool) (*install.Summary, error) {
	prog := newProgress(a.logger)
	sel, err := a.resolver.Resolve(ctx, a.manifest.Requirements())
	if err != nil {
		return nil, err
	}
	prog.done(fmt.Sprintf("Resolved %d %s", len(sel.Packages), pluralize("plugin", len(sel.Packages))))

	for _, c := range a.registry.Conflicts() {
		printWarning("%s %s: conflicting metadata, using %s over %s", c.Name, c.Version, c.Winner, c.Loser)
	}
	for _, name := range sortedNames(sel.Packages) {
		chosen := sel.Packages[name]
		if chosen.Listing.Confidence != source.Exact {
			printWarning("%s %s: version is %s, not source-declared",
				name, chosen.Listing.Version, chosen.Listing.Confidence)
		}
	}

	st, err := a.store.Load()
	if err != nil {
		return nil, err
	}
	p := plan.Build(sel, st.InstalledVersions())
	if p.IsNoop() {
		printInfo("Everything up to date")
		return &install.Summary{}, nil
	}
	printPlan(p)
	if dryRun {
		return nil, nil
	}

	summary, err := a.installer.Apply(ctx, p)
	if summary != nil {
		printSummary(summary)
	}
	if err != nil {
		return summary, err
	}
	if n := len(summary.Failures()); n > 0 {
		return summary, fmt.Errorf("%d %s failed", n, pluralize("action", n))
	}
	return summary, nil
}
