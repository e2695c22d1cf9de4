package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dropper-mc/dropper/pkg/config"
	"github.com/dropper-mc/dropper/pkg/manifest"
)

func testJar(t *testing.T, name, version string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("plugin.yml")
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprintf(w, "name: %s\nversion: %s\n", name, version)
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestBuildSources(t *testing.T) {
	sources, err := buildSources([]config.SourceConfig{
		{ID: "bukkit", Kind: "bukkit", URL: "https://dev.bukkit.org/projects/", Priority: 1},
		{ID: "spiget", Kind: "spiget", URL: "https://api.spiget.org/v2/resources", Priority: 2},
	})
	if err != nil {
		t.Fatalf("buildSources() error: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("len(sources) = %d, want 2", len(sources))
	}
	if got := sources[0].CatalogURL("WorldEdit"); got != "https://dev.bukkit.org/projects/worldedit/files" {
		t.Errorf("bukkit catalog URL = %s", got)
	}
	if got := sources[1].CatalogURL("WorldEdit"); got != "https://api.spiget.org/v2/resources/WorldEdit/versions" {
		t.Errorf("spiget catalog URL = %s", got)
	}
}

func TestBuildSourcesEscapesNames(t *testing.T) {
	// Plugin names may contain spaces; they must not reach the wire raw.
	sources, err := buildSources([]config.SourceConfig{
		{ID: "bukkit", Kind: "bukkit", URL: "https://dev.bukkit.org/projects", Priority: 1},
		{ID: "spiget", Kind: "spiget", URL: "https://api.spiget.org/v2/resources", Priority: 2},
	})
	if err != nil {
		t.Fatalf("buildSources() error: %v", err)
	}
	if got := sources[0].CatalogURL("Holographic Displays"); got != "https://dev.bukkit.org/projects/holographic%20displays/files" {
		t.Errorf("bukkit catalog URL = %s", got)
	}
	if got := sources[1].CatalogURL("Holographic Displays"); got != "https://api.spiget.org/v2/resources/Holographic%20Displays/versions" {
		t.Errorf("spiget catalog URL = %s", got)
	}
}

func TestBuildSourcesUnknownKind(t *testing.T) {
	if _, err := buildSources([]config.SourceConfig{{ID: "x", Kind: "ftp", URL: "ftp://x"}}); err == nil {
		t.Error("buildSources() accepted an unknown kind")
	}
}

// End-to-end through the real pipeline: manifest, spiget source over
// httptest, resolution, plan, install, state.
func TestSyncEndToEnd(t *testing.T) {
	jar := testJar(t, "WorldEdit", "7.0.2")

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/resources/WorldEdit/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"versions": [{"version": "7.0.2", "downloadUrl": %q}]}`, srv.URL+"/dl/WorldEdit.jar")
	})
	mux.HandleFunc("/dl/WorldEdit.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jar)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	root := t.TempDir()
	cfgContent := fmt.Sprintf(`
cache_dir = "cache"

[[sources]]
id = "spiget"
kind = "spiget"
url = %q
priority = 1
`, srv.URL+"/v2/resources")
	if err := os.WriteFile(filepath.Join(root, config.DefaultFileName), []byte(cfgContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "pkg.yml"), []byte("plugins:\n  - name: WorldEdit\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := withLogger(context.Background(), newLogger(io.Discard, log.FatalLevel))
	a, err := newApp(ctx, root)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	if _, err := a.sync(ctx, false); err != nil {
		t.Fatalf("sync() error: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(root, "plugins", "WorldEdit.jar"))
	if err != nil {
		t.Fatalf("artifact not installed: %v", err)
	}
	if !bytes.Equal(written, jar) {
		t.Error("installed artifact differs from upstream jar")
	}

	st, err := a.store.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if rec := st.Plugins["WorldEdit"]; rec.Version.String() != "7.0.2" {
		t.Errorf("state record = %+v, want version 7.0.2", rec)
	}

	// Second run is a no-op against the same state.
	b, err := newApp(ctx, root)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	if _, err := b.sync(ctx, false); err != nil {
		t.Fatalf("second sync() error: %v", err)
	}
	info1, _ := os.Stat(filepath.Join(root, "plugins", "WorldEdit.jar"))
	if info1 == nil {
		t.Fatal("artifact missing after second sync")
	}
}

func TestSyncDryRunTouchesNothing(t *testing.T) {
	jar := testJar(t, "Vault", "1.7.3")

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/resources/Vault/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"versions": [{"version": "1.7.3", "downloadUrl": %q}]}`, srv.URL+"/dl/Vault.jar")
	})
	mux.HandleFunc("/dl/Vault.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jar)
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	root := t.TempDir()
	cfgContent := fmt.Sprintf("cache_dir = \"cache\"\n\n[[sources]]\nid = \"spiget\"\nkind = \"spiget\"\nurl = %q\npriority = 1\n", srv.URL+"/v2/resources")
	if err := os.WriteFile(filepath.Join(root, config.DefaultFileName), []byte(cfgContent), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "pkg.yml"), []byte("plugins:\n  - name: Vault\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := withLogger(context.Background(), newLogger(io.Discard, log.FatalLevel))
	a, err := newApp(ctx, root)
	if err != nil {
		t.Fatalf("newApp() error: %v", err)
	}
	if _, err := a.sync(ctx, true); err != nil {
		t.Fatalf("sync(dry-run) error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "plugins", "Vault.jar")); !os.IsNotExist(err) {
		t.Error("dry run must not install anything")
	}
	st, _ := a.store.Load()
	if len(st.Plugins) != 0 {
		t.Errorf("dry run mutated state: %+v", st.Plugins)
	}
}

// A partially failed add must still record the plugins that did install,
// or the next update would sweep them off the disk.
func TestAddRecordsCommittedPluginsOnPartialFailure(t *testing.T) {
	jar := testJar(t, "Vault", "1.7.3")

	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/resources/Vault/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"versions": [{"version": "1.7.3", "downloadUrl": %q}]}`, srv.URL+"/dl/Vault.jar")
	})
	mux.HandleFunc("/dl/Vault.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(jar)
	})
	// Broken resolves but its artifact 404s, so its install action fails.
	mux.HandleFunc("/v2/resources/Broken/versions", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"versions": [{"version": "2.0.0", "downloadUrl": %q}]}`, srv.URL+"/dl/Broken.jar")
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	root := t.TempDir()
	cfgContent := fmt.Sprintf("cache_dir = \"cache\"\n\n[[sources]]\nid = \"spiget\"\nkind = \"spiget\"\nurl = %q\npriority = 1\n", srv.URL+"/v2/resources")
	if err := os.WriteFile(filepath.Join(root, config.DefaultFileName), []byte(cfgContent), 0644); err != nil {
		t.Fatal(err)
	}

	ctx := withLogger(context.Background(), newLogger(io.Discard, log.FatalLevel))
	cmd := newAddCmd(&root)
	cmd.SetContext(ctx)
	err := cmd.RunE(cmd, []string{"Vault", "Broken"})
	if err == nil {
		t.Fatal("add with a failing download must return an error")
	}

	m, loadErr := manifest.Load(filepath.Join(root, "pkg.yml"))
	if loadErr != nil {
		t.Fatalf("manifest.Load() error: %v", loadErr)
	}
	if _, ok := m.Find("Vault"); !ok {
		t.Error("committed plugin Vault missing from pkg.yml")
	}
	if _, err := os.Stat(filepath.Join(root, "plugins", "Vault.jar")); err != nil {
		t.Errorf("Vault.jar not installed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "plugins", "Broken.jar")); !os.IsNotExist(err) {
		t.Error("failed install must not leave an artifact")
	}
}
