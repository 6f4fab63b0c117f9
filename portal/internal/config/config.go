// Package config handles baextract configuration from YAML files.
//
// Built-in defaults reproduce the live portal: its URLs, the locator table
// for both display languages, the sentinel texts and every bounded wait. A
// file only needs the keys it changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/baextract/portal/record"
)

// Config is the top-level baextract configuration.
type Config struct {
	Browser  BrowserConfig          `yaml:"browser"`
	Portal   PortalConfig           `yaml:"portal"`
	Locators LocatorsConfig         `yaml:"locators"`
	Text     map[string]record.Text `yaml:"text"` // keyed by language code
	Timeouts TimeoutsConfig         `yaml:"timeouts"`
	Crawl    CrawlConfig            `yaml:"crawl"`
	Sinks    []SinkConfig           `yaml:"sinks"`
	Batch    BatchConfig            `yaml:"batch"`
	Diag     DiagConfig             `yaml:"diag"`
	Serve    ServeConfig            `yaml:"serve"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	NoSandbox        bool          `yaml:"no_sandbox"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // http | headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ClickTimeout     time.Duration `yaml:"click_timeout"`
	UserAgent        string        `yaml:"user_agent"`
}

// PortalConfig locates the portal and its two display languages.
type PortalConfig struct {
	// Locale is the primary language code; the other entry of Languages is
	// the secondary one.
	Locale       string            `yaml:"locale"`
	Languages    []string          `yaml:"languages"`
	HomeURLs     map[string]string `yaml:"home_urls"`
	DetailURL    string            `yaml:"detail_url"` // {code} is replaced verbatim
	ListingURL   string            `yaml:"listing_url"`
	MaxApprovals int               `yaml:"max_approvals"`
}

// LocatorsConfig is the locator table. Values are XPath when they start
// with "/" or "(", CSS otherwise; a "css:" or "xpath:" prefix forces the
// kind. "{i}" in accordion locators is replaced by the entry index.
type LocatorsConfig struct {
	Code            string `yaml:"code"`
	Name            string `yaml:"name"`
	LocationBody    string `yaml:"location_body"`
	EligibilityList string `yaml:"eligibility_list"`
	NoApproval      string `yaml:"no_approval"`
	// ApprovalsHeading holds the accordion heading in each language.
	ApprovalsHeading []string `yaml:"approvals_heading"`
	ApprovalHeader   string   `yaml:"approval_header"`
	ApprovalAgency   string   `yaml:"approval_agency"`

	SearchIcon    string `yaml:"search_icon"`
	BusinessTab   string `yaml:"business_tab"`
	SearchInput   string `yaml:"search_input"`
	SearchResults string `yaml:"search_results"`
	SearchFirst   string `yaml:"search_first"`

	LangToggle string `yaml:"lang_toggle"`

	FooterLink       string `yaml:"footer_link"`
	FooterInput      string `yaml:"footer_input"`
	FooterContainer  string `yaml:"footer_container"`
	SearchButton     string `yaml:"search_button"`
	ResultsContainer string `yaml:"results_container"`
	ResultLinks      string `yaml:"result_links"`

	PageSize         string `yaml:"page_size"`
	ListingItems     string `yaml:"listing_items"`
	NextItem         string `yaml:"next_item"`
	NextLink         string `yaml:"next_link"`
	PageIndicator    string `yaml:"page_indicator"`
	TotalCount       string `yaml:"total_count"`
	ListingContainer string `yaml:"listing_container"`
	SearchChip       string `yaml:"search_chip"`
}

// TimeoutsConfig holds every bounded wait.
type TimeoutsConfig struct {
	Direct       time.Duration `yaml:"direct"`
	SearchStep   time.Duration `yaml:"search_step"`
	SearchAnchor time.Duration `yaml:"search_anchor"`
	Footer       time.Duration `yaml:"footer"`
	FooterAnchor time.Duration `yaml:"footer_anchor"`
	Popup        time.Duration `yaml:"popup"`
	Anchor       time.Duration `yaml:"anchor"`
	Eligibility  time.Duration `yaml:"eligibility"`
	LangToggle   time.Duration `yaml:"lang_toggle"`
	LangPoll     time.Duration `yaml:"lang_poll"`
	LangDeadline time.Duration `yaml:"lang_deadline"`
	Settle       time.Duration `yaml:"settle"`
	Indicator    time.Duration `yaml:"indicator"`
	Fingerprint  time.Duration `yaml:"fingerprint"`
	PagePoll     time.Duration `yaml:"page_poll"`
	Results      time.Duration `yaml:"results"`
}

// CrawlConfig controls the listing crawler.
type CrawlConfig struct {
	PageSize     int    `yaml:"page_size"`
	FingerprintN int    `yaml:"fingerprint_n"`
	SearchSeed   string `yaml:"search_seed"`
	Snapshots    bool   `yaml:"snapshots"` // per-page HTML under diag.dir
	MaxPages     int    `yaml:"max_pages"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type          string `yaml:"type"` // stdout | jsonfile | sqlite | sheets
	Path          string `yaml:"path"` // jsonfile, sqlite
	SpreadsheetID string `yaml:"spreadsheet_id"`
	Worksheet     string `yaml:"worksheet"`
	Credentials   string `yaml:"credentials"` // service-account JSON file
	Endpoint      string `yaml:"endpoint"`    // Sheets API base URL
}

// BatchConfig controls batch mode.
type BatchConfig struct {
	Workers    int           `yaml:"workers"`
	DBPath     string        `yaml:"db_path"`
	CodesFile  string        `yaml:"codes_file"` // one code per line; empty reads the sheet
	Visibility time.Duration `yaml:"visibility"`
}

// DiagConfig controls failure artifacts.
type DiagConfig struct {
	Dir         string `yaml:"dir"`
	Screenshots bool   `yaml:"screenshots"`
}

// ServeConfig controls the lookup API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file over the built-in defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the built-in defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "http", "headless", "headful", "visible":
	default:
		return fmt.Errorf("config: unknown browser.stealth %q", c.Browser.Stealth)
	}
	if len(c.Portal.Languages) != 2 || c.Portal.Languages[0] == c.Portal.Languages[1] {
		return fmt.Errorf("config: portal.languages must name two distinct languages, got %v", c.Portal.Languages)
	}
	if !strings.Contains(c.Portal.DetailURL, "{code}") {
		return fmt.Errorf("config: portal.detail_url lacks {code}")
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout", "jsonfile", "sqlite", "sheets":
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}

// SetLocale makes lang the primary language.
func (c *Config) SetLocale(lang string) error {
	for _, l := range c.Portal.Languages {
		if l == lang {
			c.Portal.Locale = lang
			return nil
		}
	}
	return fmt.Errorf("config: unknown locale %q", lang)
}

// Languages returns the primary and secondary language codes.
func (c *Config) Languages() [2]string {
	primary := c.Portal.Locale
	secondary := c.Portal.Languages[1]
	if primary == secondary {
		secondary = c.Portal.Languages[0]
	}
	return [2]string{primary, secondary}
}

// LangCode maps a display language to its document lang value.
func (c *Config) LangCode(l record.Language) string {
	return c.Languages()[l]
}

// HomeURL returns the portal home page for a language code.
func (c *Config) HomeURL(lang string) string {
	return c.Portal.HomeURLs[lang]
}

// DetailURL inserts code verbatim into the detail page template.
func (c *Config) DetailURL(code string) string {
	return strings.ReplaceAll(c.Portal.DetailURL, "{code}", code)
}

// PrimaryText returns the texts of the primary language.
func (c *Config) PrimaryText() record.Text {
	return c.Text[c.Portal.Locale]
}

func (c *Config) applyDefaults() {
	d := Default()
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = d.Browser.MemoryLimit
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = d.Browser.RecycleInterval
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = d.Browser.Stealth
	}
	if c.Portal.Locale == "" && len(c.Portal.Languages) > 0 {
		c.Portal.Locale = c.Portal.Languages[0]
	}
	if c.Portal.MaxApprovals <= 0 {
		c.Portal.MaxApprovals = d.Portal.MaxApprovals
	}
	if c.Crawl.PageSize <= 0 {
		c.Crawl.PageSize = d.Crawl.PageSize
	}
	if c.Crawl.FingerprintN <= 0 {
		c.Crawl.FingerprintN = d.Crawl.FingerprintN
	}
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = 1
	}
	if c.Batch.Visibility <= 0 {
		c.Batch.Visibility = d.Batch.Visibility
	}
	if c.Diag.Dir == "" {
		c.Diag.Dir = d.Diag.Dir
	}
	c.Timeouts.fill(d.Timeouts)

	if c.Text == nil {
		c.Text = make(map[string]record.Text)
	}
	for _, lang := range c.Portal.Languages {
		t := c.Text[lang]
		fillText(&t, record.DefaultText(lang))
		c.Text[lang] = t
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "sheets" && c.Sinks[i].Endpoint == "" {
			c.Sinks[i].Endpoint = "https://sheets.googleapis.com/v4"
		}
	}
}

func (t *TimeoutsConfig) fill(d TimeoutsConfig) {
	for _, f := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&t.Direct, d.Direct}, {&t.SearchStep, d.SearchStep},
		{&t.SearchAnchor, d.SearchAnchor}, {&t.Footer, d.Footer},
		{&t.FooterAnchor, d.FooterAnchor}, {&t.Popup, d.Popup},
		{&t.Anchor, d.Anchor}, {&t.Eligibility, d.Eligibility},
		{&t.LangToggle, d.LangToggle}, {&t.LangPoll, d.LangPoll},
		{&t.LangDeadline, d.LangDeadline}, {&t.Settle, d.Settle},
		{&t.Indicator, d.Indicator}, {&t.Fingerprint, d.Fingerprint},
		{&t.PagePoll, d.PagePoll}, {&t.Results, d.Results},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
}

// fillText replaces empty texts with the language defaults, so a file can
// override a single sentinel.
func fillText(t *record.Text, d record.Text) {
	for _, f := range []struct {
		v   *string
		def string
	}{
		{&t.Sentinels.NoRequirements, d.Sentinels.NoRequirements},
		{&t.Sentinels.NotSpecified, d.Sentinels.NotSpecified},
		{&t.Sentinels.NoApprovals, d.Sentinels.NoApprovals},
		{&t.Sentinels.ApprovalsError, d.Sentinels.ApprovalsError},
		{&t.Sentinels.Unavailable, d.Sentinels.Unavailable},
		{&t.Sentinels.ApprovalTitle, d.Sentinels.ApprovalTitle},
		{&t.Labels.Main, d.Labels.Main},
		{&t.Labels.Sub, d.Labels.Sub},
		{&t.Labels.Fee, d.Labels.Fee},
		{&t.Labels.Approval, d.Labels.Approval},
		{&t.Labels.Agency, d.Labels.Agency},
	} {
		if *f.v == "" {
			*f.v = f.def
		}
	}
}
