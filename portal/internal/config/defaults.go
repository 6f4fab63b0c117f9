package config

import (
	"time"

	"github.com/hazyhaar/baextract/portal/record"
)

const (
	portalRoot = "https://investor.sw.gov.qa/wps/portal/investors"

	homeEN = portalRoot + "/home/!ut/p/z1/04_Sj9CPykssy0xPLMnMz0vMAfIjo8zivfxNXA393Q38LXy9DQzMAj0cg4NcLY0MDMz1w_Wj9KNQlISGGRkEOjuZBjm6Wxj7OxpCFRjgAI4G-sGJRfoF2dlpjo6KigD6q7KF/dz/d5/L0lHSkovd0RNQUZrQUVnQSEhLzROVkUvZW4!/"
	homeAR = portalRoot + "/home/!ut/p/z1/04_Sj9CPykssy0xPLMnMz0vMAfIjo8zivfxNXA393Q38LXy9DQzMAj0cg4NcLY0MDMz1w_Wj9KNQlISGGRkEOjuZBjm6Wxj7OxpCFRjgAI4G-sGpefoF2dlpjo6KigAeufkI/dz/d5/L0lHSkovd0RNQUZrQUVnQSEhLzROVkUvYXI!/"
	listing = portalRoot + "/home/!ut/p/z1/04_Sj9CPykssy0xPLMnMz0vMAfIjo8zivfxNXA393Q38LXy9DQzMAj0cg4NcLY0MDMz1w_Wj9KNQlISGGRkEOjuZBjm6Wxj7OxpCFRjgAI4G-sGpefoF2dlpjo6KigAeufkI/dz/d5/L2dBISEvZ0FBIS9nQSEh/"

	// Detail page body and the search results section.
	detail  = "/html/body/div[4]/div/div/section/div[2]/main/section[3]/div/div/div/div"
	section = "/html/body/div[4]/div/div/section/div[2]/main/section[3]/div/div/div"
)

// Default returns the configuration of the live portal.
func Default() *Config {
	return &Config{
		Browser: BrowserConfig{
			MemoryLimit:      1 << 30,
			RecycleInterval:  2 * time.Hour,
			ResourceBlocking: []string{"image", "font", "stylesheet", "media"},
			Stealth:          "headless",
			XvfbDisplay:      ":99",
			ClickTimeout:     5 * time.Second,
		},
		Portal: PortalConfig{
			Locale:    "en",
			Languages: []string{"en", "ar"},
			HomeURLs: map[string]string{
				"en": homeEN,
				"ar": homeAR,
			},
			DetailURL:    portalRoot + "/information-center/ba/details?bacode={code}",
			ListingURL:   listing,
			MaxApprovals: 12,
		},
		Locators: LocatorsConfig{
			Code:            detail + "/div[1]/div[2]",
			Name:            detail + "/div[3]/div[2]",
			LocationBody:    detail + "/div[8]/div[2]/table/tbody",
			EligibilityList: detail + "/div[9]/div[2]/table/tbody/tr[2]/td/ul",
			NoApproval:      detail + "/div[10]/div[2]",
			ApprovalsHeading: []string{
				"//h4[contains(text(), 'Required Approvals')]",
				"//h4[contains(text(), 'الموافقات المطلوبة')]",
			},
			ApprovalHeader: "//*[@id='heading{i}']/button",
			ApprovalAgency: "//*[@id='collapse{i}']/div/div/div[1]/div[2]",

			SearchIcon:    "//*[@id='searchIconId']",
			BusinessTab:   "//*[@id='nav-business-tab']",
			SearchInput:   "input#searchInput",
			SearchResults: "//*[@id='businessList']/li",
			SearchFirst:   "//*[@id='businessList']/li/a/div",

			LangToggle: "//*[@id='swChangeLangLink']/div",

			FooterLink:       "/html/body/footer/section[1]/div/div/div[2]/ul/li[2]/a",
			FooterInput:      section + "[1]/div/div/input",
			FooterContainer:  section + "[1]/div",
			SearchButton:     "//button[contains(translate(normalize-space(.), 'search', 'SEARCH'), 'SEARCH')]",
			ResultsContainer: "#pills-activities",
			ResultLinks:      "#pills-activities a.ba-link",

			PageSize:         "#page_num_select",
			ListingItems:     "div.orange-text.ng-binding",
			NextItem:         "//*[@id='pills-activities']//li[contains(@ng-click, 'nextPage()')]",
			NextLink:         "//*[@id='pills-activities']//li[contains(@ng-click, 'nextPage()')]//div[@class='page-link']",
			PageIndicator:    "div.page-number",
			TotalCount:       "div.result-search-info span",
			ListingContainer: section + "[3]",
			SearchChip:       section + "[1]/div/div/div/div/span",
		},
		Text: map[string]record.Text{
			"en": record.DefaultText("en"),
			"ar": record.DefaultText("ar"),
		},
		Timeouts: TimeoutsConfig{
			Direct:       30 * time.Second,
			SearchStep:   10 * time.Second,
			SearchAnchor: 20 * time.Second,
			Footer:       20 * time.Second,
			FooterAnchor: 30 * time.Second,
			Popup:        2 * time.Second,
			Anchor:       10 * time.Second,
			Eligibility:  3 * time.Second,
			LangToggle:   10 * time.Second,
			LangPoll:     250 * time.Millisecond,
			LangDeadline: 10 * time.Second,
			Settle:       5 * time.Second,
			Indicator:    15 * time.Second,
			Fingerprint:  25 * time.Second,
			PagePoll:     500 * time.Millisecond,
			Results:      15 * time.Second,
		},
		Crawl: CrawlConfig{
			PageSize:     30,
			FingerprintN: 10,
			SearchSeed:   "10",
			Snapshots:    true,
		},
		Sinks: []SinkConfig{{Type: "stdout"}},
		Batch: BatchConfig{
			Workers:    1,
			DBPath:     "baextract.db",
			Visibility: 5 * time.Minute,
		},
		Diag: DiagConfig{
			Dir:         "output",
			Screenshots: true,
		},
		Serve: ServeConfig{Addr: ":8080"},
	}
}
