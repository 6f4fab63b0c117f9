package record

// Output is the single-code JSON document (CLI --json, HTTP API, MCP tool).
type Output struct {
	Status string      `json:"status"`
	Data   *OutputData `json:"data,omitempty"`
	Error  *Failure    `json:"error,omitempty"`
}

// OutputData carries the record as cells plus its structured form.
type OutputData struct {
	ActivityCode string            `json:"activity_code"`
	Names        map[string]string `json:"names"`
	Locations    string            `json:"locations"`
	Eligible     string            `json:"eligible"`
	Approvals    string            `json:"approvals"`
	Strategy     Strategy          `json:"strategy"`
	UsedFallback bool              `json:"used_fallback"`

	LocationRows    []Location `json:"location_rows"`
	ApprovalEntries []Approval `json:"approval_entries"`
}

// NewOutput renders res. langs are the language codes of the primary and
// secondary language, used as keys of Names.
func NewOutput(res Result, t Text, langs [2]string) Output {
	if !res.OK() {
		f := res.Failure
		if f == nil {
			f = &Failure{Code: res.Code, Kind: KindElementAbsent, Reason: "no record"}
		}
		return Output{Status: "error", Error: f}
	}

	rec := *res.Record
	row := FormatRow(rec, t)
	entries := rec.Approvals()
	if entries == nil {
		entries = []Approval{}
	}
	return Output{
		Status: "success",
		Data: &OutputData{
			ActivityCode: row.Code,
			Names: map[string]string{
				langs[0]: row.PrimaryName,
				langs[1]: row.SecondaryName,
			},
			Locations:       row.Locations,
			Eligible:        row.Eligibility,
			Approvals:       row.Approvals,
			Strategy:        res.Strategy,
			UsedFallback:    res.UsedFallback,
			LocationRows:    rec.Locations(),
			ApprovalEntries: entries,
		},
	}
}
