package applicability

// Manufacturer is one clickable tab of the compatible vehicles block.
type Manufacturer struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Record holds the fitment data shown in the dialog for one manufacturer.
// The four sequences are positionally aligned but may differ in length when
// the page omits a field for some rows.
type Record struct {
	Manufacturer string   `json:"manufacturer"`
	Article      string   `json:"article"`
	Models       []string `json:"models"`
	Engines      []string `json:"engines"`
	PowerEngines []string `json:"powerEngines"`
	ModelYears   []string `json:"modelYears"`
}

// Row is a single fitment line of a Record.
type Row struct {
	Model       string `json:"model"`
	Engine      string `json:"engine"`
	PowerEngine string `json:"powerEngine"`
	ModelYear   string `json:"modelYear"`
}

// Rows returns the length of the longest sequence.
func (r Record) Rows() int {
	n := len(r.Models)
	for _, s := range [][]string{r.Engines, r.PowerEngines, r.ModelYears} {
		if len(s) > n {
			n = len(s)
		}
	}
	return n
}

// Row returns the i-th fitment line. Fields missing in a shorter sequence are empty.
func (r Record) Row(i int) Row {
	return Row{
		Model:       at(r.Models, i),
		Engine:      at(r.Engines, i),
		PowerEngine: at(r.PowerEngines, i),
		ModelYear:   at(r.ModelYears, i),
	}
}

func at(s []string, i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

// Dataset is the ordered extraction output, one record per manufacturer tab.
type Dataset []Record

// Report is the full outcome of a run, including tabs that were skipped.
type Report struct {
	URL           string         `json:"url"`
	Manufacturers []Manufacturer `json:"manufacturers"`
	Dataset       Dataset        `json:"dataset"`
	Failures      []*TabError    `json:"-"`
}
