package render

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"nullbytes.dev/wipecert/canon"
)

type field struct {
	Label string
	Key   string
}

type section struct {
	Title  string
	Key    string
	Fields []field
	// Widths of the label, value, label, value columns in points.
	Widths [4]float64
}

// Report layout for records shaped like the sanitization tool output.
var sections = []section{
	{
		Title: "Person Performing Sanitization",
		Key:   "PersonPerformingSanitization",
		Fields: []field{
			{"Name:", "Name"}, {"Title:", "Title"},
			{"Organization:", "Organization"}, {"Location:", "Location"},
			{"Phone:", "Phone"},
		},
		Widths: [4]float64{80, 150, 80, 150},
	},
	{
		Title: "Media Information",
		Key:   "MediaInformation",
		Fields: []field{
			{"Make/Vendor:", "MakeVendor"}, {"Model:", "Model"},
			{"Serial Number:", "SerialNumber"}, {"Property Number:", "MediaPropertyNumber"},
			{"Media Type:", "MediaType"}, {"Source:", "Source"},
			{"Classification:", "Classification"}, {"Data Backed Up:", "DataBackedUp"},
		},
		Widths: [4]float64{100, 130, 100, 130},
	},
	{
		Title: "Sanitization Details",
		Key:   "SanitizationDetails",
		Fields: []field{
			{"Method Type:", "MethodType"}, {"Method Used:", "MethodUsed"},
			{"Tool Used (version):", "ToolUsed"}, {"Verification Method:", "VerificationMethod"},
			{"Number of Passes:", "NumberOfPasses"}, {"Post-Sanitization Classification:", "PostSanitizationClassification"},
		},
		Widths: [4]float64{120, 110, 120, 110},
	},
	{
		Title: "Media Destination",
		Key:   "MediaDestination",
		Fields: []field{
			{"Destination:", "Option"}, {"Details:", "Details"},
		},
		Widths: [4]float64{100, 130, 100, 130},
	},
}

// table is one titled block of label/value rows, two pairs per row.
type table struct {
	Title  string
	Rows   [][4]string
	Widths [4]float64
}

// layout maps a record onto tables. Known sections come first in fixed order;
// remaining top-level keys land in a generic table sorted by key.
func layout(r canon.Record) []table {
	var out []table
	used := map[string]bool{}
	for _, s := range sections {
		obj, ok := r[s.Key].(map[string]any)
		if !ok {
			continue
		}
		used[s.Key] = true
		t := table{Title: s.Title, Widths: s.Widths}
		for i := 0; i < len(s.Fields); i += 2 {
			var row [4]string
			row[0], row[1] = s.Fields[i].Label, cellText(obj[s.Fields[i].Key])
			if i+1 < len(s.Fields) {
				row[2], row[3] = s.Fields[i+1].Label, cellText(obj[s.Fields[i+1].Key])
			}
			t.Rows = append(t.Rows, row)
		}
		out = append(out, t)
	}

	var rest []string
	for k := range r {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	if len(rest) == 0 {
		return out
	}
	sort.Strings(rest)
	title := "Additional Details"
	if len(out) == 0 {
		title = "Certificate Details"
	}
	t := table{Title: title, Widths: [4]float64{100, 130, 100, 130}}
	for i := 0; i < len(rest); i += 2 {
		var row [4]string
		row[0], row[1] = rest[i]+":", cellText(r[rest[i]])
		if i+1 < len(rest) {
			row[2], row[3] = rest[i+1]+":", cellText(r[rest[i+1]])
		}
		t.Rows = append(t.Rows, row)
	}
	return append(out, t)
}

func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64, int32, uint, uint64, uint32:
		return fmt.Sprint(v)
	default:
		b, err := canon.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}
