package render

import (
	"bytes"
	"image/png"
	"testing"

	"nullbytes.dev/wipecert/canon"
)

func TestQR_RendersPNGOfRequestedSize(t *testing.T) {
	out, err := QR{}.Render("https://verify.example/#eJyrVkrMUbJSMFTSUUpSsgJRSZUKAA", DefaultQRPixels)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("png.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != DefaultQRPixels || b.Dy() != DefaultQRPixels {
		t.Fatalf("got %dx%d", b.Dx(), b.Dy())
	}
}

func TestQR_EmptyContent(t *testing.T) {
	if _, err := (QR{}).Render("", 0); err == nil {
		t.Fatalf("expected error for empty content")
	}
}

func sanitizationRecord(t *testing.T) canon.Record {
	t.Helper()
	r, err := canon.Parse([]byte(`{
		"PersonPerformingSanitization": {"Name": "Zoë Ng", "Title": "Tech", "Organization": "Acme", "Location": "Lab 3", "Phone": "555"},
		"MediaInformation": {"MakeVendor": "Seagate", "Model": "X", "SerialNumber": "SN1", "MediaType": "HDD", "DataBackedUp": false, "Capacity": 1500000000000.0},
		"SanitizationDetails": {"MethodType": "Purge", "MethodUsed": "Overwrite", "NumberOfPasses": 3},
		"MediaDestination": {"Option": "Reuse", "Details": "Pool"},
		"Notes": "extra"
	}`))
	if err != nil {
		t.Fatalf("canon.Parse: %v", err)
	}
	return r
}

func TestLayout_KnownSectionsThenExtras(t *testing.T) {
	tables := layout(sanitizationRecord(t))
	var titles []string
	for _, tb := range tables {
		titles = append(titles, tb.Title)
	}
	want := []string{"Person Performing Sanitization", "Media Information", "Sanitization Details", "Media Destination", "Additional Details"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v", titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("titles = %v", titles)
		}
	}
	if got := tables[0].Rows[0]; got[1] != "Zoë Ng" || got[3] != "Tech" {
		t.Fatalf("first row = %v", got)
	}
	// Phone is the fifth field, alone on its row.
	if got := tables[0].Rows[2]; got[0] != "Phone:" || got[2] != "" {
		t.Fatalf("last row = %v", got)
	}
	if got := tables[1].Rows[3]; got[3] != "No" {
		t.Fatalf("DataBackedUp cell = %q", got[3])
	}
	if got := tables[2].Rows[2]; got[1] != "3" {
		t.Fatalf("passes cell = %q", got[1])
	}
}

func TestLayout_GenericRecord(t *testing.T) {
	r, err := canon.Parse([]byte(`{"b":"x","a":1,"c":{"z":[1,2]}}`))
	if err != nil {
		t.Fatalf("canon.Parse: %v", err)
	}
	tables := layout(r)
	if len(tables) != 1 || tables[0].Title != "Certificate Details" {
		t.Fatalf("tables = %+v", tables)
	}
	rows := tables[0].Rows
	if rows[0] != [4]string{"a:", "1", "b:", "x"} {
		t.Fatalf("row0 = %v", rows[0])
	}
	if rows[1] != [4]string{"c:", `{"z":[1,2]}`, "", ""} {
		t.Fatalf("row1 = %v", rows[1])
	}
}

func TestPDF_Render(t *testing.T) {
	qr, err := QR{}.Render("https://verify.example/#abc", 256)
	if err != nil {
		t.Fatalf("QR: %v", err)
	}
	doc, err := PDF{Uncompressed: true}.Render(Sheet{
		Subtitle: "Issued by NullBytes",
		Record:   sanitizationRecord(t),
		QRPNG:    qr,
		Locator:  "https://verify.example/#abc",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(doc, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
	for _, s := range []string{"CERTIFICATE OF SANITIZATION", "Issued by NullBytes", "Media Destination", "Scan here for verification", "https://verify.example/#abc"} {
		if !bytes.Contains(doc, []byte(s)) {
			t.Fatalf("pdf missing %q", s)
		}
	}
}

func TestPDF_RejectsNilRecord(t *testing.T) {
	if _, err := (PDF{}).Render(Sheet{}); err == nil {
		t.Fatalf("expected error")
	}
}
