package sheet

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/catalogdesk/internal/catalog"
)

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID:          "A",
			Title:       "Sony Headphones",
			Price:       catalog.PriceFromString("$348"),
			Rating:      catalog.NewNumber(4.6),
			ReviewCount: catalog.NewNumber(1204),
			URL:         "https://example.com/a",
			CreatedAt:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			Flags:       catalog.Flags{IsPrime: true},
		},
		{
			ID:    "B",
			Title: "Theragun",
			Price: catalog.PriceFromString("$399"),
		},
	}
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"reviewCount", "Review Count"},
		{"isBestSeller", "Is Best Seller"},
		{"imageUrl", "Image URL"},
		{"id", "ID"},
		{"createdAt", "Created At"},
	}

	for _, tt := range tests {
		c, ok := Lookup(tt.name)
		if !ok {
			t.Fatalf("Lookup(%q) not found", tt.name)
		}
		if c.Label != tt.want {
			t.Errorf("label(%q) = %q, want %q", tt.name, c.Label, tt.want)
		}
	}
}

func TestLookup_MatchesHeaders(t *testing.T) {
	for _, h := range []string{"Review Count", "review_count", "REVIEWCOUNT", " reviewCount "} {
		c, ok := Lookup(h)
		if !ok || c.Name != "reviewCount" {
			t.Errorf("Lookup(%q) = %q, %v; want reviewCount", h, c.Name, ok)
		}
	}
	if _, ok := Lookup("colour"); ok {
		t.Error("Lookup(colour) should fail")
	}
}

func TestExportXLSX_ThenImport(t *testing.T) {
	codec := New()
	var buf bytes.Buffer

	var progress [][2]int
	err := codec.Export(&buf, sampleProducts(), []string{"id", "title", "price", "rating", "reviewCount", "isPrime", "createdAt"},
		func(cur, total int) { progress = append(progress, [2]int{cur, total}) })
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, progress)

	got, err := codec.Import("products.xlsx", &buf)
	require.NoError(t, err)
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "A", a.ID)
	assert.Equal(t, "Sony Headphones", a.Title)
	assert.Equal(t, "$348", a.Price.String())
	assert.Equal(t, 4.6, a.Rating.OrZero())
	assert.Equal(t, float64(1204), a.ReviewCount.OrZero())
	assert.True(t, a.IsPrime)
	assert.True(t, a.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))

	b := got[1]
	assert.False(t, b.Rating.Valid, "empty rating cell should import as null")
	assert.False(t, b.IsPrime)
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	err := New().ForFormat(FormatCSV).Export(&buf, sampleProducts(), []string{"title", "price"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Title,Price\nSony Headphones,$348\nTheragun,$399\n", buf.String())
}

func TestExport_Columns(t *testing.T) {
	var buf bytes.Buffer

	err := New().Export(&buf, sampleProducts(), nil, nil)
	assert.ErrorIs(t, err, ErrNoColumns)

	err = New().Export(&buf, sampleProducts(), []string{"title", "colour"}, nil)
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestImportCSV(t *testing.T) {
	input := "\xEF\xBB\xBFTitle,Price,Rating,Is Prime,Notes\n" +
		"Kettle,\"$1,299.99\",4.2,yes,ignored\n" +
		"\n" +
		"Caf\xe9 Mug,=\"12\",,no\n"

	got, err := New().Import("upload.CSV", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Kettle", got[0].Title)
	assert.Equal(t, "1299.99", got[0].Price.Amount.String())
	assert.True(t, got[0].IsPrime)
	assert.NotEmpty(t, got[0].ID, "missing ids are generated")

	assert.Equal(t, "Caf? Mug", got[1].Title)
	assert.Equal(t, "12", got[1].Price.Amount.String())
	assert.False(t, got[1].Rating.Valid)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestImport_Failures(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		input   string
		wantErr error
	}{
		{"unsupported extension", "products.pdf", "x", ErrUnsupportedFormat},
		{"empty csv", "p.csv", "\n\n", ErrEmptyFile},
		{"no key column", "p.csv", "Price,Rating\n$1,2\n", ErrMissingKeyColumn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Import(tt.file, strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, got)
		})
	}
}

func TestImport_BadCellFailsWholeFile(t *testing.T) {
	input := "ID,Title,Is Prime\nA,Kettle,yes\nB,Mug,sometimes\n"

	got, err := New().Import("p.csv", strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 3")
	assert.Nil(t, got, "no partial result on failure")
}

func TestImport_DuplicateID(t *testing.T) {
	input := "ID,Title\nA,Kettle\nA,Mug\n"

	_, err := New().Import("p.csv", strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")
}

func TestImport_CorruptWorkbook(t *testing.T) {
	_, err := New().Import("p.xlsx", strings.NewReader("definitely not a zip"))
	require.Error(t, err)
}

func TestImport_MaxRows(t *testing.T) {
	codec := &Sheets{MaxRows: 1}
	_, err := codec.Import("p.csv", strings.NewReader("Title\na\nb\n"))
	assert.ErrorIs(t, err, ErrTooManyRows)
}

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"with BOM", append([]byte{0xEF, 0xBB, 0xBF}, "a,b"...), "a,b"},
		{"without BOM", []byte("a,b"), "a,b"},
		{"only BOM", []byte{0xEF, 0xBB, 0xBF}, ""},
		{"partial BOM", []byte{0xEF, 0xBB, 'a'}, string([]byte{0xEF, 0xBB, 'a'})},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newBOMSkippingReader(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

// oneByteReader returns a single byte per Read to split multi-byte runes.
type oneByteReader struct{ data []byte }

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	p[0] = r.data[0]
	r.data = r.data[1:]
	return 1, nil
}

func TestUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"ascii", []byte("plain"), "plain"},
		{"valid multibyte", []byte("café €"), "café €"},
		{"invalid byte", []byte{'a', 0xFF, 'b'}, "a?b"},
		{"truncated rune at EOF", []byte{'a', 0xE2, 0x82}, "a??"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(newUTF8Sanitizer(bytes.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUTF8Sanitizer_SplitRunes(t *testing.T) {
	got, err := io.ReadAll(newUTF8Sanitizer(&oneByteReader{data: []byte("€uro")}))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "€uro" {
		t.Errorf("got %q, want %q", got, "€uro")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in     string
		want   bool
		wantOK bool
	}{
		{"TRUE", true, true},
		{" yes ", true, true},
		{"x", true, true},
		{"0", false, true},
		{"N", false, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		got, ok := parseBool(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("parseBool(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestCleanCell(t *testing.T) {
	tests := map[string]string{
		`  hello `: "hello",
		`="00123"`: "00123",
		`=42`:      "42",
		`"quoted"`: "quoted",
		`'single'`: "single",
	}
	for in, want := range tests {
		if got := cleanCell(in); got != want {
			t.Errorf("cleanCell(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"", FormatXLSX, false},
		{"xlsx", FormatXLSX, false},
		{" CSV ", FormatCSV, false},
		{"pdf", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
