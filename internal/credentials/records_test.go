package credentials

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Credential
	}{
		{
			name: "tab delimited",
			data: "HomeNet\tsecret123\nOffice\tpass4567\n",
			want: []Credential{{"HomeNet", "secret123"}, {"Office", "pass4567"}},
		},
		{
			name: "crlf line endings",
			data: "HomeNet\tsecret123\r\nOffice\tpass4567\r\n",
			want: []Credential{{"HomeNet", "secret123"}, {"Office", "pass4567"}},
		},
		{
			name: "open network keeps empty password",
			data: "Cafe\t\nHomeNet\tsecret123\n",
			want: []Credential{{"Cafe", ""}, {"HomeNet", "secret123"}},
		},
		{
			name: "password containing tab",
			data: "HomeNet\tpass\tword\n",
			want: []Credential{{"HomeNet", "pass\tword"}},
		},
		{
			name: "blank lines skipped",
			data: "\nHomeNet\tsecret123\n\n\nOffice\tpass4567",
			want: []Credential{{"HomeNet", "secret123"}, {"Office", "pass4567"}},
		},
		{
			name: "legacy two-line form",
			data: "LegacyNet\nlegacypass\n",
			want: []Credential{{"LegacyNet", "legacypass"}},
		},
		{
			name: "legacy form stops parsing",
			data: "LegacyNet\nlegacypass\nOffice\tpass4567\n",
			want: []Credential{{"LegacyNet", "legacypass"}},
		},
		{
			name: "legacy form after tab records",
			data: "HomeNet\tsecret123\nLegacyNet\nlegacypass\nIgnored\tx\n",
			want: []Credential{{"HomeNet", "secret123"}, {"LegacyNet", "legacypass"}},
		},
		{
			name: "legacy ssid without password line",
			data: "LegacyNet",
			want: []Credential{{"LegacyNet", ""}},
		},
		{
			name: "empty ssid dropped",
			data: "\tpw\n",
			want: nil,
		},
		{
			name: "empty ssid after valid record",
			data: "Home\tpw\n\tsecret\n",
			want: []Credential{{"Home", "pw"}},
		},
		{
			name: "empty",
			data: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecords([]byte(tt.data))
			if err != nil {
				t.Fatalf("ParseRecords() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseRecords() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEncodeRecords(t *testing.T) {
	creds := []Credential{{"HomeNet", "secret123"}, {"Cafe", ""}}
	want := "HomeNet\tsecret123\nCafe\t\n"

	if got := string(EncodeRecords(creds)); got != want {
		t.Errorf("EncodeRecords() = %q, want %q", got, want)
	}
	if got, err := ParseRecords(EncodeRecords(creds)); err != nil || !reflect.DeepEqual(got, creds) {
		t.Errorf("decoded = %#v, %v; want %#v", got, err, creds)
	}
}

func TestParseRecords_LineTooLong(t *testing.T) {
	data := "HomeNet\tsecret123\nBig\t" + strings.Repeat("p", MaxRecordLength) + "\nOffice\tpass4567\n"

	got, err := ParseRecords([]byte(data))
	if err == nil {
		t.Fatal("ParseRecords() error = nil, want an error for an oversized line")
	}
	if got != nil {
		t.Errorf("ParseRecords() = %#v, want nil on error", got)
	}
}

func TestParseRecords_LongestSavableRecord(t *testing.T) {
	password := strings.Repeat("p", MaxRecordLength-len("HomeNet")-1)
	creds := []Credential{{"HomeNet", password}, {"Cafe", ""}}

	got, err := ParseRecords(EncodeRecords(creds))
	if err != nil {
		t.Fatalf("ParseRecords() error = %v", err)
	}
	if !reflect.DeepEqual(got, creds) {
		t.Errorf("decoded %d records, want %d", len(got), len(creds))
	}
}
