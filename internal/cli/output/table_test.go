package output

import (
	"bytes"
	"reflect"
	"strings"
	"testing"
	"time"
)

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestTableFormatter_Struct(t *testing.T) {
	type tls struct {
		CertFile string `yaml:"cert_file"`
		Reload   bool   `yaml:"reload"`
	}
	data := struct {
		Port    int           `yaml:"port"`
		Timeout time.Duration `json:"timeout"`
		TLS     tls           `yaml:"tls"`
		Index   []string
		Empty   string
		Skipped string `yaml:"-"`
		hidden  string
	}{
		Port:    443,
		Timeout: 90 * time.Second,
		TLS:     tls{CertFile: "fullchain.pem", Reload: true},
		Index:   []string{"index.html", "index.htm"},
		Skipped: "x",
		hidden:  "y",
	}

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, &data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	got := lines(buf.String())
	want := []string{
		"FIELD          VALUE",
		"port           443",
		"timeout        1m30s",
		"tls.cert_file  fullchain.pem",
		"tls.reload     true",
		"Index          index.html, index.htm",
		"Empty          -",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Format() =\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestTableFormatter_MapSorted(t *testing.T) {
	data := map[string]any{"b": 2, "a": "one", "c": map[string]int{"z": 1}}

	var buf bytes.Buffer
	if err := (&TableFormatter{NoHeaders: true}).Format(&buf, data); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	got := lines(buf.String())
	want := []string{"a    one", "b    2", "c.z  1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestTableFormatter_Table(t *testing.T) {
	table := &Table{Headers: []string{"NAME", "STATUS"}}
	table.AddRow("one", "ok")
	table.AddRow("three", "failed")

	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, table); err != nil {
		t.Fatalf("Format() error = %v", err)
	}

	want := []string{"NAME   STATUS", "one    ok", "three  failed"}
	if got := lines(buf.String()); !reflect.DeepEqual(got, want) {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestTableFormatter_Nil(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("Format(nil) = %q, %v", buf.String(), err)
	}
}

func TestTableFormatter_Unsupported(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TableFormatter{}).Format(&buf, 42); err == nil {
		t.Error("Format(int) expected error")
	}
}

func TestFormatValue_Time(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if got := formatValue(reflect.ValueOf(ts)); got != "2026-01-02T03:04:05Z" {
		t.Errorf("formatValue(time) = %q", got)
	}
	if got := formatValue(reflect.ValueOf(time.Time{})); got != "-" {
		t.Errorf("formatValue(zero time) = %q", got)
	}
}
