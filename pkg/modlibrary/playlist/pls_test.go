package playlist

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
)

func TestWritePLS(t *testing.T) {
	var buf bytes.Buffer
	items := []Item{
		{Path: "music/axel_f.mod", Title: "Axel F"},
		{Path: "music/pure.xm", Title: "100% Pure"},
	}
	if err := WritePLS(&buf, items); err != nil {
		t.Fatalf("WritePLS failed: %v", err)
	}

	want := "[playlist]\n" +
		"numberofentries=2\n" +
		"file1=" + filepath.FromSlash("music/axel_f.mod") + "\n" +
		"title1=Axel F\n" +
		"file2=" + filepath.FromSlash("music/pure.xm") + "\n" +
		"title2=100% Pure\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected playlist:\n%s\nwant:\n%s", got, want)
	}
}

func TestWritePLSEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePLS(&buf, nil); err != nil {
		t.Fatalf("WritePLS failed: %v", err)
	}
	if got := buf.String(); got != "[playlist]\nnumberofentries=0\n" {
		t.Errorf("unexpected playlist %q", got)
	}
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWritePLSReportsWriteError(t *testing.T) {
	if err := WritePLS(failWriter{}, []Item{{Path: "a.mod"}}); err == nil {
		t.Fatal("expected write error")
	}
}
