package tools_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/petasbytes/chatloop/tools"
)

func TestListFiles_NonRecursive_Basic(t *testing.T) {
	dir := mkdir(t)
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte(""), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "nested.txt"), []byte(""), 0o644); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	out, err := call(t, tools.ListFilesDefinition, tools.ListFilesInput{Path: rel(t)})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	var got []string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON output: %v; raw=%q", err, out)
	}
	if want := []string{"a.txt", "sub/"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestListFiles_InvalidPath_Error(t *testing.T) {
	if _, err := call(t, tools.ListFilesDefinition, tools.ListFilesInput{Path: rel(t, "does", "not", "exist")}); err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestListFiles_SortingAndPaging(t *testing.T) {
	dir := mkdir(t)
	for _, n := range []string{"c.txt", "a.txt", "b.txt", "z.txt", "m.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(""), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	path := rel(t)

	// sorted: a,b,c,m,z; pages of two are [a,b], [c,m], [z]
	cases := []struct {
		page int
		want string
	}{
		{1, `["a.txt","b.txt"]`},
		{0, `["a.txt","b.txt"]`},
		{3, `["z.txt"]`},
		{4, `[]`},
	}
	for _, tc := range cases {
		out, err := call(t, tools.ListFilesDefinition, tools.ListFilesInput{Path: path, Page: tc.page, PageSize: 2})
		if err != nil {
			t.Fatalf("page %d: unexpected err: %v", tc.page, err)
		}
		if out != tc.want {
			t.Fatalf("page %d: got=%s want=%s", tc.page, out, tc.want)
		}
	}
}
