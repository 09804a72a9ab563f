package sanitize

import (
	"reflect"
	"testing"
)

func TestParseTables(t *testing.T) {
	got := ParseTables(" uploads, expenses ,,bad-name;drop,_tmp1")
	want := []string{"uploads", "expenses", "_tmp1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestTruncateStatement(t *testing.T) {
	got := TruncateStatement(ParseTables(DefaultTables))
	want := `TRUNCATE TABLE "uploads", "expenses" RESTART IDENTITY CASCADE`
	if got != want {
		t.Fatalf("got %q", got)
	}
}
