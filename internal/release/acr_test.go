package release

import "testing"

func TestAcrSortKeyRewritesToChronologicalOrder(t *testing.T) {
	got := acrSortKey("main-abc1234-20260115-093000")
	want := "20260115-093000-main-abc1234"
	if got != want {
		t.Errorf("acrSortKey = %q, want %q", got, want)
	}
}

func TestAcrSortKeyLeavesUnmatchedTagsUnchanged(t *testing.T) {
	if got := acrSortKey("latest"); got != "latest" {
		t.Errorf("acrSortKey(latest) = %q, want unchanged", got)
	}
}
