package release

import (
	"reflect"
	"testing"
)

func TestKeyNamesWithPrefixFiltersAndTrims(t *testing.T) {
	output := []byte("name\n  sealed-secrets-key\nsealed-secrets-key-backup  \nunrelated-secret\n")
	got := keyNamesWithPrefix(output, "sealed-secrets-key")
	want := []string{"sealed-secrets-key", "sealed-secrets-key-backup"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("keyNamesWithPrefix = %v, want %v", got, want)
	}
}

func TestKeyNamesWithPrefixReturnsNilWithNoMatches(t *testing.T) {
	got := keyNamesWithPrefix([]byte("name\nunrelated\n"), "sealed-secrets-key")
	if got != nil {
		t.Errorf("keyNamesWithPrefix = %v, want nil", got)
	}
}
