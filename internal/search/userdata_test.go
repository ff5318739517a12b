package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateUserDataEntry_MissingFieldRejected(t *testing.T) {
	err := ValidateUserDataEntry(map[string]string{"file": "a.nc", "variable": "tas"})
	assert.Error(t, err)
}

func TestValidateUserDataEntry_AllFieldsPresent(t *testing.T) {
	err := ValidateUserDataEntry(map[string]string{
		"file": "a.nc", "variable": "tas", "time": "2020-01-01", "time_frequency": "mon",
	})
	assert.NoError(t, err)
}

func TestMergeEntryFacets_EntryOverridesRequest(t *testing.T) {
	merged := MergeEntryFacets(map[string]string{"project": "user", "variable": "tas"}, map[string]string{"variable": "pr"})
	assert.Equal(t, "pr", merged["variable"])
	assert.Equal(t, "user", merged["project"])
}

func TestCheckDeleteOwnership_RejectsOtherOwner(t *testing.T) {
	err := CheckDeleteOwnership("alice", false, "", []string{"alice", "bob"})
	assert.Error(t, err)
}

func TestCheckDeleteOwnership_AllowsOwnData(t *testing.T) {
	err := CheckDeleteOwnership("alice", false, "", []string{"alice", "alice"})
	assert.NoError(t, err)
}

func TestCheckDeleteOwnership_AdminBypasses(t *testing.T) {
	err := CheckDeleteOwnership("admin", true, "", []string{"alice", "bob"})
	assert.NoError(t, err)
}

func TestCheckDeleteOwnership_NonAdminCannotOverrideUser(t *testing.T) {
	err := CheckDeleteOwnership("alice", false, "bob", []string{"bob"})
	assert.Error(t, err)
}

func TestCheckDeleteOwnership_AdminOverridesUser(t *testing.T) {
	err := CheckDeleteOwnership("admin", true, "bob", []string{"bob"})
	assert.NoError(t, err)
}
