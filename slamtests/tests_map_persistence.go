package slamtests

import (
	"github.com/navstack/slam-contract-tests/servicedef"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const savedMapFolder = "r2b_galileo/session_map"

func DoMapPersistenceTests(t *T) {
	t.Run("saves the current map on request", func(t *T) {
		t.RequireCapability(servicedef.CapabilitySaveMap)

		fixture := MapPersistenceFixture()
		t.StartSession(fixture)
		t.RequireReadiness(fixture)

		resp := t.SaveMap(fixture, savedMapFolder)
		assert.True(t, resp.Success, "service reported success == false for the save request")
	})

	t.Run("a saved map can be loaded by a fresh session", func(t *T) {
		t.RequireCapability(servicedef.CapabilitySaveMap)

		fixture := MapPersistenceFixture()
		t.StartSession(fixture)
		t.RequireReadiness(fixture)
		resp := t.SaveMap(fixture, savedMapFolder)
		require.True(t, resp.Success, "service reported success == false for the save request")
		t.EndSession()

		reload := fixture
		reload.Overrides = map[string]string{"load_map_folder_path": savedMapFolder}
		t.StartSession(reload)
		t.RequireReadiness(reload)
	})
}
