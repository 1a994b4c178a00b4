package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sspi-index/sspi-engine/internal/adapters/driven/config/file"
	"github.com/sspi-index/sspi-engine/internal/adapters/driven/metadata/files"
	"github.com/sspi-index/sspi-engine/internal/core/services"
)

// Every dataset in the default metadata must have an adapter serving the
// same upstream query, and every adapter must be described by metadata.
func TestRegisterDatasets_MatchesDefaultMetadata(t *testing.T) {
	set, err := files.NewDefaultSource().Load(context.Background())
	require.NoError(t, err)

	reg := services.NewDatasetRegistry()
	require.NoError(t, RegisterDatasets(reg, file.DefaultSettings(), nil, nil))

	var metadataCodes []string
	for _, d := range set.Datasets {
		metadataCodes = append(metadataCodes, d.DatasetCode)
		adapter, err := reg.Lookup(d.DatasetCode)
		require.NoError(t, err, d.DatasetCode)
		assert.Equal(t, d.Source.OrganizationCode, adapter.Collector.OrganizationCode(), d.DatasetCode)
	}
	assert.ElementsMatch(t, metadataCodes, reg.Codes())

	queries := map[string]string{}
	for _, p := range providers(nil, nil) {
		for _, d := range p.datasets {
			queries[d.Code] = d.QueryCode
		}
	}
	for _, d := range set.Datasets {
		assert.Equal(t, queries[d.DatasetCode], d.Source.QueryCode, d.DatasetCode)
	}
}

func TestRegisterDatasets_RejectsDuplicates(t *testing.T) {
	reg := services.NewDatasetRegistry()
	require.NoError(t, RegisterDatasets(reg, file.DefaultSettings(), nil, nil))

	assert.Error(t, RegisterDatasets(reg, file.DefaultSettings(), nil, nil))
}

func TestOrganizations(t *testing.T) {
	assert.ElementsMatch(t, []string{"WorldBank", "UIS", "UNSDG", "OECD", "IEA", "WPB"}, Organizations())
}

func TestNew_WiresServices(t *testing.T) {
	s := file.DefaultSettings()
	s.Storage.DataDir = t.TempDir()
	s.PageCache.Backend = file.PageCacheNone
	s.Auth.JWTSigningKey = "test-signing-key"

	a, err := New(context.Background(), s)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.NotEmpty(t, a.Dispatcher.ListDatasets())
	_, err = a.Metadata.CountryGroup("SSPI49")
	assert.NoError(t, err)

	svc := a.Services()
	assert.NotNil(t, svc.Runner)
	assert.NotNil(t, svc.Tokens)
	assert.NotNil(t, a.Handler())
}

func TestNew_NoSigningKeyDisablesTokens(t *testing.T) {
	s := file.DefaultSettings()
	s.Storage.DataDir = t.TempDir()
	s.PageCache.Backend = file.PageCacheNone

	a, err := New(context.Background(), s)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.Close()) })

	assert.Nil(t, a.Tokens)
	assert.Nil(t, a.Services().Tokens)
}
