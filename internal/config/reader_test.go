package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinitions() Definitions {
	return Definitions{
		"HOST":        {Docs: "Host for the GraphQL server to listen on", Default: "0.0.0.0"},
		"PORT":        {Docs: "Port for GraphQL server to listen on", Default: 8008},
		"IO_API_KEY":  {Docs: "API Key used to authenticate with Adobe I/O Runtime"},
		"IO_PACKAGES": {Docs: "A comma-delimited list of Adobe I/O GraphQL Extension packages to enable"},
		"ENABLED":     {Docs: "Feature toggle", Default: "false"},
	}
}

func TestReader_DefaultUsedWhenUnset(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{})

	v, err := r.Get("HOST")
	require.NoError(t, err)
	host, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0", host)

	v, err = r.Get("PORT")
	require.NoError(t, err)
	port, err := v.AsNumber()
	require.NoError(t, err)
	assert.Equal(t, float64(8008), port)
	assert.False(t, r.Has("PORT"))
}

func TestReader_SourceWinsOverDefault(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{"PORT": "9000"})

	v, err := r.Get("PORT")
	require.NoError(t, err)
	port, err := v.AsInt()
	require.NoError(t, err)
	assert.Equal(t, 9000, port)
	assert.True(t, r.Has("PORT"))
}

func TestReader_MissingValueWithoutDefault(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{})

	_, err := r.Get("IO_API_KEY")
	require.Error(t, err)

	var missing *MissingValueError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "IO_API_KEY", missing.Key)
	assert.Contains(t, err.Error(), `"IO_API_KEY"`)
	assert.Contains(t, err.Error(), "API Key used to authenticate with Adobe I/O Runtime")
}

func TestReader_EmptyStringCountsAsSet(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{"IO_API_KEY": ""})

	v, err := r.Get("IO_API_KEY")
	require.NoError(t, err)
	s, err := v.AsString()
	require.NoError(t, err)
	assert.Equal(t, "", s)
}

func TestReader_UnknownKey(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{})
	_, err := r.Get("NOPE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown configuration key "NOPE"`)
}

func TestValue_ParseErrorNamesKey(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{"PORT": "eighty"})

	v, err := r.Get("PORT")
	require.NoError(t, err)
	_, err = v.AsNumber()
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "PORT", parseErr.Key)
	assert.Contains(t, err.Error(), `failed parsing of config value for "PORT"`)
}

func TestValue_AsBoolean(t *testing.T) {
	tests := []struct {
		raw     string
		want    bool
		wantErr bool
	}{
		{raw: "true", want: true},
		{raw: "TRUE", want: true},
		{raw: "1", want: true},
		{raw: "yes", want: true},
		{raw: "false", want: false},
		{raw: "0", want: false},
		{raw: "", want: false},
		{raw: "no", want: false},
		{raw: "maybe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			r := NewReader(testDefinitions(), MapSource{"ENABLED": tt.raw})
			v, err := r.Get("ENABLED")
			require.NoError(t, err)
			got, err := v.AsBoolean()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "ENABLED")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValue_AsStringArray(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{"IO_PACKAGES": " store-locator , reviews,, "})

	v, err := r.Get("IO_PACKAGES")
	require.NoError(t, err)
	got, err := v.AsStringArray()
	require.NoError(t, err)
	assert.Equal(t, []string{"store-locator", "reviews"}, got)
}

func TestChainSource_FirstHitWins(t *testing.T) {
	src := ChainSource{MapSource{"HOST": "env-host"}, MapSource{"HOST": "file-host", "PORT": "1"}}

	v, ok := src.Lookup("HOST")
	assert.True(t, ok)
	assert.Equal(t, "env-host", v)

	v, ok = src.Lookup("PORT")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = src.Lookup("MISSING")
	assert.False(t, ok)
}

func TestReader_ValidateReportsFirstMissingKey(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{"IO_PACKAGES": "a"})
	err := r.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IO_API_KEY")

	r = NewReader(testDefinitions(), MapSource{"IO_PACKAGES": "a", "IO_API_KEY": "k"})
	assert.NoError(t, r.Validate())
	assert.Equal(t, []string{"ENABLED", "HOST", "IO_API_KEY", "IO_PACKAGES", "PORT"}, r.Keys())
}

func TestReader_MustGetPanicsOnMissing(t *testing.T) {
	r := NewReader(testDefinitions(), MapSource{})
	assert.Panics(t, func() { r.MustGet("IO_API_KEY") })
	assert.Equal(t, "HOST", r.MustGet("HOST").Key())
}
