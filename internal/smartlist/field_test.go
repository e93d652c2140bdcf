package smartlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartlists/internal/mediatypes"
)

func TestFieldTableComplete(t *testing.T) {
	for _, f := range AllFields() {
		info := fieldTable[f]
		assert.NotEmpty(t, info.name, "field %d has no table row", f)
		assert.NotZero(t, info.typ, "field %s has no type", f)
		assert.NotEmpty(t, f.Operators(), "field %s allows no operators", f)
	}
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in   string
		want Field
	}{
		{"Genres", FieldGenres},
		{"genres", FieldGenres},
		{"genre", FieldGenres},
		{" IsPlayed ", FieldIsPlayed},
		{"played", FieldIsPlayed},
		{"year", FieldProductionYear},
		{"NextUnwatched", FieldNextUnwatched},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseField(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseField("Bitrate")
	assert.Error(t, err)
}

func TestFieldOperators(t *testing.T) {
	assert.True(t, FieldName.Allows(OpMatchRegex))
	assert.True(t, FieldGenres.Allows(OpIsIn))
	assert.False(t, FieldGenres.Allows(OpEqual))
	assert.False(t, FieldProductionYear.Allows(OpContains))
	assert.True(t, FieldDateCreated.Allows(OpNewerThan))
	assert.False(t, FieldIsPlayed.Allows(OpGreaterThan))
	assert.True(t, FieldSimilarTo.Allows(OpContains))
	assert.False(t, FieldSimilarTo.Allows(OpMatchRegex))
	assert.False(t, FieldInvalid.Allows(OpEqual))
}

func TestFieldAppliesTo(t *testing.T) {
	assert.True(t, FieldName.AppliesTo(mediatypes.KindPhoto))
	assert.False(t, FieldRuntimeMinutes.AppliesTo(mediatypes.KindPhoto))
	assert.True(t, FieldRuntimeMinutes.AppliesTo(mediatypes.KindMovie))
	assert.True(t, FieldNextUnwatched.AppliesTo(mediatypes.KindEpisode))
	assert.False(t, FieldNextUnwatched.AppliesTo(mediatypes.KindMovie))
}

func TestFieldFlagsAndScope(t *testing.T) {
	assert.True(t, FieldTags.Accepts(FlagParentSeries))
	assert.False(t, FieldPeople.Accepts(FlagParentSeries))
	assert.True(t, FieldCollections.Accepts(FlagCollectionItself))
	assert.True(t, FieldNextUnwatched.Accepts(FlagUnwatchedSeries))

	for _, f := range []Field{FieldIsPlayed, FieldIsFavorite, FieldPlayCount, FieldNextUnwatched, FieldLastPlayed} {
		assert.True(t, f.UserScoped(), f.String())
	}
	assert.False(t, FieldGenres.UserScoped())
}

func TestFieldTextRoundTrip(t *testing.T) {
	text, err := FieldAlbumArtists.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AlbumArtists", string(text))

	var f Field
	require.NoError(t, f.UnmarshalText([]byte("albumartist")))
	assert.Equal(t, FieldAlbumArtists, f)

	_, err = FieldInvalid.MarshalText()
	assert.Error(t, err)
}

func TestOperatorsForTypes(t *testing.T) {
	assert.Contains(t, OperatorsFor(TypeDate), OpWeekday)
	assert.NotContains(t, OperatorsFor(TypeBoolean), OpContains)
	assert.Nil(t, OperatorsFor(FieldType(0)))

	op, err := ParseOperator("isnotin")
	require.NoError(t, err)
	assert.Equal(t, OpIsNotIn, op)
	assert.True(t, op.Negated())
	assert.True(t, op.IsMultiValue())
}
