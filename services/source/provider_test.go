package source

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdultRatingJSONRoundTrip(t *testing.T) {
	for _, r := range []AdultRating{SafeOnly, AdultOnly, Mixed} {
		data, err := json.Marshal(r)
		require.NoError(t, err)

		var got AdultRating
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, r, got, "rating %s", r)
	}

	var got AdultRating
	assert.Error(t, json.Unmarshal([]byte(`"spicy"`), &got))
}

func TestDescriptorJSONRoundTrip(t *testing.T) {
	d := Descriptor{ID: "alpha", Name: "Alpha", Adult: Mixed, Enabled: true}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	var back Descriptor
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Mixed, back.Adult)
	assert.Equal(t, "alpha", back.ID)
	assert.True(t, back.Enabled)
}
