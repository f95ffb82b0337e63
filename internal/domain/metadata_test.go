package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetadataFromJSON_Scalars(t *testing.T) {
	md, err := MetadataFromJSON(map[string]interface{}{
		"source": "wiki",
		"year":   float64(2024),
		"public": true,
	})

	assert.NoError(t, err)
	assert.Equal(t, StringValue("wiki"), md["source"])
	assert.Equal(t, NumberValue(2024), md["year"])
	assert.Equal(t, BoolValue(true), md["public"])
}

func TestMetadataFromJSON_RejectsNested(t *testing.T) {
	_, err := MetadataFromJSON(map[string]interface{}{
		"nested": map[string]interface{}{"a": 1},
	})

	assert.Error(t, err)
	assert.Equal(t, ErrCodeValidation, ErrorCode(err))
}

func TestMetadataFromJSON_Empty(t *testing.T) {
	md, err := MetadataFromJSON(nil)
	assert.NoError(t, err)
	assert.Nil(t, md)
}

func TestMetadata_Matches(t *testing.T) {
	md := Metadata{
		"source": StringValue("wiki"),
		"year":   NumberValue(2024),
	}

	assert.True(t, md.Matches(nil))
	assert.True(t, md.Matches(Metadata{"source": StringValue("wiki")}))
	assert.False(t, md.Matches(Metadata{"source": StringValue("blog")}))
	assert.False(t, md.Matches(Metadata{"missing": BoolValue(true)}))
	// same text, different kind
	assert.False(t, md.Matches(Metadata{"year": StringValue("2024")}))
}

func TestMetadataValue_String(t *testing.T) {
	assert.Equal(t, "wiki", StringValue("wiki").String())
	assert.Equal(t, "2024", NumberValue(2024).String())
	assert.Equal(t, "true", BoolValue(true).String())
}
