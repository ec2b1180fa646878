package sqltype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		sqlType string
		want    Kind
	}{
		{"int", KindInt},
		{"INT", KindInt},
		{"bigint(20) unsigned", KindInt},
		{"int unsigned", KindInt},
		{"tinyint(1)", KindInt},
		{"year", KindInt},
		{"decimal(10,2)", KindFloat},
		{"DOUBLE", KindFloat},
		{"boolean", KindBoolean},
		{"datetime", KindTime},
		{"timestamp(6)", KindTime},
		{"json", KindJSON},
		{"set('a','b')", KindSet},
		{"SET", KindSet},
		{"varbinary(16)", KindBinary},
		{"varchar(255)", KindString},
		{"enum('x','y')", KindString},
		{"geometry", KindString},
		{"", KindString},
	}

	for _, tt := range tests {
		t.Run(tt.sqlType, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.sqlType))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "json", KindJSON.String())
	assert.Equal(t, "set", KindSet.String())
	assert.Equal(t, "string", Kind(99).String())
}

func TestKindComparable(t *testing.T) {
	assert.True(t, KindInt.Comparable())
	assert.True(t, KindTime.Comparable())
	assert.True(t, KindString.Comparable())
	assert.False(t, KindJSON.Comparable())
	assert.False(t, KindSet.Comparable())
}
