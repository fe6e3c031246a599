package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapNativeType(t *testing.T) {
	tests := []struct {
		native string
		want   Type
		known  bool
	}{
		{"integer", TypeInteger, true},
		{"BIGINT", TypeInteger, true},
		{"int(11)", TypeInteger, true},
		{"tinyint(1) unsigned", TypeInteger, true},
		{"bigint unsigned", TypeInteger, true},
		{"UInt64", TypeInteger, true},
		{"serial", TypeInteger, true},

		{"real", TypeFloat, true},
		{"double precision", TypeFloat, true},
		{"decimal(10,2)", TypeFloat, true},
		{"Float64", TypeFloat, true},

		{"boolean", TypeBoolean, true},
		{"BOOL", TypeBoolean, true},

		{"text", TypeString, true},
		{"varchar(255)", TypeString, true},
		{"character varying", TypeString, true},
		{"String", TypeString, true},
		{"FixedString(16)", TypeString, true},
		{"uuid", TypeString, true},

		// everything unrecognized degrades to string
		{"jsonb", TypeString, false},
		{"timestamp with time zone", TypeString, false},
		{"Array(UInt8)", TypeString, false},
		{"geography", TypeString, false},
	}

	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			got, known := MapNativeType(tt.native)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.known, known)
		})
	}
}
