package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sgerhart/aegisflux/backend/contactmgr/internal/model"
)

func TestParseAlertSpec(t *testing.T) {
	rule, err := ParseAlertSpec(`id=avd, var=CONTACT_INFO, val="name=avd_$[VNAME] # contact=$[VNAME]", alert_range=80, cpa_range=95, alert_range_color=green, cpa_range_color=hex:aa,bb,cc`)

	// The unquoted hex color splits on commas and is rejected as a whole
	require.Error(t, err)
	assert.Empty(t, rule.ID)

	rule, err = ParseAlertSpec(`id=avd, var=CONTACT_INFO, val="name=avd_$[VNAME] # contact=$[VNAME]", alert_range=80, cpa_range=95, alert_range_color=green, cpa_range_color=grey45`)
	require.NoError(t, err)

	assert.Equal(t, "avd", rule.ID)
	assert.Equal(t, "CONTACT_INFO", rule.Var)
	assert.Equal(t, "name=avd_$[VNAME] # contact=$[VNAME]", rule.Pattern)
	require.NotNil(t, rule.Range)
	require.NotNil(t, rule.CPARange)
	assert.Equal(t, 80.0, *rule.Range)
	assert.Equal(t, 95.0, *rule.CPARange)
	assert.Equal(t, "green", rule.RangeColor)
	assert.Equal(t, "grey45", rule.CPARangeColor)
}

func TestParseAlertSpec_Defaults(t *testing.T) {
	rule, err := ParseAlertSpec("var=CONTACT_INFO,pattern=name=$[VNAME]")
	require.NoError(t, err)

	assert.Equal(t, DefaultAlertID, rule.ID)
	assert.Nil(t, rule.Range)
	assert.Nil(t, rule.CPARange)

	d := DefaultDefaults()
	assert.Equal(t, 1000.0, rule.AlertRange(d))
	assert.Equal(t, 1000.0, rule.AlertRangeCPA(d))
	assert.Equal(t, "gray65", rule.AlertRangeColor(d))
	assert.Equal(t, "gray35", rule.AlertRangeCPAColor(d))
}

func TestParseAlertSpec_RangeAlias(t *testing.T) {
	rule, err := ParseAlertSpec("id=a,var=A,range=25")
	require.NoError(t, err)
	require.NotNil(t, rule.Range)
	assert.Equal(t, 25.0, *rule.Range)
}

func TestParseAlertSpec_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		spec  string
		field string
	}{
		{"unknown key", "id=a,var=A,colour=red", "colour"},
		{"negative range", "id=a,alert_range=-1", "alert_range"},
		{"non-numeric range", "id=a,cpa_range=far", "cpa_range"},
		{"bad color", "id=a,alert_range_color=notacolor", "alert_range_color"},
		{"bad cpa color", "id=a,cpa_range_color=", "cpa_range_color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAlertSpec(tt.spec)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSplitQuoted(t *testing.T) {
	parts := SplitQuoted(`a=1,b="x,y",c=3`, ',')
	assert.Equal(t, []string{"a=1", `b="x,y"`, "c=3"}, parts)
}

func TestAlertRule_Merge(t *testing.T) {
	base := AlertRule{ID: "avd", Var: "CONTACT_INFO", Range: Float(80), RangeColor: "green"}
	update := AlertRule{ID: "avd", CPARange: Float(120), Pattern: "p"}

	merged := base.Merge(update)
	assert.Equal(t, "CONTACT_INFO", merged.Var)
	assert.Equal(t, "p", merged.Pattern)
	assert.Equal(t, 80.0, *merged.Range)
	assert.Equal(t, 120.0, *merged.CPARange)
	assert.Equal(t, "green", merged.RangeColor)

	// Merge copies ranges rather than aliasing them
	*update.CPARange = 5
	assert.Equal(t, 120.0, *merged.CPARange)
}

func TestAlertRule_Validate(t *testing.T) {
	assert.NoError(t, (&AlertRule{ID: "a"}).Validate())
	assert.Error(t, (&AlertRule{}).Validate())
	assert.Error(t, (&AlertRule{ID: "all_alerts"}).Validate())
	assert.Error(t, (&AlertRule{ID: "a", Range: Float(-2)}).Validate())
	assert.Error(t, (&AlertRule{ID: "a", CPARangeColor: "nope"}).Validate())
}

func TestRender(t *testing.T) {
	c := model.ParseNodeReport("NAME=Gilda,TYPE=Kayak,X=500,Y=-20.5,LAT=42.5,LON=-70.25,SPD=1.5,HDG=90,DEP=3,TIME=12.5")

	tests := []struct {
		template string
		expected string
	}{
		{"name=$[VNAME] # contact=$[VNAME]", "name=Gilda # contact=Gilda"},
		{"AVD_%[VNAME]", "AVD_gilda"},
		{"type=$[VTYPE],ltype=%[VTYPE]", "type=kayak,ltype=kayak"},
		{"x=$[X],y=$[Y]", "x=500,y=-20.5"},
		{"lat=$[LAT],lon=$[LON]", "lat=42.5,lon=-70.25"},
		{"spd=$[SPD],hdg=$[HDG],dep=$[DEP]", "spd=1.5,hdg=90,dep=3"},
		{"t=$[UTIME]", "t=12.5"},
		{"plain", "plain"},
		{"$[UNKNOWN]", "$[UNKNOWN]"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			assert.Equal(t, tt.expected, Render(tt.template, c))
		})
	}
}

func TestIsColor(t *testing.T) {
	valid := []string{
		"black", "invisible", "red", "DarkKhaki", "dark_khaki", "lightblue",
		"gray65", "grey35", "macbeige", "macpurple",
		"hex:bd,b7,6b", "hex: bd, b7, 6b",
		"0.741,0.718,0.420", "0.5:0.5:0.5", "1 % 0 % 0",
	}
	for _, c := range valid {
		assert.True(t, IsColor(c), c)
	}

	invalid := []string{
		"", "notacolor", "gray66", "grey5", "hex:00,00,00", "hex:zz,00,00",
		"hex:bd,b7", "0,0,0", "0.1,0.2", "a,b,c",
	}
	for _, c := range invalid {
		assert.False(t, IsColor(c), c)
	}
}
