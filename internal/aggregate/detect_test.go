package aggregate

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/KaramelBytes/enrolstat/internal/csvstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectRolesEnrolmentHeader(t *testing.T) {
	fields := []string{"date", "state", "district", "pincode", "age_0_5", "age_5_17", "age_18_greater"}
	roles, err := DetectRoles(fields, nil)
	require.NoError(t, err)
	assert.Equal(t, "state", roles.GroupKey)
	assert.Equal(t, []string{"age_0_5", "age_5_17", "age_18_greater"}, roles.Categories)
	assert.Equal(t, []string{"date", "district", "pincode"}, roles.Ignored)
}

func TestDetectRolesUpdateColumnsAreNotDates(t *testing.T) {
	fields := []string{"State", "bio_update_5_17", "demo_update_17_plus", "update_date"}
	roles, err := DetectRoles(fields, nil)
	require.NoError(t, err)
	assert.Equal(t, "State", roles.GroupKey)
	assert.Equal(t, []string{"bio_update_5_17", "demo_update_17_plus"}, roles.Categories)
	assert.Equal(t, []string{"update_date"}, roles.Ignored)
}

func TestDetectRolesGroupKeyFallbacks(t *testing.T) {
	cases := []struct {
		fields []string
		want   string
	}{
		{[]string{"count", "State Name"}, "State Name"},
		{[]string{"count", "region", "district_name"}, "district_name"},
		{[]string{"count", "service_area"}, "service_area"},
		{[]string{"label", "count"}, "label"},
	}
	for _, c := range cases {
		roles, err := DetectRoles(c.fields, nil)
		require.NoError(t, err, "%v", c.fields)
		assert.Equal(t, c.want, roles.GroupKey, "%v", c.fields)
	}
}

func TestDetectRolesDenyWordsAreWholeWords(t *testing.T) {
	fields := []string{"state", "record_id", "Year", "period_end", "width_total"}
	roles, err := DetectRoles(fields, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"width_total"}, roles.Categories)
}

func TestDetectRolesDigitPrefix(t *testing.T) {
	roles, err := DetectRoles([]string{"state", "0-4", "60+"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0-4", "60+"}, roles.Categories)
}

func TestDetectRolesNumericFallback(t *testing.T) {
	fields := []string{"state", "males", "females", "note"}
	samples := []csvstream.Record{
		{"state": "X", "males": "", "females": "12", "note": "n/a"},
		{"state": "Y", "males": "1,200", "females": "3", "note": "ok"},
	}
	roles, err := DetectRoles(fields, samples)
	require.NoError(t, err)
	assert.Equal(t, []string{"males", "females"}, roles.Categories)
	assert.Equal(t, []string{"note"}, roles.Ignored)
}

func TestDetectRolesFallbackRejectsZero(t *testing.T) {
	_, err := DetectRoles([]string{"state", "males"}, []csvstream.Record{{"state": "X", "males": "0"}})
	assert.ErrorIs(t, err, ErrSchemaDetection)
}

func TestDetectRolesEmptyHeader(t *testing.T) {
	_, err := DetectRoles(nil, nil)
	assert.ErrorIs(t, err, ErrSchemaDetection)
}

func TestCoerce(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"1,234", 1234},
		{"", 0},
		{"   ", 0},
		{"abc", 0},
		{nil, 0},
		{"1\u00a0234\u00a0567", 1234567},
		{"1\u202f234", 1234},
		{"1 234", 1234},
		{"12'500.5", 12500.5},
		{"-5", 0},
		{"NaN", 0},
		{"Inf", 0},
		{42, 42},
		{int64(-3), 0},
		{uint8(7), 7},
		{float32(2.5), 2.5},
		{math.NaN(), 0},
		{math.Inf(1), 0},
		{json.Number("9.5"), 9.5},
		{json.Number("bad"), 0},
		{true, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Coerce(c.in), "Coerce(%#v)", c.in)
	}
}

func TestParseCount(t *testing.T) {
	v, ok := ParseCount(" 3,000 ")
	assert.True(t, ok)
	assert.Equal(t, 3000.0, v)

	_, ok = ParseCount("")
	assert.False(t, ok)
	_, ok = ParseCount("twelve")
	assert.False(t, ok)
}
