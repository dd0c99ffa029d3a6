package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinytelemetry/litclock/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timeCase string
		want     Format
	}{
		{"15:30", Format24Hour},
		{"at 13.05", Format24Hour},
		{"1300 hours", Format24Hour},
		{"eighteen hundred", FormatAmbiguous},
		{"18 hundred", Format24Hour},
		{"3:15", FormatAmbiguous},
		{"09:15", FormatAmbiguous},
		{"half past three", FormatAmbiguous},
		{"midnight", FormatAmbiguous},
		{"noon", FormatAmbiguous},
		{"3:30 p.m.", Format12Hour},
		{"five PM", Format12Hour},
		{"5pm", Format12Hour},
		{"seven a.m", Format12Hour},
		{"nine in the morning", Format12Hour},
		{"ten at night", Format12Hour},
		{"four in the afternoon", Format12Hour},
		{"eleven o'clock that evening", Format12Hour},
		{"tonight at nine", FormatAmbiguous},
		{"twenty past<br/>five in the evening", Format12Hour},
	}
	for _, tt := range tests {
		t.Run(tt.timeCase, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Classify(tt.timeCase))
		})
	}
}

func TestFormatCompatible(t *testing.T) {
	t.Parallel()

	assert.True(t, FormatAmbiguous.Compatible(true))
	assert.True(t, FormatAmbiguous.Compatible(false))
	assert.True(t, Format24Hour.Compatible(true))
	assert.False(t, Format24Hour.Compatible(false))
	assert.True(t, Format12Hour.Compatible(false))
	assert.False(t, Format12Hour.Compatible(true))
}

func TestFormatDigital(t *testing.T) {
	t.Parallel()

	tests := []struct {
		t      model.TimeOfDay
		use24  bool
		expect string
	}{
		{model.TimeOfDay{Hour: 0, Minute: 0}, true, "00:00"},
		{model.TimeOfDay{Hour: 0, Minute: 0}, false, "12:00 AM"},
		{model.TimeOfDay{Hour: 12, Minute: 5}, false, "12:05 PM"},
		{model.TimeOfDay{Hour: 15, Minute: 30}, true, "15:30"},
		{model.TimeOfDay{Hour: 15, Minute: 30}, false, "3:30 PM"},
		{model.TimeOfDay{Hour: 9, Minute: 7}, false, "9:07 AM"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, FormatDigital(tt.t, tt.use24))
	}
}

func TestPlainText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"It was ", "It was "},
		{"half past<br>three", "half past three"},
		{"half past<br/>three", "half past three"},
		{"half past <br />\nthree", "half past three"},
		{"fish &amp; chips", "fish & chips"},
		{" at <i>noon</i> ", " at noon "},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PlainText(tt.in), "PlainText(%q)", tt.in)
	}
}
