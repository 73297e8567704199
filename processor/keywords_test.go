package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"html tags", "<p>ICE agents <b>spotted</b></p>", "ICE agents spotted"},
		{"urls stripped", "ICE van here https://example.com/photo now", "ICE van here now"},
		{"entities", "ICE &amp; CBP on Lake St", "ICE & CBP on Lake St"},
		{"whitespace", "ICE\n\nagents\t here", "ICE agents here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestIsEnforcementRelevant(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"agents phrase", "ICE agents at 5th and Hennepin right now", true},
		{"la migra", "cuidado, la migra en Lake Street", true},
		{"deportation", "deportation vans seen near the school", true},
		{"bare ice with cue", "ice van parked outside the mercado", true},
		{"bare ice no cue", "the ice on the lake is finally thick enough", false},
		{"hockey", "great ice hockey game at the rink tonight", false},
		{"ice cream", "best ice cream in Uptown hands down", false},
		{"weather", "black ice on 35W this morning, drive safe", false},
		{"unrelated", "road construction on Hennepin all week", false},
		{"ice inside word", "the justice department issued a notice", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEnforcementRelevant(tt.text), "text: %s", tt.text)
		})
	}
}

func TestHasRealtimeSignal(t *testing.T) {
	assert.True(t, HasRealtimeSignal("ICE agents at the plaza right now"))
	assert.True(t, HasRealtimeSignal("just spotted two unmarked vans"))
	assert.True(t, HasRealtimeSignal("heads up, checkpoint on Lake St"))
	assert.False(t, HasRealtimeSignal("ICE conducted raids across the metro in March"))
}

func TestHasNewsPattern(t *testing.T) {
	assert.True(t, HasNewsPattern("ICE raids in Minneapolis last year drew protests"))
	assert.True(t, HasNewsPattern("A federal court ruling blocked the policy"))
	assert.True(t, HasNewsPattern("Officials said the operation ended yesterday"))
	assert.True(t, HasNewsPattern("Two men were deported in 2024 after the sweep"))
	assert.False(t, HasNewsPattern("ICE agents detaining people at the corner right now"))
}
