package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adjacentlink/emexd/pkg/scenario"
)

func TestPlatformInfosMapsEachPlatform(t *testing.T) {
	spec := scenario.EmoeSpec{
		Platforms: []scenario.PlatformSpec{
			{Name: "uav-1", Template: "quadcopter"},
			{Name: "uav-2", Template: "fixedwing"},
		},
	}

	platforms := platformInfos("emoe-1", spec)
	assert.Len(t, platforms, 2)
	assert.Equal(t, "uav-1", platforms[0].Name)
	assert.Equal(t, "emoe-1", platforms[0].EmoeID)
	assert.Equal(t, "fixedwing", platforms[1].Template)
}

func TestEventTargetExtractsPlatformPerEventType(t *testing.T) {
	cases := []struct {
		name    string
		payload interface{}
		want    string
	}{
		{"flow_on", scenario.FlowOnEvent{Sources: []string{"uav-1"}}, "uav-1"},
		{"flow_off", scenario.FlowOffEvent{Sources: []string{"uav-2"}}, "uav-2"},
		{"pov", scenario.PovEvent{Ref: scenario.PlatformComponentRef{Platform: "uav-1"}}, "uav-1"},
		{"pathloss", scenario.PathlossEvent{Ref: scenario.PlatformComponentRef{Platform: "uav-1"}}, "uav-1"},
		{"antenna_pointing", scenario.AntennaPointingEvent{Ref: scenario.PlatformComponentRef{Platform: "uav-1"}}, "uav-1"},
		{"jam_on", scenario.JamOnEvent{Ref: scenario.PlatformComponentRef{Platform: "jammer-1"}}, "jammer-1"},
		{"jam_off", scenario.JamOffEvent{Ref: scenario.PlatformComponentRef{Platform: "jammer-1"}}, "jammer-1"},
		{"end", scenario.EndEvent{}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, eventTarget(tc.payload))
		})
	}
}

func TestNewEventInfoFormatsTimepoint(t *testing.T) {
	info := newEventInfo(12.5, "pov", scenario.PovEvent{Ref: scenario.PlatformComponentRef{Platform: "uav-1"}}, true, "")
	assert.Equal(t, "pov", info.Kind)
	assert.Equal(t, "uav-1", info.Target)
	assert.Equal(t, "12.5", info.Timepoint)
	assert.True(t, info.OK)
}
