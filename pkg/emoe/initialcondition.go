package emoe

// InitialCondition seeds a platform's starting position/orientation
// (a "pov" condition) or antenna pointing before any scenario event
// fires. It always refers to an existing platform by name —
// referencing an unknown platform is a construction-time error (see
// addInitialCondition, applied by New).
type InitialCondition struct {
	PlatformName string
	Kind         string // "pov" or "antenna_pointing"
	Lat          float64
	Lon          float64
	Alt          float64
	Speed        float64
	Azimuth      float64
	Elevation    float64
	Pitch        float64
	Roll         float64
	Yaw          float64
	AntennaName  string
	North        float64
	East         float64
	Up           float64
}
