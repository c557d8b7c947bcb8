package event

// Zone lifecycle and light transition events.

type ZoneLoaded struct {
	ZoneID int32
	Name   string
	Lights int
	Source string
}

type ZoneUnloaded struct {
	ZoneID int32
}

// LightActivated fires on the frame a light turns visible.
type LightActivated struct {
	ZoneID int32
	Light  int32
}

// LightHidden fires on the frame a faded light turns invisible.
type LightHidden struct {
	ZoneID int32
	Light  int32
}
