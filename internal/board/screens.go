package board

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Source selects which upstream listing feeds a screen.
type Source string

const (
	// SourceServiceList polls GET /api/serviceList scoped to one store.
	SourceServiceList Source = "service_list"
	// SourceTVDisplay polls the denormalized kiosk feed with embedded
	// per-store ODN details.
	SourceTVDisplay Source = "tv_display"
	// SourcePicklists polls the picklist listing (count-delta alerts only).
	SourcePicklists Source = "picklists"
)

// ScreenDef describes one dashboard screen's polling behavior.
type ScreenDef struct {
	Name     string
	Source   Source
	Interval time.Duration
	// NeedsODNs joins the per-store ODN list onto each record during fetch.
	NeedsODNs bool
	// Announce enables the call-out queue for this screen.
	Announce bool
	// AnnounceCooldown mutes a record after it was called.
	AnnounceCooldown time.Duration
	// AutoCancel enables the 48-hour stale-process sweep.
	AutoCancel bool
}

const (
	ScreenTVKiosk              = "tv-kiosk"
	ScreenO2CDashboard         = "o2c-dashboard"
	ScreenEWMDashboard         = "ewm-dashboard"
	ScreenGateKeeper           = "gate-keeper"
	ScreenDispatchDoc          = "dispatch-documentation"
	ScreenOutstandingProcesses = "outstanding-processes"
	ScreenPicklists            = "picklists"
)

// DefaultScreens returns the built-in screen set with the intervals each
// dashboard has always used.
func DefaultScreens() []ScreenDef {
	return []ScreenDef{
		{
			Name:             ScreenTVKiosk,
			Source:           SourceTVDisplay,
			Interval:         3 * time.Second,
			Announce:         true,
			AnnounceCooldown: 3 * time.Second,
		},
		{
			Name:             ScreenO2CDashboard,
			Source:           SourceServiceList,
			Interval:         5 * time.Second,
			Announce:         true,
			AnnounceCooldown: 5 * time.Second,
		},
		{
			Name:      ScreenEWMDashboard,
			Source:    SourceServiceList,
			Interval:  10 * time.Second,
			NeedsODNs: true,
		},
		{
			Name:      ScreenGateKeeper,
			Source:    SourceServiceList,
			Interval:  10 * time.Second,
			NeedsODNs: true,
		},
		{
			Name:      ScreenDispatchDoc,
			Source:    SourceServiceList,
			Interval:  10 * time.Second,
			NeedsODNs: true,
		},
		{
			Name:       ScreenOutstandingProcesses,
			Source:     SourceServiceList,
			Interval:   60 * time.Second,
			AutoCancel: true,
		},
		{
			Name:     ScreenPicklists,
			Source:   SourcePicklists,
			Interval: 60 * time.Second,
		},
	}
}

// duration accepts Go duration strings ("5s", "1m") in YAML.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value.Value)
	}
	*d = duration(parsed)
	return nil
}

// screensFile is the optional YAML override shape. Only fields present in an
// entry override the built-in definition; unknown screens are rejected.
type screensFile struct {
	Screens []struct {
		Name             string    `yaml:"name"`
		Interval         *duration `yaml:"interval"`
		AnnounceCooldown *duration `yaml:"announce_cooldown"`
	} `yaml:"screens"`
}

// LoadScreens returns the screen set, applying overrides from path when it is
// non-empty.
func LoadScreens(path string) ([]ScreenDef, error) {
	defs := DefaultScreens()
	if path == "" {
		return defs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read screens file: %w", err)
	}

	var file screensFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse screens file: %w", err)
	}

	byName := make(map[string]int, len(defs))
	for i, def := range defs {
		byName[def.Name] = i
	}

	for _, entry := range file.Screens {
		i, ok := byName[entry.Name]
		if !ok {
			return nil, fmt.Errorf("unknown screen %q in %s", entry.Name, path)
		}
		if entry.Interval != nil {
			if time.Duration(*entry.Interval) < time.Second {
				return nil, fmt.Errorf("screen %q: interval below 1s", entry.Name)
			}
			defs[i].Interval = time.Duration(*entry.Interval)
		}
		if entry.AnnounceCooldown != nil {
			defs[i].AnnounceCooldown = time.Duration(*entry.AnnounceCooldown)
		}
	}

	return defs, nil
}
