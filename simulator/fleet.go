package simulator

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/paulmach/orb/geo"

	"github.com/kilianp07/dispatchmap/core/model"
)

// GenerateFleet creates cfg.Cabs cabs with ids 1..N scattered within
// cfg.RadiusKm of the base. onTrip is the share of cabs engaged at t=0.
func GenerateFleet(cfg Config, onTrip float64, rng *rand.Rand) []*Cab {
	if cfg.Cabs <= 0 {
		return nil
	}
	base := cfg.Base.Point()
	cabs := make([]*Cab, cfg.Cabs)
	for i := range cabs {
		pt := geo.PointAtBearingAndDistance(base, rng.Float64()*360, rng.Float64()*cfg.RadiusKm*1000)
		cabs[i] = &Cab{
			ID:       model.ID(strconv.Itoa(i + 1)),
			Position: model.FromPoint(pt),
			Status:   drawStatus(onTrip, rng),
			heading:  rng.Float64() * 360,
		}
	}
	return cabs
}

func drawStatus(onTrip float64, rng *rand.Rand) model.VehicleStatus {
	if rng.Float64() < onTrip {
		return model.StatusOnTrip
	}
	return model.StatusAvailable
}

// LoadOnTripProfile reads an hourly on-trip ratio profile from JSON, e.g.
// {"8": 0.9, "9": 0.8}. Hours that are missing stay at zero.
func LoadOnTripProfile(data []byte) ([24]float64, error) {
	var m map[string]float64
	var prof [24]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return prof, err
	}
	for h, v := range m {
		hour, err := strconv.Atoi(h)
		if err != nil {
			continue
		}
		if hour < 0 || hour >= 24 {
			continue
		}
		if v < 0 || v > 1 {
			return prof, fmt.Errorf("hour %d: ratio %v outside [0,1]", hour, v)
		}
		prof[hour] = v
	}
	return prof, nil
}
